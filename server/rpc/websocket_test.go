/*
 * Copyright 2025 The LiveScratch Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rpc_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/rpc"
)

func dial(t *testing.T, ts *httptest.Server, id, identity string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + id + "?identity=" + identity
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) types.Message {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg types.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitActive(t *testing.T, ts *httptest.Server, id string, identities ...string) {
	assert.Eventually(t, func() bool {
		status, body := do(t, http.MethodGet, ts.URL+"/active/"+id, "")
		if status != http.StatusOK {
			return false
		}
		var infos []types.PresenceInfo
		if err := json.Unmarshal(body, &infos); err != nil || len(infos) != len(identities) {
			return false
		}
		for i, info := range infos {
			if info.Identity != identities[i] {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLiveSession(t *testing.T) {
	t.Run("edits are acked and broadcast test", func(t *testing.T) {
		_, ts := newTestServer(t, newValidRPCConf())
		status, _ := do(t, http.MethodPost, ts.URL+"/newProject/scratch-1/alice", `{}`)
		require.Equal(t, http.StatusOK, status)

		alice := dial(t, ts, "1", "alice")
		bob := dial(t, ts, "1", "bob")
		waitActive(t, ts, "1", "alice", "bob")

		require.NoError(t, alice.WriteJSON(rpc.ClientMessage{
			Type:    types.MessageTypeEdit,
			Payload: json.RawMessage(`{"a":1}`),
		}))

		ack := readMessage(t, alice)
		assert.Equal(t, types.MessageTypeAck, ack.Type)
		assert.Equal(t, int64(1), ack.Version)

		edit := readMessage(t, bob)
		assert.Equal(t, types.MessageTypeEdit, edit.Type)
		require.NotNil(t, edit.Record)
		assert.Equal(t, int64(1), edit.Record.Version)
		assert.Equal(t, "alice", edit.Record.Author)
		assert.JSONEq(t, `{"a":1}`, string(edit.Record.Payload))
	})

	t.Run("cursor updates reach other sessions test", func(t *testing.T) {
		_, ts := newTestServer(t, newValidRPCConf())
		status, _ := do(t, http.MethodPost, ts.URL+"/newProject/scratch-1/alice", `{}`)
		require.Equal(t, http.StatusOK, status)

		alice := dial(t, ts, "1", "alice")
		bob := dial(t, ts, "1", "bob")
		waitActive(t, ts, "1", "alice", "bob")

		require.NoError(t, bob.WriteJSON(rpc.ClientMessage{
			Type:   types.MessageTypeCursor,
			Cursor: json.RawMessage(`{"x":10}`),
		}))

		msg := readMessage(t, alice)
		assert.Equal(t, types.MessageTypeCursor, msg.Type)
		assert.Equal(t, "bob", msg.Identity)
		assert.JSONEq(t, `{"x":10}`, string(msg.Cursor))
	})

	t.Run("edit rate is limited per session test", func(t *testing.T) {
		conf := newValidRPCConf()
		conf.EditsPerSecond = 0.001
		conf.EditBurst = 1
		_, ts := newTestServer(t, conf)
		status, _ := do(t, http.MethodPost, ts.URL+"/newProject/scratch-1/alice", `{}`)
		require.Equal(t, http.StatusOK, status)

		alice := dial(t, ts, "1", "alice")
		for i := 0; i < 2; i++ {
			require.NoError(t, alice.WriteJSON(rpc.ClientMessage{
				Type:    types.MessageTypeEdit,
				Payload: json.RawMessage(`{"a":1}`),
			}))
		}

		assert.Equal(t, types.MessageTypeAck, readMessage(t, alice).Type)
		rejected := readMessage(t, alice)
		assert.Equal(t, types.MessageTypeError, rejected.Type)
		assert.Equal(t, rpc.ErrTooManyEdits.Code(), rejected.Code)
	})

	t.Run("invalid messages are answered with errors test", func(t *testing.T) {
		_, ts := newTestServer(t, newValidRPCConf())
		status, _ := do(t, http.MethodPost, ts.URL+"/newProject/scratch-1/alice", `{}`)
		require.Equal(t, http.StatusOK, status)

		alice := dial(t, ts, "1", "alice")
		require.NoError(t, alice.WriteJSON(rpc.ClientMessage{Type: "poke"}))
		msg := readMessage(t, alice)
		assert.Equal(t, types.MessageTypeError, msg.Type)
		assert.Equal(t, rpc.ErrUnknownMessage.Code(), msg.Code)

		require.NoError(t, alice.WriteJSON(rpc.ClientMessage{
			Type:    types.MessageTypeEdit,
			Payload: json.RawMessage(`[1,2]`),
		}))
		msg = readMessage(t, alice)
		assert.Equal(t, types.MessageTypeError, msg.Type)
		assert.Equal(t, "ErrInvalidEdit", msg.Code)
	})

	t.Run("chat reaches every session and is kept test", func(t *testing.T) {
		_, ts := newTestServer(t, newValidRPCConf())
		status, _ := do(t, http.MethodPost, ts.URL+"/newProject/scratch-1/alice", `{}`)
		require.Equal(t, http.StatusOK, status)

		status, body := do(t, http.MethodGet, ts.URL+"/chat/1", "")
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `[]`, string(body))

		alice := dial(t, ts, "1", "alice")
		bob := dial(t, ts, "1", "bob")
		waitActive(t, ts, "1", "alice", "bob")

		require.NoError(t, alice.WriteJSON(rpc.ClientMessage{Type: types.MessageTypeChat, Text: "hello"}))
		for _, conn := range []*websocket.Conn{alice, bob} {
			msg := readMessage(t, conn)
			assert.Equal(t, types.MessageTypeChat, msg.Type)
			require.NotNil(t, msg.Chat)
			assert.Equal(t, "alice", msg.Chat.Sender)
			assert.Equal(t, "hello", msg.Chat.Text)
		}

		status, body = do(t, http.MethodGet, ts.URL+"/chat/1", "")
		require.Equal(t, http.StatusOK, status)
		chat := decode[[]types.ChatMessage](t, body)
		require.Len(t, chat, 1)
		assert.Equal(t, "hello", chat[0].Text)

		require.NoError(t, bob.WriteJSON(rpc.ClientMessage{Type: types.MessageTypeChat}))
		msg := readMessage(t, bob)
		assert.Equal(t, types.MessageTypeError, msg.Type)
		assert.Equal(t, "ErrInvalidChat", msg.Code)
	})

	t.Run("closing a connection leaves the roster test", func(t *testing.T) {
		_, ts := newTestServer(t, newValidRPCConf())
		status, _ := do(t, http.MethodPost, ts.URL+"/newProject/scratch-1/alice", `{}`)
		require.Equal(t, http.StatusOK, status)

		dial(t, ts, "1", "alice")
		bob := dial(t, ts, "1", "bob")
		waitActive(t, ts, "1", "alice", "bob")

		require.NoError(t, bob.Close())
		waitActive(t, ts, "1", "alice")
	})

	t.Run("handshake is rejected for bad input test", func(t *testing.T) {
		_, ts := newTestServer(t, newValidRPCConf())
		status, _ := do(t, http.MethodPost, ts.URL+"/newProject/scratch-1/alice", `{}`)
		require.Equal(t, http.StatusOK, status)

		base := "ws" + strings.TrimPrefix(ts.URL, "http")
		_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/1?identity=not%20valid", nil)
		assert.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.NoError(t, resp.Body.Close())

		_, resp, err = websocket.DefaultDialer.Dial(base+"/ws/9?identity=alice", nil)
		assert.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	})
}
