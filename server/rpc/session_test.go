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
package rpc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescratch/livescratch/api/types"
)

// newSessionPair returns a server side session that nothing drains and the
// client end of its connection.
func newSessionPair(t *testing.T, conf *Config) (*session, *websocket.Conn) {
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(ts.Close)

	client, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	t.Cleanup(func() {
		_ = client.Close()
	})

	sess := newSession("bob", <-conns, conf)
	t.Cleanup(sess.close)
	return sess, client
}

func TestSession(t *testing.T) {
	t.Run("full send buffer closes the session test", func(t *testing.T) {
		conf := &Config{SendBufferSize: 1, WriteTimeout: "1s"}
		sess, client := newSessionPair(t, conf)

		msg := types.Message{Type: types.MessageTypeEdit, Record: &types.ChangeRecord{Version: 1}}
		require.NoError(t, sess.Send(msg))
		assert.ErrorIs(t, sess.Send(msg), ErrSendBufferFull)

		select {
		case <-sess.closed:
		default:
			t.Fatal("session is still open")
		}
		assert.ErrorIs(t, sess.Send(msg), ErrSessionClosed)

		// the client sees the connection end instead of a gap in versions
		require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := client.ReadMessage()
		assert.Error(t, err)
	})

	t.Run("drained session stays open test", func(t *testing.T) {
		conf := &Config{SendBufferSize: 1, WriteTimeout: "1s"}
		sess, client := newSessionPair(t, conf)
		go sess.writeLoop()

		require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
		for i := int64(1); i <= 3; i++ {
			require.NoError(t, sess.Send(types.Message{Type: types.MessageTypeAck, Version: i}))

			var got types.Message
			require.NoError(t, client.ReadJSON(&got))
			assert.Equal(t, i, got.Version)
		}
	})
}
