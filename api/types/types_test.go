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

package types_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/livescratch/livescratch/api/types"
)

func TestID(t *testing.T) {
	t.Run("new id test", func(t *testing.T) {
		id := types.NewID(42)
		assert.Equal(t, "42", id.String())
		n, err := id.Int64()
		assert.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	t.Run("invalid id test", func(t *testing.T) {
		assert.ErrorIs(t, types.ID("abc").Validate(), types.ErrInvalidID)
		assert.ErrorIs(t, types.ID("0").Validate(), types.ErrInvalidID)
		assert.ErrorIs(t, types.ID("").Validate(), types.ErrInvalidID)
	})

	t.Run("join id test", func(t *testing.T) {
		ids := []types.ID{"1", "2", "3"}
		assert.Equal(t, "1,2,3", types.JoinIDs(ids))
	})
}

func TestProject(t *testing.T) {
	t.Run("can access test", func(t *testing.T) {
		p := &types.Project{Owner: "alice", SharedWith: []string{"bob"}}
		assert.True(t, p.CanAccess("alice"))
		assert.True(t, p.CanAccess("bob"))
		assert.False(t, p.CanAccess("carol"))
	})

	t.Run("deep copy test", func(t *testing.T) {
		p := &types.Project{Owner: "alice", SharedWith: []string{"bob"}}
		clone := p.DeepCopy()
		clone.SharedWith[0] = "carol"
		assert.Equal(t, "bob", p.SharedWith[0])
	})
}

func TestRequestValidation(t *testing.T) {
	t.Run("edit request test", func(t *testing.T) {
		valid := &types.EditRequest{Author: "alice_1", Payload: json.RawMessage(`{"a":1}`)}
		assert.NoError(t, valid.Validate())

		noAuthor := &types.EditRequest{Payload: json.RawMessage(`{}`)}
		assert.Error(t, noAuthor.Validate())

		badAuthor := &types.EditRequest{Author: "alice bob", Payload: json.RawMessage(`{}`)}
		assert.Error(t, badAuthor.Validate())

		noPayload := &types.EditRequest{Author: "alice"}
		assert.Error(t, noPayload.Validate())
	})

	t.Run("create project request test", func(t *testing.T) {
		req := &types.CreateProjectRequest{
			Owner:      "alice",
			ExternalID: "123456",
			Body:       json.RawMessage(`{}`),
		}
		assert.NoError(t, req.Validate())

		req.Owner = ""
		assert.Error(t, req.Validate())
	})

	t.Run("identity test", func(t *testing.T) {
		assert.NoError(t, types.ValidateIdentity("griffpatch"))
		assert.Error(t, types.ValidateIdentity(""))
		assert.Error(t, types.ValidateIdentity("no/slash"))
	})

	t.Run("chat request test", func(t *testing.T) {
		assert.NoError(t, (&types.ChatRequest{Sender: "alice", Text: "hi"}).Validate())
		assert.Error(t, (&types.ChatRequest{Sender: "alice"}).Validate())
		assert.Error(t, (&types.ChatRequest{Text: "hi"}).Validate())

		long := &types.ChatRequest{Sender: "alice", Text: strings.Repeat("a", types.MaxChatTextLength+1)}
		assert.Error(t, long.Validate())
	})

	t.Run("translated violation test", func(t *testing.T) {
		req := &types.CreateProjectRequest{
			Owner:      "alice bob",
			ExternalID: "123456",
		}
		err := req.Validate()

		var structErr types.StructError
		assert.ErrorAs(t, err, &structErr)
		assert.Len(t, structErr.Violations, 2)
		assert.Equal(t, "identity", structErr.Violations[0].Tag)
		assert.Equal(t, "Owner", structErr.Violations[0].Field)
		assert.Contains(t, err.Error(), "Owner must be 1 to 64 letters")
		assert.Contains(t, err.Error(), "Body is a required field")
	})
}
