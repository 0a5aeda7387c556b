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

package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	t.Run("string and http status test", func(t *testing.T) {
		tests := []struct {
			code StatusCode
			name string
			http int
		}{
			{ErrCodeInvalidArgument, "invalid_argument", http.StatusBadRequest},
			{ErrCodeNotFound, "not_found", http.StatusNotFound},
			{ErrCodeAlreadyExists, "already_exists", http.StatusConflict},
			{ErrCodeFailedPrecondition, "failed_precondition", http.StatusPreconditionFailed},
			{ErrCodeUnavailable, "unavailable", http.StatusServiceUnavailable},
			{ErrCodeInternal, "internal", http.StatusInternalServerError},
			{StatusCode(999), "code_999", http.StatusInternalServerError},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.name, tt.code.String())
				assert.Equal(t, tt.http, tt.code.HTTPStatus())
			})
		}
	})

	t.Run("client and server classification test", func(t *testing.T) {
		assert.True(t, ErrCodeNotFound.IsClientError())
		assert.False(t, ErrCodeNotFound.IsServerError())
		assert.True(t, ErrCodeUnavailable.IsServerError())
		assert.False(t, ErrCodeUnavailable.IsClientError())
	})
}

func TestStatusError(t *testing.T) {
	errNotFound := NotFound("project not found").WithCode("ErrProjectNotFound")

	t.Run("status survives wrapping test", func(t *testing.T) {
		wrapped := fmt.Errorf("resolve 42: %w", errNotFound)
		assert.Equal(t, ErrCodeNotFound, StatusOf(wrapped))
		assert.Equal(t, "ErrProjectNotFound", CodeOf(wrapped))
		assert.True(t, Is(wrapped, errNotFound))
		assert.True(t, IsClientError(wrapped))
	})

	t.Run("wrap keeps status test", func(t *testing.T) {
		err := Wrap(errNotFound, "find %s", "42")
		assert.Equal(t, "find 42: project not found", err.Error())
		assert.True(t, IsStatus(err, ErrCodeNotFound))
		assert.NoError(t, Wrap(nil, "noop"))
	})

	t.Run("plain errors carry no status test", func(t *testing.T) {
		err := New("boom")
		assert.Equal(t, StatusCode(0), StatusOf(err))
		assert.Equal(t, "", CodeOf(err))
		assert.Equal(t, StatusCode(0), StatusOf(nil))
	})

	t.Run("with code does not mutate the original test", func(t *testing.T) {
		base := Unavailable("draining")
		coded := base.WithCode("ErrDraining")
		assert.Equal(t, "", base.Code())
		assert.Equal(t, "ErrDraining", coded.Code())
		assert.Equal(t, ErrCodeUnavailable, coded.Status())
	})
}
