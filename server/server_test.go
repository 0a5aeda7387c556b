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

package server_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescratch/livescratch/server"
)

func TestLiveScratch(t *testing.T) {
	t.Run("start, drain and shutdown test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.RPC.Port = 13300
		conf.Profiling.Port = 13301
		conf.Backend.DrainGracePeriod = "0s"

		r, err := server.New(conf)
		require.NoError(t, err)
		require.NoError(t, r.Start())

		url := "http://" + r.RPCAddr()
		assert.Eventually(t, func() bool {
			resp, err := http.Get(url + "/healthz")
			if err != nil {
				return false
			}
			_ = resp.Body.Close()
			return resp.StatusCode == http.StatusOK
		}, 2*time.Second, 20*time.Millisecond)

		resp, err := http.Post(url+"/newProject/scratch-1/alice", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		require.NoError(t, r.Drain(context.Background()))
		select {
		case <-r.Drained():
		default:
			t.Fatal("drain did not complete")
		}

		resp, err = http.Post(url+"/newProject/scratch-2/alice", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		require.NoError(t, r.Shutdown(true))
		<-r.ShutdownCh()
		assert.NoError(t, r.Shutdown(true))
	})
}
