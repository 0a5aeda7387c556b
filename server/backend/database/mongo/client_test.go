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

package mongo_test

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/backend/database/mongo"
	"github.com/livescratch/livescratch/server/backend/database/testcases"
)

// mongoURIEnv names the environment variable holding the URI of the MongoDB
// used by these tests. The tests are skipped when it is empty.
const mongoURIEnv = "LIVESCRATCH_TEST_MONGO_URI"

func setupTestWithDummyData(t *testing.T) *mongo.Client {
	uri := os.Getenv(mongoURIEnv)
	if uri == "" {
		t.Skipf("%s is not set", mongoURIEnv)
	}

	cli, err := mongo.Dial(&mongo.Config{
		ConnectionTimeout: "5s",
		ConnectionURI:     uri,
		Database:          fmt.Sprintf("livescratch-test-%d", time.Now().UnixNano()),
		PingTimeout:       "5s",
	})
	require.NoError(t, err)
	return cli
}

func TestClient(t *testing.T) {
	cli := setupTestWithDummyData(t)
	defer func() {
		assert.NoError(t, cli.Close())
	}()

	t.Run("RunRegistryInfo test", func(t *testing.T) {
		testcases.RunRegistryInfoTest(t, cli)
	})

	t.Run("RunSaveAndFindProjectInfo test", func(t *testing.T) {
		testcases.RunSaveAndFindProjectInfoTest(t, cli, types.NewID(1))
	})

	t.Run("RunListProjectMetas test", func(t *testing.T) {
		testcases.RunListProjectMetasTest(t, cli, types.NewID(2), types.NewID(3))
	})

	t.Run("RunConcurrentSave test", func(t *testing.T) {
		testcases.RunConcurrentSaveTest(t, cli, types.NewID(4), types.NewID(5))
	})
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		config := &mongo.Config{
			ConnectionTimeout: "5s",
			ConnectionURI:     "mongodb://localhost:27017",
			Database:          "livescratch",
			PingTimeout:       "5s",
		}
		assert.NoError(t, config.Validate())

		config.ConnectionTimeout = "5"
		assert.Error(t, config.Validate())

		config.ConnectionTimeout = "5s"
		config.PingTimeout = "5"
		assert.Error(t, config.Validate())

		config.PingTimeout = "5s"
		config.Database = ""
		assert.Error(t, config.Validate())
	})
}
