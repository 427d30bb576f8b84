/*
 * Copyright 2026 The Tandem Authors. All rights reserved.
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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-team/tandem/server/backend/database/mongo"
	"github.com/tandem-team/tandem/server/backend/database/testcases"
)

func setupMongoClient(t *testing.T) *mongo.Client {
	uri := os.Getenv("TANDEM_MONGO_URI")
	if uri == "" {
		t.Skip("TANDEM_MONGO_URI is not set")
	}

	client, err := mongo.Dial(&mongo.Config{
		ConnectionTimeout: "5s",
		ConnectionURI:     uri,
		Database:          "tandem-test",
		PingTimeout:       "5s",
	})
	require.NoError(t, err)

	return client
}

func TestClient(t *testing.T) {
	client := setupMongoClient(t)
	defer func() {
		assert.NoError(t, client.Close())
	}()

	t.Run("FindDocInfo test", func(t *testing.T) {
		testcases.RunFindDocInfoTest(t, client)
	})

	t.Run("UpdateDocSnapshot test", func(t *testing.T) {
		testcases.RunUpdateDocSnapshotTest(t, client)
	})

	t.Run("ListDocInfos test", func(t *testing.T) {
		testcases.RunListDocInfosTest(t, client)
	})
}
