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

package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-team/tandem/server/backend/database/redis"
	"github.com/tandem-team/tandem/server/backend/database/testcases"
)

func TestConfig(t *testing.T) {
	config := &redis.Config{Addr: "localhost:6379"}
	assert.NoError(t, config.Validate())

	config.DB = -1
	assert.Error(t, config.Validate())

	config = &redis.Config{}
	assert.ErrorIs(t, config.Validate(), redis.ErrEmptyAddr)
}

func TestClient(t *testing.T) {
	addr := os.Getenv("TANDEM_REDIS_ADDR")
	if addr == "" {
		t.Skip("TANDEM_REDIS_ADDR is not set")
	}

	client, err := redis.Dial(context.Background(), &redis.Config{
		Addr:      addr,
		KeyPrefix: "tandem-test-" + xid.New().String() + ":",
	})
	require.NoError(t, err)
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
