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

package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-team/tandem/pkg/ot"
	"github.com/tandem-team/tandem/server/backend"
	"github.com/tandem-team/tandem/server/backend/housekeeping"
)

func TestBackend(t *testing.T) {
	ctx := context.Background()

	conf := newValidBackendConf()
	conf.CreateDocumentIfNotExist = true
	be, err := backend.New(&conf, nil, nil, &housekeeping.Config{Interval: "1m"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, be.Config.Hostname)
	require.NoError(t, be.Start())

	session, _, err := be.Sessions.Join(ctx, "doc-1", "alice", "")
	require.NoError(t, err)
	_, err = session.Submit(ctx, ot.Operation{
		ID:       "a-1",
		Kind:     ot.Insert,
		Content:  "hello",
		AuthorID: "alice",
	})
	require.NoError(t, err)

	// the memory database is closed with the backend, so check the saved
	// snapshot through a flush before shutting down.
	flushed, err := be.Sessions.FlushAll(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, flushed)

	info, err := be.DB.FindDocInfo(ctx, "doc-1", false)
	assert.NoError(t, err)
	assert.Equal(t, "hello", info.Content)

	assert.NoError(t, be.Shutdown(ctx))
}
