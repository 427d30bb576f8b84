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

// Package testcases contains testcases shared by every database
// implementation.
package testcases

import (
	"context"
	"fmt"
	"testing"
	gotime "time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"

	"github.com/tandem-team/tandem/server/backend/database"
)

// newDocKey returns a key that does not collide between test runs against
// a shared database.
func newDocKey(t *testing.T) string {
	return fmt.Sprintf("tc-%s-%s", t.Name(), xid.New().String())
}

// RunFindDocInfoTest runs the FindDocInfo test for the given db.
func RunFindDocInfoTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("find missing document test", func(t *testing.T) {
		_, err := db.FindDocInfo(ctx, newDocKey(t), false)
		assert.ErrorIs(t, err, database.ErrDocumentNotFound)
	})

	t.Run("create document if not exist test", func(t *testing.T) {
		docKey := newDocKey(t)

		info, err := db.FindDocInfo(ctx, docKey, true)
		assert.NoError(t, err)
		assert.Equal(t, docKey, info.ID)
		assert.Equal(t, "", info.Content)
		assert.Equal(t, uint64(0), info.Version)

		found, err := db.FindDocInfo(ctx, docKey, false)
		assert.NoError(t, err)
		assert.Equal(t, docKey, found.ID)
	})
}

// RunUpdateDocSnapshotTest runs the UpdateDocSnapshot test for the given db.
func RunUpdateDocSnapshotTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("store and reload snapshot test", func(t *testing.T) {
		docKey := newDocKey(t)
		_, err := db.FindDocInfo(ctx, docKey, true)
		assert.NoError(t, err)

		assert.NoError(t, db.UpdateDocSnapshot(ctx, &database.SnapshotInfo{
			DocumentID: docKey,
			Content:    "Hello, world",
			Version:    12,
			SavedAt:    gotime.Now(),
		}))

		info, err := db.FindDocInfo(ctx, docKey, false)
		assert.NoError(t, err)
		assert.Equal(t, "Hello, world", info.Content)
		assert.Equal(t, uint64(12), info.Version)
	})

	t.Run("snapshot creates a missing document test", func(t *testing.T) {
		docKey := newDocKey(t)
		assert.NoError(t, db.UpdateDocSnapshot(ctx, &database.SnapshotInfo{
			DocumentID: docKey,
			Content:    "abc",
			Version:    3,
			SavedAt:    gotime.Now(),
		}))

		info, err := db.FindDocInfo(ctx, docKey, false)
		assert.NoError(t, err)
		assert.Equal(t, "abc", info.Content)
	})

	t.Run("reject stale snapshot test", func(t *testing.T) {
		docKey := newDocKey(t)
		assert.NoError(t, db.UpdateDocSnapshot(ctx, &database.SnapshotInfo{
			DocumentID: docKey,
			Content:    "abcd",
			Version:    4,
			SavedAt:    gotime.Now(),
		}))

		err := db.UpdateDocSnapshot(ctx, &database.SnapshotInfo{
			DocumentID: docKey,
			Content:    "ab",
			Version:    2,
			SavedAt:    gotime.Now(),
		})
		assert.ErrorIs(t, err, database.ErrConflictOnUpdate)

		// the same version is written again on a retried flush.
		assert.NoError(t, db.UpdateDocSnapshot(ctx, &database.SnapshotInfo{
			DocumentID: docKey,
			Content:    "abcd",
			Version:    4,
			SavedAt:    gotime.Now(),
		}))

		info, err := db.FindDocInfo(ctx, docKey, false)
		assert.NoError(t, err)
		assert.Equal(t, "abcd", info.Content)
		assert.Equal(t, uint64(4), info.Version)
	})
}

// RunListDocInfosTest runs the ListDocInfos test for the given db.
func RunListDocInfosTest(t *testing.T, db database.Database) {
	ctx := context.Background()

	t.Run("list with limit test", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := db.FindDocInfo(ctx, newDocKey(t), true)
			assert.NoError(t, err)
		}

		infos, err := db.ListDocInfos(ctx, 2)
		assert.NoError(t, err)
		assert.Len(t, infos, 2)
		assert.LessOrEqual(t, infos[0].ID, infos[1].ID)

		infos, err = db.ListDocInfos(ctx, 0)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, len(infos), 3)
	})
}
