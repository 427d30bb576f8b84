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

package database_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tandem-team/tandem/pkg/document"
	"github.com/tandem-team/tandem/server/backend/database"
)

func TestDocInfo(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("deep copy", func(t *testing.T) {
		info := database.NewDocInfo("d1", now)
		clone := info.DeepCopy()
		clone.Content = "changed"
		assert.Equal(t, "", info.Content)

		var nilInfo *database.DocInfo
		assert.Nil(t, nilInfo.DeepCopy())
	})

	t.Run("apply rejects stale snapshots", func(t *testing.T) {
		info := &database.DocInfo{ID: "d1", Content: "abc", Version: 3}

		assert.False(t, info.Apply(&database.SnapshotInfo{DocumentID: "d1", Content: "ab", Version: 2}))
		assert.Equal(t, "abc", info.Content)

		snapshot := database.NewSnapshotInfo(document.Snapshot{DocumentID: "d1", Content: "abcd", Version: 4}, now)
		assert.True(t, info.Apply(snapshot))
		assert.Equal(t, "abcd", info.Content)
		assert.Equal(t, uint64(4), info.Version)
		assert.Equal(t, now, info.UpdatedAt)
	})

	t.Run("state", func(t *testing.T) {
		info := &database.DocInfo{ID: "d1", Content: "abc", Version: 3}
		state := info.State()
		assert.Equal(t, "abc", state.Content())
		assert.Equal(t, uint64(3), state.Version())
		assert.Equal(t, "d1", state.ID())
	})
}
