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

package presence_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-team/tandem/pkg/presence"
)

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool {
	return &b
}

func newTracker() *presence.Tracker {
	return presence.NewTracker(presence.Config{
		IdleAfter:       time.Minute,
		TypingTimeout:   time.Second,
		DisconnectAfter: 90 * time.Second,
	})
}

func TestTracker(t *testing.T) {
	t.Run("register and snapshot in join order", func(t *testing.T) {
		tr := newTracker()
		ev := tr.Register("bob", "Bob", t0)
		assert.Equal(t, presence.Joined, ev.Type)
		tr.Register("alice", "", t0.Add(time.Second))

		snap := tr.Snapshot(t0.Add(2 * time.Second))
		require.Len(t, snap, 2)
		assert.Equal(t, "bob", snap[0].UserID)
		assert.Equal(t, "alice", snap[1].UserID)
		assert.Equal(t, "alice", snap[1].DisplayName)
		assert.Equal(t, presence.Active, snap[0].Status)
		assert.NotEqual(t, snap[0].Color, snap[1].Color)
	})

	t.Run("register twice refreshes", func(t *testing.T) {
		tr := newTracker()
		tr.Register("alice", "Alice", t0)
		ev := tr.Register("alice", "Alice L.", t0.Add(time.Second))
		assert.Equal(t, presence.Updated, ev.Type)
		assert.Equal(t, "Alice L.", ev.Participant.DisplayName)
		assert.Equal(t, 1, tr.Len())
	})

	t.Run("typing expires", func(t *testing.T) {
		tr := newTracker()
		tr.Register("alice", "Alice", t0)

		ev, err := tr.Update("alice", presence.Update{Typing: boolPtr(true)}, t0)
		require.NoError(t, err)
		assert.Equal(t, presence.Typing, ev.Participant.Status)

		p, _ := tr.Get("alice", t0.Add(500*time.Millisecond))
		assert.Equal(t, presence.Typing, p.Status)

		p, _ = tr.Get("alice", t0.Add(1500*time.Millisecond))
		assert.Equal(t, presence.Active, p.Status)

		ev, err = tr.Update("alice", presence.Update{Typing: boolPtr(true)}, t0.Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, presence.Typing, ev.Participant.Status)
		ev, err = tr.Update("alice", presence.Update{Typing: boolPtr(false)}, t0.Add(2100*time.Millisecond))
		require.NoError(t, err)
		assert.Equal(t, presence.Active, ev.Participant.Status)
	})

	t.Run("idle and away", func(t *testing.T) {
		tr := newTracker()
		tr.Register("alice", "Alice", t0)

		p, _ := tr.Get("alice", t0.Add(time.Minute))
		assert.Equal(t, presence.Idle, p.Status)

		require.NoError(t, tr.Touch("alice", true, t0.Add(time.Minute)))
		p, _ = tr.Get("alice", t0.Add(time.Minute))
		assert.Equal(t, presence.Active, p.Status)

		ev, err := tr.Update("alice", presence.Update{Away: boolPtr(true)}, t0.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, presence.Away, ev.Participant.Status)

		ev, err = tr.Update("alice", presence.Update{Away: boolPtr(false)}, t0.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, presence.Active, ev.Participant.Status)
	})

	t.Run("heartbeat does not reset idle", func(t *testing.T) {
		tr := newTracker()
		tr.Register("alice", "Alice", t0)
		require.NoError(t, tr.Touch("alice", false, t0.Add(time.Minute)))

		p, _ := tr.Get("alice", t0.Add(time.Minute))
		assert.Equal(t, presence.Idle, p.Status)
		assert.Equal(t, t0.Add(time.Minute), p.LastSeen)
	})

	t.Run("cursor", func(t *testing.T) {
		tr := newTracker()
		tr.Register("alice", "Alice", t0)

		cursor := &presence.Cursor{Position: 4, SelectionStart: 2, SelectionEnd: 4}
		ev, err := tr.Update("alice", presence.Update{Cursor: cursor}, t0)
		require.NoError(t, err)
		assert.Equal(t, cursor, ev.Participant.Cursor)

		cursor.Position = 9
		p, _ := tr.Get("alice", t0)
		assert.Equal(t, 4, p.Cursor.Position)

		_, err = tr.Update("alice", presence.Update{
			Cursor: &presence.Cursor{Position: 1, SelectionStart: 5, SelectionEnd: 2},
		}, t0)
		assert.Error(t, err)
	})

	t.Run("unknown participant", func(t *testing.T) {
		tr := newTracker()
		_, err := tr.Update("ghost", presence.Update{Typing: boolPtr(true)}, t0)
		assert.ErrorIs(t, err, presence.ErrParticipantNotFound)
		assert.ErrorIs(t, tr.Touch("ghost", false, t0), presence.ErrParticipantNotFound)
		_, ok := tr.Remove("ghost")
		assert.False(t, ok)
	})

	t.Run("remove", func(t *testing.T) {
		tr := newTracker()
		tr.Register("alice", "Alice", t0)
		ev, ok := tr.Remove("alice")
		assert.True(t, ok)
		assert.Equal(t, presence.Left, ev.Type)
		assert.Equal(t, 0, tr.Len())
	})

	t.Run("user ids", func(t *testing.T) {
		tr := newTracker()
		tr.Register("carol", "", t0)
		tr.Register("alice", "", t0)
		tr.Register("bob", "", t0)
		assert.Equal(t, []string{"alice", "carol"}, tr.UserIDs("bob"))
	})
}

func TestSweep(t *testing.T) {
	tr := newTracker()
	tr.Register("alice", "Alice", t0)
	tr.Register("bob", "Bob", t0)
	_, err := tr.Update("bob", presence.Update{Typing: boolPtr(true)}, t0)
	require.NoError(t, err)

	events := tr.Sweep(t0.Add(2 * time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, "bob", events[0].Participant.UserID)
	assert.Equal(t, presence.Active, events[0].Participant.Status)

	assert.Empty(t, tr.Sweep(t0.Add(3*time.Second)))

	require.NoError(t, tr.Touch("bob", false, t0.Add(80*time.Second)))
	events = tr.Sweep(t0.Add(90 * time.Second))
	require.Len(t, events, 2)
	assert.Equal(t, presence.Left, events[0].Type)
	assert.Equal(t, "alice", events[0].Participant.UserID)
	assert.Equal(t, presence.Updated, events[1].Type)
	assert.Equal(t, presence.Idle, events[1].Participant.Status)
	assert.Equal(t, 1, tr.Len())
}

func TestColors(t *testing.T) {
	t.Run("active participants never share a color", func(t *testing.T) {
		tr := newTracker()
		for i := 0; i < len(presence.Palette); i++ {
			tr.Register(fmt.Sprintf("user-%d", i), "", t0)
		}

		seen := map[string]bool{}
		for _, p := range tr.Snapshot(t0) {
			assert.False(t, seen[p.Color], p.Color)
			seen[p.Color] = true
		}
	})

	t.Run("color is stable across reconnects", func(t *testing.T) {
		tr := newTracker()
		first := tr.Register("alice", "", t0).Participant.Color
		tr.Remove("alice")
		bob := tr.Register("bob", "", t0).Participant.Color
		again := tr.Register("alice", "", t0).Participant.Color
		if bob != first {
			assert.Equal(t, first, again)
		} else {
			assert.NotEqual(t, first, again)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a := newTracker().Register("alice", "", t0).Participant.Color
		b := newTracker().Register("alice", "", t0).Participant.Color
		assert.Equal(t, a, b)
	})
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(presence.Participant{UserID: "alice", Status: presence.Typing})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"typing"`)

	var p presence.Participant
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, presence.Typing, p.Status)
}

func TestTrackerConcurrency(t *testing.T) {
	tr := newTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			tr.Register(id, "", t0)
			for j := 0; j < 50; j++ {
				_, _ = tr.Update(id, presence.Update{Cursor: &presence.Cursor{Position: j, SelectionStart: j, SelectionEnd: j}}, t0)
				_ = tr.Snapshot(t0)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, tr.Len())
}
