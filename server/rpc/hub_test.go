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

package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-team/tandem/server/sessions"
)

func broadcast(seq uint64, recipients ...string) sessions.Broadcast {
	return sessions.Broadcast{
		Recipients: recipients,
		Message: sessions.Message{
			Type:       sessions.MessageOperation,
			SessionID:  "s1",
			DocumentID: "doc",
			Seq:        seq,
			Version:    seq,
		},
	}
}

func drain(t *testing.T, c *conn) []map[string]interface{} {
	t.Helper()

	var msgs []map[string]interface{}
	for {
		select {
		case data := <-c.send:
			var msg map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &msg))
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func seqs(msgs []map[string]interface{}) []float64 {
	var result []float64
	for _, msg := range msgs {
		if seq, ok := msg["seq"]; ok {
			result = append(result, seq.(float64))
		}
	}
	return result
}

func readyConn(docKey, userID string, queueSize int) *conn {
	c := newConn(userID+"-conn", docKey, userID, queueSize)
	c.ready = true
	return c
}

func TestHub(t *testing.T) {
	t.Run("delivers in seq order test", func(t *testing.T) {
		hub := NewHub(nil)
		bob := readyConn("doc", "bob", 16)
		assert.Nil(t, hub.register(bob))

		hub.Dispatch([]sessions.Broadcast{broadcast(2, "bob"), broadcast(3, "bob")})
		assert.Empty(t, drain(t, bob))

		hub.Dispatch([]sessions.Broadcast{broadcast(1, "bob")})
		assert.Equal(t, []float64{1, 2, 3}, seqs(drain(t, bob)))
	})

	t.Run("empty recipients still advance the order test", func(t *testing.T) {
		hub := NewHub(nil)
		bob := readyConn("doc", "bob", 16)
		hub.register(bob)

		hub.Dispatch([]sessions.Broadcast{broadcast(2, "bob"), broadcast(1)})
		assert.Equal(t, []float64{2}, seqs(drain(t, bob)))
	})

	t.Run("reply after broadcasts test", func(t *testing.T) {
		hub := NewHub(nil)
		alice := readyConn("doc", "alice", 16)
		hub.register(alice)

		replied := false
		hub.DispatchThen([]sessions.Broadcast{broadcast(2)}, func() {
			replied = true
			alice.reply(Reply{Type: ReplyAck})
		})
		assert.False(t, replied)

		hub.Dispatch([]sessions.Broadcast{broadcast(1, "alice")})
		assert.True(t, replied)

		msgs := drain(t, alice)
		require.Len(t, msgs, 2)
		assert.Equal(t, "operation", msgs[0]["type"])
		assert.Equal(t, "ack", msgs[1]["type"])

		called := false
		hub.DispatchThen(nil, func() { called = true })
		assert.True(t, called)
	})

	t.Run("replaced connection test", func(t *testing.T) {
		hub := NewHub(nil)
		first := readyConn("doc", "alice", 16)
		second := newConn("second", "doc", "alice", 16)
		second.ready = true

		assert.Nil(t, hub.register(first))
		assert.Equal(t, first, hub.register(second))
		assert.Equal(t, 1, hub.Len())

		assert.False(t, hub.unregister(first))
		assert.True(t, hub.unregister(second))
		assert.Equal(t, 0, hub.Len())
	})

	t.Run("slow consumer test", func(t *testing.T) {
		hub := NewHub(nil)
		bob := readyConn("doc", "bob", 1)
		hub.register(bob)

		hub.Dispatch([]sessions.Broadcast{broadcast(1, "bob"), broadcast(2, "bob")})
		assert.True(t, bob.closed())
		assert.Len(t, drain(t, bob), 1)
	})

	t.Run("prune test", func(t *testing.T) {
		hub := NewHub(nil)
		hub.Dispatch([]sessions.Broadcast{broadcast(1)})

		assert.Equal(t, 0, hub.Prune([]string{"s1"}))
		assert.Equal(t, 0, hub.Prune(nil))
		assert.Equal(t, 1, hub.Prune(nil))
	})

	t.Run("late broadcast of a pruned session test", func(t *testing.T) {
		hub := NewHub(nil)
		hub.live = func(docKey, sessionID string) bool {
			return false
		}
		bob := readyConn("doc", "bob", 16)
		hub.register(bob)

		hub.Dispatch([]sessions.Broadcast{broadcast(1, "bob"), broadcast(2, "bob")})
		assert.Equal(t, []float64{1, 2}, seqs(drain(t, bob)))

		assert.Equal(t, 0, hub.Prune(nil))
		assert.Equal(t, 1, hub.Prune(nil))

		replied := false
		hub.DispatchThen([]sessions.Broadcast{broadcast(3, "bob")}, func() { replied = true })
		assert.True(t, replied)
		assert.Empty(t, drain(t, bob))
		assert.Equal(t, 0, hub.sequencers.Len())

		// A live session that is new to the hub still waits for its first
		// message.
		hub.live = func(docKey, sessionID string) bool {
			return true
		}
		hub.Dispatch([]sessions.Broadcast{broadcast(2, "bob")})
		assert.Empty(t, drain(t, bob))
		hub.Dispatch([]sessions.Broadcast{broadcast(1, "bob")})
		assert.Equal(t, []float64{1, 2}, seqs(drain(t, bob)))
	})
}

func TestConnBacklog(t *testing.T) {
	c := newConn("c1", "doc", "bob", 16)

	stale := broadcast(3, "bob").Message
	fresh := broadcast(4, "bob").Message
	c.deliver(stale)
	c.deliver(fresh)
	assert.Empty(t, drain(t, c))

	version := uint64(3)
	c.markReady(Reply{Type: ReplySnapshot, Version: &version})

	msgs := drain(t, c)
	require.Len(t, msgs, 2)
	assert.Equal(t, "snapshot", msgs[0]["type"])
	assert.Equal(t, float64(4), msgs[1]["seq"])
}
