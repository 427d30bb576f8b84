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
	"sync"
	"sync/atomic"

	"github.com/tandem-team/tandem/pkg/cmap"
	"github.com/tandem-team/tandem/server/logging"
	"github.com/tandem-team/tandem/server/profiling/prometheus"
	"github.com/tandem-team/tandem/server/sessions"
)

// maxPendingMessages bounds the messages a sequencer holds while waiting
// for a missing Seq. Past it the gap is skipped.
const maxPendingMessages = 1024

type connKey struct {
	docKey string
	userID string
}

// pending is a broadcast waiting for its turn. then runs right after it is
// delivered.
type pending struct {
	broadcast sessions.Broadcast
	then      func()
}

// sequencer restores the order in which a session produced its messages.
// Broadcasts are handed to the hub by many goroutines, so they may arrive
// out of Seq order.
type sequencer struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]pending

	// stale is set by Prune and cleared by every push.
	stale atomic.Bool
}

func newSequencer() *sequencer {
	return &sequencer{
		next:    1,
		pending: make(map[uint64]pending),
	}
}

// push adds p and returns the broadcasts that are now deliverable, in
// order. Callers deliver them while holding mu. A broadcast older than the
// next expected one is returned as is, so its then still runs.
func (s *sequencer) push(p pending) []pending {
	s.stale.Store(false)

	seq := p.broadcast.Message.Seq
	if seq < s.next {
		return []pending{{then: p.then}}
	}
	s.pending[seq] = p

	if len(s.pending) > maxPendingMessages {
		lowest := seq
		for pendingSeq := range s.pending {
			if pendingSeq < lowest {
				lowest = pendingSeq
			}
		}
		logging.DefaultLogger().Warnf(
			"RPC: session %s skipped messages %d..%d",
			p.broadcast.Message.SessionID, s.next, lowest-1,
		)
		s.next = lowest
	}

	var ready []pending
	for {
		next, ok := s.pending[s.next]
		if !ok {
			break
		}
		delete(s.pending, s.next)
		ready = append(ready, next)
		s.next++
	}
	return ready
}

// Hub routes session broadcasts to the connections of their recipients.
type Hub struct {
	metrics    *prometheus.Metrics
	conns      *cmap.Map[connKey, *conn]
	sequencers *cmap.Map[string, *sequencer]

	// live reports whether the session is still registered. A nil live
	// treats every session as live.
	live func(docKey, sessionID string) bool
}

// NewHub creates an empty Hub.
func NewHub(metrics *prometheus.Metrics) *Hub {
	return &Hub{
		metrics:    metrics,
		conns:      cmap.New[connKey, *conn](),
		sequencers: cmap.New[string, *sequencer](),
	}
}

// register makes c the connection of its user on its document and returns
// the connection it replaced, if any.
func (h *Hub) register(c *conn) *conn {
	var replaced *conn
	h.conns.Upsert(connKey{docKey: c.docKey, userID: c.userID}, func(prev *conn, exists bool) *conn {
		if exists && prev != c {
			replaced = prev
		}
		return c
	})
	return replaced
}

// unregister removes c and reports whether it was still the connection of
// its user. Only then should the user leave the session.
func (h *Hub) unregister(c *conn) bool {
	return h.conns.Delete(connKey{docKey: c.docKey, userID: c.userID}, func(current *conn, _ bool) bool {
		return current == c
	})
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	return h.conns.Len()
}

// Dispatch delivers broadcasts to their recipients in the Seq order of each
// session.
func (h *Hub) Dispatch(broadcasts []sessions.Broadcast) {
	h.DispatchThen(broadcasts, nil)
}

// DispatchThen is Dispatch, and runs then once the last of broadcasts was
// delivered. A reply sent from then cannot overtake messages the session
// produced before it. then runs at once when broadcasts is empty.
func (h *Hub) DispatchThen(broadcasts []sessions.Broadcast, then func()) {
	if len(broadcasts) == 0 {
		if then != nil {
			then()
		}
		return
	}

	for i, b := range broadcasts {
		p := pending{broadcast: b}
		if i == len(broadcasts)-1 {
			p.then = then
		}

		if h.retired(b) {
			logging.DefaultLogger().Debugf(
				"RPC: drop %s %d of retired session %s",
				b.Message.Type, b.Message.Seq, b.Message.SessionID,
			)
			if p.then != nil {
				p.then()
			}
			continue
		}

		seq, _ := h.sequencers.LoadOrStore(b.Message.SessionID, newSequencer)
		seq.mu.Lock()
		for _, ready := range seq.push(p) {
			if ready.broadcast.Message.SessionID != "" {
				h.deliver(ready.broadcast)
			}
			if ready.then != nil {
				ready.then()
			}
		}
		seq.mu.Unlock()
	}
}

// retired reports whether b belongs to a session that is gone and whose
// sequencer was pruned. A fresh sequencer would wait for Seq 1 forever.
func (h *Hub) retired(b sessions.Broadcast) bool {
	if h.live == nil || b.Message.Seq <= 1 {
		return false
	}
	if _, ok := h.sequencers.Get(b.Message.SessionID); ok {
		return false
	}
	return !h.live(b.Message.DocumentID, b.Message.SessionID)
}

func (h *Hub) deliver(b sessions.Broadcast) {
	h.metrics.AddBroadcast(string(b.Message.Type))

	for _, userID := range b.Recipients {
		c, ok := h.conns.Get(connKey{docKey: b.Message.DocumentID, userID: userID})
		if !ok {
			continue
		}
		c.deliver(b.Message)
	}
}

// Prune forgets the sequencers of sessions that are not in live and saw no
// message since the previous Prune. The second condition protects sessions
// created after live was taken.
func (h *Hub) Prune(live []string) int {
	alive := make(map[string]bool, len(live))
	for _, id := range live {
		alive[id] = true
	}

	pruned := 0
	for _, id := range h.sequencers.Keys() {
		if alive[id] {
			continue
		}
		if h.sequencers.Delete(id, func(seq *sequencer, _ bool) bool {
			return !seq.stale.CompareAndSwap(false, true)
		}) {
			pruned++
		}
	}
	return pruned
}

// Close disconnects every connection.
func (h *Hub) Close() {
	for _, c := range h.conns.Values() {
		c.close()
	}
}
