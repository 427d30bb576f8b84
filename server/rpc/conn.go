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
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tandem-team/tandem/server/logging"
	"github.com/tandem-team/tandem/server/sessions"
)

// conn is one client connected to one document. Outbound messages go
// through send; messages that arrive before the snapshot was queued are
// held in backlog.
type conn struct {
	id     string
	docKey string
	userID string
	logger logging.Logger

	ws   *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	ready   bool
	backlog []sessions.Message
}

func newConn(id, docKey, userID string, queueSize int) *conn {
	return &conn{
		id:     id,
		docKey: docKey,
		userID: userID,
		logger: logging.New("conn", logging.NewField("doc", docKey), logging.NewField("cid", id)),
		send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

// close stops the connection. It is safe to call more than once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// markReady queues the snapshot and then the held messages. Operations the
// snapshot already contains are dropped.
func (c *conn) markReady(snapshot Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready = true
	c.enqueueLocked(snapshot)

	for _, msg := range c.backlog {
		if msg.Type == sessions.MessageOperation && snapshot.Version != nil && msg.Version <= *snapshot.Version {
			continue
		}
		c.enqueueLocked(msg)
	}
	c.backlog = nil
}

// deliver queues a broadcast message.
func (c *conn) deliver(msg sessions.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		c.backlog = append(c.backlog, msg)
		return
	}
	c.enqueueLocked(msg)
}

// reply queues a reply to a request of this connection.
func (c *conn) reply(r Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enqueueLocked(r)
}

// enqueueLocked never blocks: a client that does not drain its queue is
// disconnected.
func (c *conn) enqueueLocked(v interface{}) {
	if c.closed() {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Errorf("RPC: marshal outbound message: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warnf("RPC: %s is too slow, closing", c.userID)
		c.close()
	}
}
