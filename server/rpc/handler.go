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
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/tandem-team/tandem/internal/validation"
	"github.com/tandem-team/tandem/pkg/errors"
	"github.com/tandem-team/tandem/pkg/presence"
	"github.com/tandem-team/tandem/server/logging"
	"github.com/tandem-team/tandem/server/sessions"
)

// ErrInvalidRequest is the reason of an error reply to a request that
// cannot be decoded or lacks its payload.
var ErrInvalidRequest = errors.InvalidArgument("invalid request").WithCode("ErrInvalidRequest")

// leaveTimeout bounds the Leave run when a connection goes away.
const leaveTimeout = 5 * time.Second

// errorBody is the JSON body of a failed HTTP request.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := errors.StatusOf(err).HTTPStatus()
	code := errors.CodeOf(err)
	if code == "" {
		code = "ErrInternal"
	}

	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.DefaultLogger().Warnf("RPC: write response: %v", err)
	}
}

// serveDocument joins the requesting user to the session of the document
// and runs the connection until either side closes it.
func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request) {
	docKey := mux.Vars(r)["docID"]
	userID := r.URL.Query().Get("user_id")
	displayName := r.URL.Query().Get("display_name")

	if err := validation.ValidateValue(docKey, "required,document_key"); err != nil {
		writeError(w, errors.InvalidArgument("document "+err.Error()).WithCode("ErrInvalidDocumentKey"))
		return
	}
	if err := validation.ValidateValue(userID, "required,participant_id"); err != nil {
		writeError(w, errors.InvalidArgument("user_id "+err.Error()).WithCode("ErrInvalidUserID"))
		return
	}

	// The connection is registered before joining so that no message
	// addressed to the user after the join is missed.
	c := newConn(xid.New().String(), docKey, userID, s.conf.SendQueueSize)
	if replaced := s.hub.register(c); replaced != nil {
		c.logger.Infof("RPC: %s reconnected, closing %s", userID, replaced.id)
		replaced.close()
	}

	session, result, err := s.be.Sessions.Join(r.Context(), docKey, userID, displayName)
	if err != nil {
		s.hub.unregister(c)
		c.logger.Warnf("RPC: join %s: %v", userID, err)
		writeError(w, err)
		return
	}
	s.hub.Dispatch(result.Broadcasts)
	defer s.disconnect(c)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		c.logger.Warnf("RPC: upgrade %s: %v", userID, err)
		return
	}
	c.ws = ws

	s.be.Metrics.AddWebSocketConnection()
	defer s.be.Metrics.RemoveWebSocketConnection()

	c.markReady(snapshotReply(result))

	go s.writePump(c)
	s.readPump(c, session)
}

// disconnect closes c and, unless a newer connection of the same user took
// over, removes the user from the session.
func (s *Server) disconnect(c *conn) {
	c.close()
	if !s.hub.unregister(c) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()

	result, err := s.be.Sessions.Leave(ctx, c.docKey, c.userID)
	if err != nil {
		if !errors.Is(err, sessions.ErrSessionNotFound) && !errors.Is(err, sessions.ErrSessionDestroyed) {
			c.logger.Warnf("RPC: leave %s: %v", c.userID, err)
		}
		return
	}
	s.hub.Dispatch(result.Broadcasts)
}

// readPump reads requests until the connection fails or is closed. Every
// inbound frame, pongs included, counts as a heartbeat.
func (s *Server) readPump(c *conn, session *sessions.Session) {
	pongWait := 2 * s.pingInterval

	c.ws.SetReadLimit(s.conf.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = session.Heartbeat(c.userID)
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debugf("RPC: read %s: %v", c.userID, err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if err := session.Heartbeat(c.userID); err != nil {
			c.logger.Infof("RPC: %s lost its session: %v", c.userID, err)
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(errorReply("", errors.CodeOf(ErrInvalidRequest), err.Error()))
			continue
		}

		if err := s.handleRequest(c, session, req); err != nil {
			c.reply(errorReply(req.RequestID, errors.CodeOf(err), err.Error()))
			if errors.Is(err, sessions.ErrSessionDestroyed) ||
				errors.Is(err, presence.ErrParticipantNotFound) {
				return
			}
		}
	}
}

// handleRequest runs one request. The returned error is sent back as an
// error reply.
func (s *Server) handleRequest(c *conn, session *sessions.Session, req Request) error {
	ctx := context.Background()

	switch req.Type {
	case RequestSubmit:
		if req.Operation == nil {
			return ErrInvalidRequest
		}
		op := *req.Operation
		op.AuthorID = c.userID

		result, err := session.Submit(ctx, op)
		if err != nil {
			return err
		}
		reply := submitReply(req.RequestID, result)
		s.hub.DispatchThen(result.Broadcasts, func() { c.reply(reply) })
	case RequestPresence:
		if req.Presence == nil {
			return ErrInvalidRequest
		}
		result, err := session.UpdatePresence(ctx, c.userID, *req.Presence)
		if err != nil {
			return err
		}
		s.hub.Dispatch(result.Broadcasts)
	case RequestAway:
		if req.Away == nil {
			return ErrInvalidRequest
		}
		result, err := session.UpdatePresence(ctx, c.userID, presence.Update{Away: req.Away})
		if err != nil {
			return err
		}
		s.hub.Dispatch(result.Broadcasts)
	case RequestLock:
		result, err := session.RequestLock(ctx, c.userID)
		if err != nil {
			return err
		}
		reply := lockReply(req.RequestID, result)
		s.hub.DispatchThen(result.Broadcasts, func() { c.reply(reply) })
	case RequestUnlock:
		result, err := session.ReleaseLock(ctx, c.userID)
		if err != nil {
			return err
		}
		reply := releaseReply(req.RequestID, result)
		s.hub.DispatchThen(result.Broadcasts, func() { c.reply(reply) })
	case RequestHeartbeat:
	default:
		return ErrInvalidRequest
	}

	return nil
}

// writePump writes queued messages and pings until the connection is
// closed.
func (s *Server) writePump(c *conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debugf("RPC: write %s: %v", c.userID, err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.writeTimeout),
			)
			return
		}
	}
}
