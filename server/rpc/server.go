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

// Package rpc is the network gateway of Tandem. Clients edit documents over
// WebSocket connections carrying JSON messages, and operators list the live
// sessions through a small JSON API.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/tandem-team/tandem/server/backend"
	"github.com/tandem-team/tandem/server/logging"
	"github.com/tandem-team/tandem/server/sessions"
)

// shutdownTimeout bounds a graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// Server is a normal server that processes the logic requested by the client.
type Server struct {
	conf         *Config
	be           *backend.Backend
	hub          *Hub
	upgrader     websocket.Upgrader
	httpServer   *http.Server
	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend) *Server {
	s := &Server{
		conf: conf,
		be:   be,
		hub:  NewHub(be.Metrics),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		pingInterval: conf.ParsePingInterval(),
		writeTimeout: conf.ParseWriteTimeout(),
	}
	s.hub.live = func(docKey, sessionID string) bool {
		session, ok := be.Sessions.Get(docKey)
		return ok && session.ID() == sessionID
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the router of the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws/documents/{docID}", s.serveDocument).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.listSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{docID}", s.getSession).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet, http.MethodHead)
	return r
}

// Hub returns the hub delivering session messages to connections.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts this server by opening the rpc port.
func (s *Server) Start() error {
	return s.listenAndServe()
}

// Shutdown shuts down this server.
func (s *Server) Shutdown(graceful bool) {
	s.hub.Close()

	if !graceful {
		if err := s.httpServer.Close(); err != nil {
			logging.DefaultLogger().Error(err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.DefaultLogger().Errorf("RPC: shutdown: %v", err)
	}
}

func (s *Server) listenAndServe() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.conf.Port))
	if err != nil {
		logging.DefaultLogger().Error(err)
		return err
	}

	go func() {
		logging.DefaultLogger().Infof("serving RPC on %d", s.conf.Port)

		if err := s.httpServer.Serve(lis); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logging.DefaultLogger().Error(err)
			}
		}
	}()

	return nil
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	summaries := s.be.Sessions.Sessions()
	if summaries == nil {
		summaries = []sessions.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	docKey := mux.Vars(r)["docID"]
	session, ok := s.be.Sessions.Get(docKey)
	if !ok || session.Status() == sessions.Destroyed {
		writeError(w, fmt.Errorf("session of %s: %w", docKey, sessions.ErrSessionNotFound))
		return
	}
	writeJSON(w, http.StatusOK, session.Summary())
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "SERVING"})
}
