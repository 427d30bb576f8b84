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

package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-team/tandem/pkg/lock"
	"github.com/tandem-team/tandem/pkg/presence"
	"github.com/tandem-team/tandem/server/sessions"
)

func sampleSummaries(now time.Time) []sessions.Summary {
	return []sessions.Summary{{
		SessionID:  "s1",
		DocumentID: "notes",
		Status:     sessions.Active,
		Version:    7,
		Length:     13,
		Participants: []presence.Participant{
			{UserID: "alice"},
			{UserID: "bob"},
		},
		Lock:      &lock.Lock{HolderID: "bob", ExpiresAt: now.Add(30 * time.Second)},
		CreatedAt: now.Add(-time.Minute),
	}}
}

func TestPrintSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("table test", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printSessions(&buf, sampleSummaries(now), "", now))

		out := buf.String()
		assert.Contains(t, out, "DOCUMENT")
		assert.Contains(t, out, "notes")
		assert.Contains(t, out, "alice,bob")
		assert.Contains(t, out, "active")
		assert.Contains(t, out, "1m0s")
	})

	t.Run("json test", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printSessions(&buf, sampleSummaries(now), "json", now))

		var decoded []sessions.Summary
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, uint64(7), decoded[0].Version)
	})

	t.Run("yaml test", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printSessions(&buf, sampleSummaries(now), "yaml", now))
		assert.Contains(t, buf.String(), "documentId: notes")
	})

	t.Run("invalid output test", func(t *testing.T) {
		assert.Error(t, printSessions(&bytes.Buffer{}, nil, "xml", now))
	})
}

func TestGetJSON(t *testing.T) {
	now := time.Now()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/api/sessions" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(errorBody{Code: "ErrSessionNotFound", Message: "session not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(sampleSummaries(now))
	}))
	defer ts.Close()

	Addr = strings.TrimPrefix(ts.URL, "http://")

	var summaries []sessions.Summary
	require.NoError(t, getJSON("/api/sessions", &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "notes", summaries[0].DocumentID)

	err := getJSON("/api/sessions/missing", &summaries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ErrSessionNotFound")
}
