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

package server_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-team/tandem/server"
)

func TestServer(t *testing.T) {
	t.Run("start and shutdown test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.RPC.Port = 21101
		conf.Profiling = nil
		conf.Housekeeping.Interval = "50ms"
		conf.Backend.CreateDocumentIfNotExist = true

		tandem, err := server.New(conf)
		require.NoError(t, err)
		require.NoError(t, tandem.Start())

		url := "ws://" + tandem.RPCAddr() + "/ws/documents/notes?user_id=alice"
		var ws *websocket.Conn
		assert.Eventually(t, func() bool {
			ws, _, err = websocket.DefaultDialer.Dial(url, nil)
			return err == nil
		}, 5*time.Second, 50*time.Millisecond)
		require.NotNil(t, ws)

		var snapshot map[string]interface{}
		require.NoError(t, ws.ReadJSON(&snapshot))
		assert.Equal(t, "snapshot", snapshot["type"])
		require.NoError(t, ws.Close())

		assert.NoError(t, tandem.Shutdown(true))
		select {
		case <-tandem.ShutdownCh():
		default:
			t.Fatal("shutdown channel is not closed")
		}
		assert.NoError(t, tandem.Shutdown(true))
	})

	t.Run("invalid config test", func(t *testing.T) {
		conf := server.NewConfig()
		conf.RPC.Port = 0
		_, err := server.New(conf)
		assert.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "65535"))
	})
}

func TestHousekeepingFlush(t *testing.T) {
	conf := server.NewConfig()
	conf.RPC.Port = 21102
	conf.Profiling = nil
	conf.Backend.SnapshotFlushInterval = "50ms"
	conf.Backend.CreateDocumentIfNotExist = true

	tandem, err := server.New(conf)
	require.NoError(t, err)
	require.NoError(t, tandem.Start())
	defer func() {
		assert.NoError(t, tandem.Shutdown(false))
	}()

	url := "ws://" + tandem.RPCAddr() + "/ws/documents/flushed?user_id=alice"
	var ws *websocket.Conn
	assert.Eventually(t, func() bool {
		ws, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	require.NotNil(t, ws)
	defer func() { _ = ws.Close() }()

	var msg map[string]interface{}
	require.NoError(t, ws.ReadJSON(&msg))
	require.NoError(t, ws.WriteJSON(map[string]interface{}{
		"type":      "submit",
		"requestId": "r1",
		"operation": map[string]interface{}{"id": "a-1", "kind": "insert", "position": 0, "content": "saved"},
	}))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "ack", msg["type"])

	assert.Eventually(t, func() bool {
		info, err := tandem.FindDocInfo(context.Background(), "flushed")
		return err == nil && info.Content == "saved"
	}, 5*time.Second, 50*time.Millisecond)
}
