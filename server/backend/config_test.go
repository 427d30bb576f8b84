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

package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tandem-team/tandem/server/backend"
)

func newValidBackendConf() backend.Config {
	return backend.Config{
		SessionGracePeriod:    "10s",
		LockTTL:               "30s",
		EnableLocking:         true,
		IdleThreshold:         "1m",
		DisconnectThreshold:   "90s",
		TypingTimeout:         "1s",
		HistorySize:           1000,
		SnapshotFlushInterval: "5s",
	}
}

func TestConfig(t *testing.T) {
	t.Run("validate test", func(t *testing.T) {
		validConf := newValidBackendConf()
		assert.NoError(t, validConf.Validate())

		conf1 := validConf
		conf1.LockTTL = "s"
		assert.Error(t, conf1.Validate())

		conf2 := validConf
		conf2.SessionGracePeriod = "10 seconds"
		assert.Error(t, conf2.Validate())

		conf3 := validConf
		conf3.HistorySize = 0
		assert.Error(t, conf3.Validate())

		conf4 := validConf
		conf4.IdleThreshold = "2m"
		assert.Error(t, conf4.Validate())

		conf5 := validConf
		conf5.TypingTimeout = "0s"
		assert.Error(t, conf5.Validate())
	})

	t.Run("parse test", func(t *testing.T) {
		validConf := newValidBackendConf()

		assert.Equal(t, "10s", validConf.ParseSessionGracePeriod().String())
		assert.Equal(t, "30s", validConf.ParseLockTTL().String())
		assert.Equal(t, "1m0s", validConf.ParseIdleThreshold().String())
		assert.Equal(t, "1m30s", validConf.ParseDisconnectThreshold().String())
		assert.Equal(t, "1s", validConf.ParseTypingTimeout().String())
		assert.Equal(t, "5s", validConf.ParseSnapshotFlushInterval().String())
	})
}
