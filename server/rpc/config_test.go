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

package rpc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tandem-team/tandem/server/rpc"
)

func newValidRPCConf() rpc.Config {
	return rpc.Config{
		Port:            8080,
		MaxMessageBytes: 1 << 20,
		SendQueueSize:   256,
		WriteTimeout:    "10s",
		PingInterval:    "30s",
	}
}

func TestConfig(t *testing.T) {
	validConf := newValidRPCConf()
	assert.NoError(t, validConf.Validate())

	conf1 := validConf
	conf1.Port = -1
	assert.ErrorIs(t, conf1.Validate(), rpc.ErrInvalidRPCPort)

	conf2 := validConf
	conf2.MaxMessageBytes = 0
	assert.ErrorIs(t, conf2.Validate(), rpc.ErrInvalidMaxMessageBytes)

	conf3 := validConf
	conf3.SendQueueSize = 0
	assert.ErrorIs(t, conf3.Validate(), rpc.ErrInvalidSendQueueSize)

	conf4 := validConf
	conf4.WriteTimeout = "10"
	assert.Error(t, conf4.Validate())

	conf5 := validConf
	conf5.PingInterval = "ping"
	assert.Error(t, conf5.Validate())

	assert.Equal(t, "10s", validConf.ParseWriteTimeout().String())
	assert.Equal(t, "30s", validConf.ParsePingInterval().String())
}
