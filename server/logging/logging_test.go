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

package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/tandem-team/tandem/server/logging"
)

func TestLogging(t *testing.T) {
	t.Run("set log level", func(t *testing.T) {
		assert.NoError(t, logging.SetLogLevel("warn"))
		assert.False(t, logging.Enabled(zapcore.InfoLevel))
		assert.True(t, logging.Enabled(zapcore.ErrorLevel))

		assert.Error(t, logging.SetLogLevel("verbose"))
		assert.NoError(t, logging.SetLogLevel("info"))
		assert.True(t, logging.Enabled(zapcore.InfoLevel))
	})

	t.Run("context carries the logger", func(t *testing.T) {
		logger := logging.New("test", logging.NewField("doc", "d1"))
		ctx := logging.With(context.Background(), logger)
		assert.Equal(t, logger, logging.From(ctx))
		assert.Equal(t, logging.DefaultLogger(), logging.From(context.Background()))
	})
}
