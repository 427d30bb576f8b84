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

package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tandem-team/tandem/pkg/errors"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code       errors.StatusCode
		name       string
		httpStatus int
		client     bool
	}{
		{errors.ErrCodeInvalidArgument, "invalid_argument", http.StatusBadRequest, true},
		{errors.ErrCodeNotFound, "not_found", http.StatusNotFound, true},
		{errors.ErrCodeFailedPrecondition, "failed_precondition", http.StatusConflict, true},
		{errors.ErrCodeUnavailable, "unavailable", http.StatusServiceUnavailable, false},
		{errors.ErrCodeInternal, "internal", http.StatusInternalServerError, false},
		{errors.StatusCode(999), "code_999", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.code.String())
			assert.Equal(t, tt.httpStatus, tt.code.HTTPStatus())
			assert.Equal(t, tt.client, tt.code.IsClientError())
		})
	}
}

func TestStatusError(t *testing.T) {
	errVersionAhead := errors.FailedPrecond("base version is ahead").WithCode("ErrVersionAhead")

	t.Run("status and code survive wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("submit: %w", errVersionAhead)
		assert.Equal(t, errors.ErrCodeFailedPrecondition, errors.StatusOf(wrapped))
		assert.Equal(t, "ErrVersionAhead", errors.CodeOf(wrapped))
		assert.ErrorIs(t, wrapped, errVersionAhead)
	})

	t.Run("plain errors have no status", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, errors.StatusCode(0), errors.StatusOf(err))
		assert.Equal(t, "", errors.CodeOf(err))
		assert.False(t, errors.IsStatus(err, errors.ErrCodeInternal))
	})

	t.Run("different codes do not match", func(t *testing.T) {
		other := errors.FailedPrecond("base version is ahead").WithCode("ErrOther")
		assert.NotErrorIs(t, other, errVersionAhead)
	})
}

func TestMetadata(t *testing.T) {
	base := errors.NotFound("document not found").WithCode("ErrDocumentNotFound")

	t.Run("attach and read", func(t *testing.T) {
		err := errors.WithMetadata(base, map[string]string{"doc": "d1"})
		assert.Equal(t, map[string]string{"doc": "d1"}, errors.Metadata(err))
		assert.Equal(t, errors.ErrCodeNotFound, errors.StatusOf(err))
	})

	t.Run("merge keeps earlier keys", func(t *testing.T) {
		err := errors.WithMetadata(base, map[string]string{"doc": "d1"})
		err = errors.WithMetadata(err, map[string]string{"version": "7"})
		assert.Equal(t, map[string]string{"doc": "d1", "version": "7"}, errors.Metadata(err))
	})

	t.Run("nil and empty", func(t *testing.T) {
		assert.NoError(t, errors.WithMetadata(nil, map[string]string{"a": "b"}))
		assert.Equal(t, base, errors.WithMetadata(base, nil))
		assert.Nil(t, errors.Metadata(base))
	})
}
