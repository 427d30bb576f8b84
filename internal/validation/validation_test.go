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

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateValue(t *testing.T) {
	tests := []struct {
		value string
		tag   string
		fails string
	}{
		{"notes", "required,document_key,max=120", ""},
		{"workspace/notes:42", "required,document_key,max=120", ""},
		{"bad key", "required,document_key,max=120", "document_key"},
		{"", "required,document_key,max=120", "required"},
		{"alice@example.com", "required,participant_id", ""},
		{"alice bob", "required,participant_id", "participant_id"},
		{"1m30s", "duration", ""},
		{"one hour", "duration", "duration"},
	}

	for _, tt := range tests {
		t.Run(tt.value+"/"+tt.tag, func(t *testing.T) {
			err := ValidateValue(tt.value, tt.tag)
			if tt.fails == "" {
				assert.NoError(t, err)
				return
			}
			violation, ok := err.(Violation)
			if assert.True(t, ok) {
				assert.Equal(t, tt.fails, violation.Tag)
				assert.NotEmpty(t, violation.Error())
			}
		})
	}
}

func TestValidateStruct(t *testing.T) {
	type join struct {
		DocumentKey string `validate:"required,document_key"`
		UserID      string `validate:"required,participant_id"`
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(join{DocumentKey: "notes", UserID: "alice"}))
	})

	t.Run("violations are collected", func(t *testing.T) {
		err := ValidateStruct(join{DocumentKey: "bad key"})
		structErr, ok := err.(*StructError)
		if assert.True(t, ok) {
			assert.Len(t, structErr.Violations, 2)
			assert.Equal(t, "DocumentKey", structErr.Violations[0].Field)
			assert.Contains(t, structErr.Error(), "DocumentKey must only contain")
		}
	})
}

func TestCustomRule(t *testing.T) {
	assert.NoError(t, RegisterValidation("even_length", func(level FieldLevel) bool {
		return len(level.Field().String())%2 == 0
	}))
	assert.NoError(t, RegisterTranslation("even_length", "{0} must have an even length"))

	assert.NoError(t, ValidateValue("ab", "even_length"))
	err := ValidateValue("abc", "even_length")
	assert.Error(t, err)
	assert.Equal(t, "even_length", err.(Violation).Tag)
}
