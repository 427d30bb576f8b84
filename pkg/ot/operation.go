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

package ot

import (
	"fmt"
	"unicode/utf8"

	"github.com/tandem-team/tandem/internal/validation"
	"github.com/tandem-team/tandem/pkg/errors"
)

// Kind is the type of an Operation.
type Kind int

// Below are the kinds of operations. The zero value is invalid so that an
// operation decoded without a kind fails validation.
const (
	Insert Kind = iota + 1
	Delete
	Retain
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Retain:
		return "retain"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == Insert || k == Delete || k == Retain
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal %s: %w", k, ErrInvalidOperation)
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "insert":
		*k = Insert
	case "delete":
		*k = Delete
	case "retain":
		*k = Retain
	default:
		return fmt.Errorf("unknown kind %q: %w", text, ErrInvalidOperation)
	}
	return nil
}

// MaxOffset bounds Position and Length of a submitted operation so that
// range arithmetic cannot overflow.
const MaxOffset = 1 << 30

// Operation is a single edit authored against a known document version.
type Operation struct {
	// ID is a client token. Resubmitting the same ID is acknowledged without
	// being applied twice.
	ID string `json:"id" validate:"required,max=128"`

	Kind Kind `json:"kind" validate:"op_kind"`

	// Position is a character offset into the buffer at BaseVersion.
	Position int `json:"position" validate:"gte=0,lte=1073741824"`

	// Content is the inserted text of an Insert.
	Content string `json:"content,omitempty"`

	// Length is the number of characters removed by a Delete.
	Length int `json:"length,omitempty" validate:"gte=0,lte=1073741824"`

	BaseVersion uint64 `json:"baseVersion"`
	AuthorID    string `json:"authorId" validate:"required"`
}

// EffectiveLength returns the number of characters the operation adds or
// removes.
func (o Operation) EffectiveLength() int {
	switch o.Kind {
	case Insert:
		return utf8.RuneCountInString(o.Content)
	case Delete:
		return o.Length
	default:
		return 0
	}
}

// IsNoop reports whether applying the operation leaves the buffer unchanged.
func (o Operation) IsNoop() bool {
	return o.EffectiveLength() == 0
}

// end returns the first position after a Delete's range.
func (o Operation) end() int {
	return o.Position + o.Length
}

// Validate checks the operation as submitted by a client.
func (o Operation) Validate() error {
	if err := validation.ValidateStruct(o); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), ErrInvalidOperation)
	}

	switch o.Kind {
	case Insert:
		if o.Content == "" {
			return fmt.Errorf("insert without content: %w", ErrInvalidOperation)
		}
		if o.Length != 0 {
			return fmt.Errorf("insert with length: %w", ErrInvalidOperation)
		}
	case Delete:
		if o.Length == 0 {
			return fmt.Errorf("delete without length: %w", ErrInvalidOperation)
		}
		if o.Content != "" {
			return fmt.Errorf("delete with content: %w", ErrInvalidOperation)
		}
	}

	return nil
}

// String returns a compact description used in logs.
func (o Operation) String() string {
	switch o.Kind {
	case Insert:
		return fmt.Sprintf("%s:ins(%d,%q)@%d", o.AuthorID, o.Position, o.Content, o.BaseVersion)
	case Delete:
		return fmt.Sprintf("%s:del(%d,%d)@%d", o.AuthorID, o.Position, o.Length, o.BaseVersion)
	default:
		return fmt.Sprintf("%s:%s@%d", o.AuthorID, o.Kind, o.BaseVersion)
	}
}

var (
	// ErrInvalidOperation is returned for operations that are malformed.
	ErrInvalidOperation = errors.InvalidArgument("invalid operation").WithCode("ErrInvalidOperation")

	// ErrVersionAhead is returned when an operation claims a base version the
	// document has not reached.
	ErrVersionAhead = errors.FailedPrecond("base version is ahead of the document").WithCode("ErrVersionAhead")

	// ErrHistoryTruncated is returned when the operations needed to rebase an
	// operation are no longer retained.
	ErrHistoryTruncated = errors.FailedPrecond(
		"base version is older than the retained history",
	).WithCode("ErrHistoryTruncated")
)

func init() {
	if err := validation.RegisterValidation("op_kind", func(level validation.FieldLevel) bool {
		return Kind(level.Field().Int()).Valid()
	}); err != nil {
		panic(err)
	}
	if err := validation.RegisterTranslation(
		"op_kind",
		"{0} must be one of insert, delete or retain",
	); err != nil {
		panic(err)
	}
}
