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

// Package ot implements operational transformation for a flat text buffer.
// Operations are inserts and deletes addressed by character position; an
// operation authored against an older version is rebased through every
// operation applied since, then applied.
package ot

import (
	"fmt"

	"github.com/tandem-team/tandem/pkg/document"
)

// ErrOutOfRange is returned when an operation does not fit the buffer.
var ErrOutOfRange = document.ErrOutOfRange

// Apply applies op to state and returns the resulting state. The version of
// the result is always one greater than state's, even for no-ops.
func Apply(state document.State, op Operation) (document.State, error) {
	switch op.Kind {
	case Insert:
		return state.Insert(op.Position, op.Content)
	case Delete:
		return state.Delete(op.Position, op.Length)
	case Retain:
		return state.Advance(), nil
	default:
		return document.State{}, fmt.Errorf("apply %s: %w", op.Kind, ErrInvalidOperation)
	}
}

// Integration is the outcome of integrating one operation.
type Integration struct {
	State document.State

	// Op is the operation as applied, after rebasing.
	Op Operation

	// Depth is the number of concurrent operations op was rebased through.
	Depth int

	// Evicted is the history entry pushed out by this operation, if any.
	Evicted *Entry
}

// Integrate rebases op onto state using the operations recorded in history,
// applies it and records it. History is only modified on success.
func Integrate(state document.State, history *History, op Operation) (*Integration, error) {
	if op.BaseVersion > state.Version() {
		return nil, fmt.Errorf(
			"base %d, current %d: %w",
			op.BaseVersion, state.Version(), ErrVersionAhead,
		)
	}

	concurrent, err := history.Since(op.BaseVersion, state.Version())
	if err != nil {
		return nil, err
	}

	baseLen := state.Len()
	if len(concurrent) > 0 {
		baseLen = concurrent[0].LengthBefore
	}
	if err := checkRange(op, baseLen); err != nil {
		return nil, err
	}

	transformed := op
	for _, e := range concurrent {
		transformed = Transform(transformed, e.Op)
	}

	next, err := Apply(state, transformed)
	if err != nil {
		return nil, err
	}

	result := &Integration{
		State: next,
		Op:    transformed,
		Depth: len(concurrent),
	}
	if evicted, ok := history.Append(Entry{
		Version:      next.Version(),
		Op:           transformed,
		LengthBefore: state.Len(),
	}); ok {
		result.Evicted = &evicted
	}

	return result, nil
}

// checkRange validates op against the buffer length at its base version.
func checkRange(op Operation, length int) error {
	switch op.Kind {
	case Insert:
		if op.Position > length {
			return fmt.Errorf("insert at %d into %d chars: %w", op.Position, length, ErrOutOfRange)
		}
	case Delete:
		if op.Position > length || op.Length > length-op.Position {
			return fmt.Errorf("delete %d at %d from %d chars: %w", op.Length, op.Position, length, ErrOutOfRange)
		}
	}
	return nil
}
