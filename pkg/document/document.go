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

// Package document provides the authoritative text buffer of a collaborative
// document together with its version.
package document

import (
	"fmt"

	"github.com/tandem-team/tandem/pkg/errors"
)

// ErrOutOfRange is returned when an edit addresses characters outside the
// buffer.
var ErrOutOfRange = errors.InvalidArgument("position or length out of range").WithCode("ErrOutOfRange")

// State is an immutable snapshot of a document: its buffer and the number of
// edits applied to reach it. Edits return a new State whose version is one
// greater than the receiver's.
type State struct {
	id      string
	buffer  []rune
	version uint64
}

// New creates a State from stored content.
func New(id string, content string, version uint64) State {
	return State{
		id:      id,
		buffer:  []rune(content),
		version: version,
	}
}

// ID returns the document key.
func (s State) ID() string {
	return s.id
}

// Version returns the number of edits applied to the document.
func (s State) Version() uint64 {
	return s.version
}

// Len returns the buffer length in characters.
func (s State) Len() int {
	return len(s.buffer)
}

// Content returns the buffer as a string.
func (s State) Content() string {
	return string(s.buffer)
}

// Insert returns a new State with text inserted at pos.
func (s State) Insert(pos int, text string) (State, error) {
	if pos < 0 || pos > len(s.buffer) {
		return State{}, fmt.Errorf("insert at %d into %d chars: %w", pos, len(s.buffer), ErrOutOfRange)
	}

	inserted := []rune(text)
	buf := make([]rune, 0, len(s.buffer)+len(inserted))
	buf = append(buf, s.buffer[:pos]...)
	buf = append(buf, inserted...)
	buf = append(buf, s.buffer[pos:]...)

	return State{id: s.id, buffer: buf, version: s.version + 1}, nil
}

// Delete returns a new State with length characters removed from pos.
func (s State) Delete(pos, length int) (State, error) {
	if pos < 0 || length < 0 || pos > len(s.buffer) || length > len(s.buffer)-pos {
		return State{}, fmt.Errorf(
			"delete %d at %d from %d chars: %w",
			length, pos, len(s.buffer), ErrOutOfRange,
		)
	}

	buf := make([]rune, 0, len(s.buffer)-length)
	buf = append(buf, s.buffer[:pos]...)
	buf = append(buf, s.buffer[pos+length:]...)

	return State{id: s.id, buffer: buf, version: s.version + 1}, nil
}

// Advance returns a new State with the same buffer and the next version. It
// records an edit that changes nothing.
func (s State) Advance() State {
	return State{id: s.id, buffer: s.buffer, version: s.version + 1}
}

// Snapshot is the serializable form of a State.
type Snapshot struct {
	DocumentID string `json:"documentId" yaml:"documentId"`
	Content    string `json:"content" yaml:"content"`
	Version    uint64 `json:"version" yaml:"version"`
}

// Snapshot returns the serializable form of s.
func (s State) Snapshot() Snapshot {
	return Snapshot{
		DocumentID: s.id,
		Content:    string(s.buffer),
		Version:    s.version,
	}
}
