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

import "fmt"

// DefaultHistorySize is the number of applied operations a History keeps when
// no capacity is given.
const DefaultHistorySize = 1000

// Entry is an operation as it was applied to a document.
type Entry struct {
	// Version is the document version the operation produced.
	Version uint64

	// Op is the operation after it was rebased.
	Op Operation

	// LengthBefore is the buffer length the operation was applied to.
	LengthBefore int
}

// History is a bounded, contiguous log of applied operations. It is not safe
// for concurrent use; the owning session serializes access.
type History struct {
	capacity int
	entries  []Entry
}

// NewHistory creates a History that retains up to capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity}
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Append records an entry and returns the entry that fell out of the window,
// if any.
func (h *History) Append(e Entry) (Entry, bool) {
	h.entries = append(h.entries, e)
	if len(h.entries) <= h.capacity {
		return Entry{}, false
	}

	evicted := h.entries[0]
	h.entries[0] = Entry{}
	h.entries = h.entries[1:]
	return evicted, true
}

// Since returns the entries that produced versions base+1 through current.
func (h *History) Since(base, current uint64) ([]Entry, error) {
	if base > current {
		return nil, fmt.Errorf("base %d, current %d: %w", base, current, ErrVersionAhead)
	}
	if base == current {
		return nil, nil
	}

	if len(h.entries) == 0 || h.entries[0].Version > base+1 {
		return nil, fmt.Errorf("base %d, current %d: %w", base, current, ErrHistoryTruncated)
	}

	from := int(base + 1 - h.entries[0].Version)
	to := int(current + 1 - h.entries[0].Version)
	if to > len(h.entries) {
		return nil, fmt.Errorf("history ends at %d, current %d: %w",
			h.entries[len(h.entries)-1].Version, current, ErrHistoryTruncated)
	}

	return h.entries[from:to], nil
}

// Oldest returns the version produced by the oldest retained entry, or 0.
func (h *History) Oldest() uint64 {
	if len(h.entries) == 0 {
		return 0
	}
	return h.entries[0].Version
}
