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

package database

import (
	"time"

	"github.com/tandem-team/tandem/pkg/document"
)

// DocInfo is a stored document.
type DocInfo struct {
	// ID is the document key.
	ID string `bson:"_id" json:"id" yaml:"id"`

	// Content is the text of the document at Version.
	Content string `bson:"content" json:"content" yaml:"content"`

	// Version is the number of edits applied to the document.
	Version uint64 `bson:"version" json:"version" yaml:"version"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt" yaml:"updatedAt"`
}

// NewDocInfo returns an empty document created at now.
func NewDocInfo(docKey string, now time.Time) *DocInfo {
	return &DocInfo{
		ID:        docKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeepCopy returns a copy of this DocInfo.
func (info *DocInfo) DeepCopy() *DocInfo {
	if info == nil {
		return nil
	}

	clone := *info
	return &clone
}

// State returns the document state this record describes.
func (info *DocInfo) State() document.State {
	return document.New(info.ID, info.Content, info.Version)
}

// Apply copies a snapshot into the record if it is not older than the
// record. It reports false for a stale snapshot.
func (info *DocInfo) Apply(snapshot *SnapshotInfo) bool {
	if snapshot.Version < info.Version {
		return false
	}

	info.Content = snapshot.Content
	info.Version = snapshot.Version
	info.UpdatedAt = snapshot.SavedAt
	return true
}

// SnapshotInfo is the content of a document at a version, as written back
// by a session.
type SnapshotInfo struct {
	DocumentID string
	Content    string
	Version    uint64
	SavedAt    time.Time
}

// NewSnapshotInfo builds a SnapshotInfo from a document snapshot.
func NewSnapshotInfo(snapshot document.Snapshot, savedAt time.Time) *SnapshotInfo {
	return &SnapshotInfo{
		DocumentID: snapshot.DocumentID,
		Content:    snapshot.Content,
		Version:    snapshot.Version,
		SavedAt:    savedAt,
	}
}
