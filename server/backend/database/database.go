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

// Package database provides the storage contract of the Tandem server: a
// document record is loaded when a session is created and snapshots are
// written back while it runs and when it is torn down.
package database

import (
	"context"

	"github.com/tandem-team/tandem/pkg/errors"
)

var (
	// ErrDocumentNotFound is returned when the document could not be found.
	ErrDocumentNotFound = errors.NotFound("document not found").WithCode("ErrDocumentNotFound")

	// ErrConflictOnUpdate is returned when a snapshot is older than the one
	// already stored.
	ErrConflictOnUpdate = errors.FailedPrecond("conflict on update").WithCode("ErrConflictOnUpdate")
)

// Database reads and saves documents.
type Database interface {
	// Close all resources of this database.
	Close() error

	// FindDocInfo returns the document with the given key. When
	// createIfNotExist is set, a missing document is created empty at
	// version 0.
	FindDocInfo(ctx context.Context, docKey string, createIfNotExist bool) (*DocInfo, error)

	// UpdateDocSnapshot stores the content and version of a document. A
	// snapshot whose version is lower than the stored one is rejected with
	// ErrConflictOnUpdate.
	UpdateDocSnapshot(ctx context.Context, snapshot *SnapshotInfo) error

	// ListDocInfos returns up to limit documents ordered by key.
	ListDocInfos(ctx context.Context, limit int) ([]*DocInfo, error)
}
