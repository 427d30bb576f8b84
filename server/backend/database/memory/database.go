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

// Package memory implements the database on top of go-memdb. Documents live
// only as long as the process.
package memory

import (
	"context"
	"fmt"
	gotime "time"

	"github.com/hashicorp/go-memdb"

	"github.com/tandem-team/tandem/server/backend/database"
)

// DB is an in-memory database for testing or temporarily.
type DB struct {
	db *memdb.MemDB
}

// New returns a new in-memory database.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{
		db: memDB,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

// FindDocInfo finds the document of the given key.
func (d *DB) FindDocInfo(
	_ context.Context,
	docKey string,
	createIfNotExist bool,
) (*database.DocInfo, error) {
	txn := d.db.Txn(createIfNotExist)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", docKey)
	if err != nil {
		return nil, fmt.Errorf("find document of %s: %w", docKey, err)
	}
	if raw != nil {
		return raw.(*database.DocInfo).DeepCopy(), nil
	}

	if !createIfNotExist {
		return nil, fmt.Errorf("%s: %w", docKey, database.ErrDocumentNotFound)
	}

	info := database.NewDocInfo(docKey, gotime.Now())
	if err := txn.Insert(tblDocuments, info); err != nil {
		return nil, fmt.Errorf("create document of %s: %w", docKey, err)
	}
	txn.Commit()

	return info.DeepCopy(), nil
}

// UpdateDocSnapshot stores the given snapshot unless a newer one is already
// stored.
func (d *DB) UpdateDocSnapshot(
	_ context.Context,
	snapshot *database.SnapshotInfo,
) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblDocuments, "id", snapshot.DocumentID)
	if err != nil {
		return fmt.Errorf("find document of %s: %w", snapshot.DocumentID, err)
	}

	var info *database.DocInfo
	if raw == nil {
		info = database.NewDocInfo(snapshot.DocumentID, snapshot.SavedAt)
	} else {
		info = raw.(*database.DocInfo).DeepCopy()
	}

	if !info.Apply(snapshot) {
		return fmt.Errorf(
			"%s at %d, stored %d: %w",
			snapshot.DocumentID,
			snapshot.Version,
			info.Version,
			database.ErrConflictOnUpdate,
		)
	}

	if err := txn.Insert(tblDocuments, info); err != nil {
		return fmt.Errorf("update document of %s: %w", snapshot.DocumentID, err)
	}
	txn.Commit()

	return nil
}

// ListDocInfos returns up to limit documents ordered by key.
func (d *DB) ListDocInfos(
	_ context.Context,
	limit int,
) ([]*database.DocInfo, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tblDocuments, "id")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var infos []*database.DocInfo
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		if limit > 0 && len(infos) >= limit {
			break
		}
		infos = append(infos, raw.(*database.DocInfo).DeepCopy())
	}

	return infos, nil
}
