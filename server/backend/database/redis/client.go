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

// Package redis implements the database on top of Redis. Each document is
// a hash and a sorted set of keys backs the listing.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	gotime "time"

	"github.com/redis/go-redis/v9"

	"github.com/tandem-team/tandem/server/backend/database"
	"github.com/tandem-team/tandem/server/logging"
)

const (
	fieldContent   = "content"
	fieldVersion   = "version"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"

	// maxTxRetries is how many times an optimistic snapshot update is
	// retried when the watched key changes underneath it.
	maxTxRetries = 5
)

// Client is a client that connects to Redis and reads or saves Tandem data.
type Client struct {
	config *Config
	client *redis.Client
}

// Dial creates an instance of Client and pings the given Redis.
func Dial(ctx context.Context, conf *Config) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", conf.Addr, err)
	}

	logging.DefaultLogger().Infof("Redis connected, Addr: %s, DB: %d", conf.Addr, conf.DB)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}

	return nil
}

// FindDocInfo finds the document of the given key.
func (c *Client) FindDocInfo(
	ctx context.Context,
	docKey string,
	createIfNotExist bool,
) (*database.DocInfo, error) {
	key := c.docKey(docKey)

	if createIfNotExist {
		now := strconv.FormatInt(gotime.Now().UnixNano(), 10)
		if _, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSetNX(ctx, key, fieldContent, "")
			pipe.HSetNX(ctx, key, fieldVersion, "0")
			pipe.HSetNX(ctx, key, fieldCreatedAt, now)
			pipe.HSetNX(ctx, key, fieldUpdatedAt, now)
			pipe.ZAdd(ctx, c.indexKey(), redis.Z{Member: docKey})
			return nil
		}); err != nil {
			return nil, fmt.Errorf("create document of %s: %w", docKey, err)
		}
	}

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("find document of %s: %w", docKey, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", docKey, database.ErrDocumentNotFound)
	}

	return decodeDocInfo(docKey, fields)
}

// UpdateDocSnapshot stores the given snapshot unless a newer one is already
// stored. The stored version is read under WATCH so a concurrent writer
// aborts the transaction instead of being overwritten.
func (c *Client) UpdateDocSnapshot(
	ctx context.Context,
	snapshot *database.SnapshotInfo,
) error {
	key := c.docKey(snapshot.DocumentID)
	savedAt := strconv.FormatInt(snapshot.SavedAt.UnixNano(), 10)

	update := func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, fieldVersion).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil && snapshot.Version < stored {
			return fmt.Errorf(
				"%s at %d, stored %d: %w",
				snapshot.DocumentID,
				snapshot.Version,
				stored,
				database.ErrConflictOnUpdate,
			)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldContent, snapshot.Content,
				fieldVersion, strconv.FormatUint(snapshot.Version, 10),
				fieldUpdatedAt, savedAt,
			)
			pipe.HSetNX(ctx, key, fieldCreatedAt, savedAt)
			pipe.ZAdd(ctx, c.indexKey(), redis.Z{Member: snapshot.DocumentID})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := c.client.Watch(ctx, update, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, database.ErrConflictOnUpdate) {
				return err
			}
			return fmt.Errorf("update document of %s: %w", snapshot.DocumentID, err)
		}
		return nil
	}

	return fmt.Errorf(
		"update document of %s: %w",
		snapshot.DocumentID,
		database.ErrConflictOnUpdate,
	)
}

// ListDocInfos returns up to limit documents ordered by key.
func (c *Client) ListDocInfos(
	ctx context.Context,
	limit int,
) ([]*database.DocInfo, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	docKeys, err := c.client.ZRange(ctx, c.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(docKeys))
	if _, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, docKey := range docKeys {
			cmds[i] = pipe.HGetAll(ctx, c.docKey(docKey))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var infos []*database.DocInfo
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		info, err := decodeDocInfo(docKeys[i], fields)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func (c *Client) docKey(docKey string) string {
	return c.config.keyPrefix() + "doc:" + docKey
}

func (c *Client) indexKey() string {
	return c.config.keyPrefix() + "docs"
}

func decodeDocInfo(docKey string, fields map[string]string) (*database.DocInfo, error) {
	version, err := strconv.ParseUint(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode version of %s: %w", docKey, err)
	}

	createdAt, err := parseUnixNano(fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("decode created_at of %s: %w", docKey, err)
	}
	updatedAt, err := parseUnixNano(fields[fieldUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("decode updated_at of %s: %w", docKey, err)
	}

	return &database.DocInfo{
		ID:        docKey,
		Content:   fields[fieldContent],
		Version:   version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func parseUnixNano(value string) (gotime.Time, error) {
	if value == "" {
		return gotime.Time{}, nil
	}

	nanos, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return gotime.Time{}, err
	}

	return gotime.Unix(0, nanos).UTC(), nil
}
