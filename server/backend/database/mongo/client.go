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

// Package mongo implements the database on top of MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	gotime "time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tandem-team/tandem/server/backend/database"
	"github.com/tandem-team/tandem/server/logging"
)

// Client is a client that connects to Mongo DB and reads or saves Tandem
// data.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		conf.ParseConnectionTimeout(),
	)
	defer cancel()

	client, err := mongo.Connect(
		ctx,
		options.Client().ApplyURI(conf.ConnectionURI),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingTimeout := conf.ParsePingTimeout()
	ctxPing, cancelPing := context.WithTimeout(ctx, pingTimeout)
	defer cancelPing()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.Database)); err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof("MongoDB connected, URI: %s, DB: %s", conf.ConnectionURI, conf.Database)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("close mongo client: %w", err)
	}

	return nil
}

// FindDocInfo finds the document of the given key.
func (c *Client) FindDocInfo(
	ctx context.Context,
	docKey string,
	createIfNotExist bool,
) (*database.DocInfo, error) {
	filter := bson.M{"_id": docKey}
	info := &database.DocInfo{}

	if !createIfNotExist {
		result := c.collection(ColDocuments).FindOne(ctx, filter)
		if err := result.Decode(info); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("%s: %w", docKey, database.ErrDocumentNotFound)
			}
			return nil, fmt.Errorf("find document of %s: %w", docKey, err)
		}
		return info, nil
	}

	now := gotime.Now()
	result := c.collection(ColDocuments).FindOneAndUpdate(ctx, filter, bson.M{
		"$setOnInsert": bson.M{
			"content":    "",
			"version":    uint64(0),
			"created_at": now,
			"updated_at": now,
		},
	}, options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After))
	if err := result.Decode(info); err != nil {
		return nil, fmt.Errorf("create document of %s: %w", docKey, err)
	}

	return info, nil
}

// UpdateDocSnapshot stores the given snapshot unless a newer one is already
// stored. The version guard lives in the filter: when a newer version is
// stored the filter misses and the upsert collides on _id.
func (c *Client) UpdateDocSnapshot(
	ctx context.Context,
	snapshot *database.SnapshotInfo,
) error {
	_, err := c.collection(ColDocuments).UpdateOne(ctx, bson.M{
		"_id":     snapshot.DocumentID,
		"version": bson.M{"$lte": snapshot.Version},
	}, bson.M{
		"$set": bson.M{
			"content":    snapshot.Content,
			"version":    snapshot.Version,
			"updated_at": snapshot.SavedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": snapshot.SavedAt,
		},
	}, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf(
			"%s at %d: %w",
			snapshot.DocumentID,
			snapshot.Version,
			database.ErrConflictOnUpdate,
		)
	}
	if err != nil {
		return fmt.Errorf("update document of %s: %w", snapshot.DocumentID, err)
	}

	return nil
}

// ListDocInfos returns up to limit documents ordered by key.
func (c *Client) ListDocInfos(
	ctx context.Context,
	limit int,
) ([]*database.DocInfo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := c.collection(ColDocuments).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var infos []*database.DocInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}

	return infos, nil
}

func (c *Client) collection(
	name string,
	opts ...*options.CollectionOptions,
) *mongo.Collection {
	return c.client.
		Database(c.config.Database).
		Collection(name, opts...)
}
