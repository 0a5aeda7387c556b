/*
 * Copyright 2025 The LiveScratch Authors. All rights reserved.
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

// Package mongo implements the Snapshot Store on MongoDB. Each project is a
// single document, so a project write is atomic without transactions.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/backend/database"
	"github.com/livescratch/livescratch/server/logging"
)

// Client is a client that connects to MongoDB and reads or saves projects.
type Client struct {
	config *Config
	client *mongo.Client
}

type registryDocument struct {
	ID   string                `bson:"_id"`
	Info database.RegistryInfo `bson:",inline"`
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.ConnectionURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
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

func (c *Client) collection(name string) *mongo.Collection {
	return c.client.Database(c.config.Database).Collection(name)
}

// SaveProjectInfo creates or replaces the document of the project.
func (c *Client) SaveProjectInfo(ctx context.Context, info *database.ProjectInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	stored := info.DeepCopy()
	stored.UpdatedAt = time.Now()
	if _, err := c.collection(ColProjects).ReplaceOne(
		ctx,
		bson.M{"_id": info.ID},
		stored,
		options.Replace().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("save project %s: %w", info.ID, err)
	}
	return nil
}

// FindProjectInfo returns the full document of the project.
func (c *Client) FindProjectInfo(ctx context.Context, id types.ID) (*database.ProjectInfo, error) {
	info := &database.ProjectInfo{}
	result := c.collection(ColProjects).FindOne(ctx, bson.M{"_id": id})
	if err := result.Decode(info); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", id, database.ErrProjectNotFound)
		}
		return nil, fmt.Errorf("find project %s: %w", id, err)
	}
	return info, nil
}

// ListProjectMetas returns every project without bodies, change logs and
// chats.
func (c *Client) ListProjectMetas(ctx context.Context) ([]*database.ProjectInfo, error) {
	cursor, err := c.collection(ColProjects).Find(
		ctx,
		bson.M{},
		options.Find().SetProjection(bson.M{"snapshot.body": 0, "changes": 0, "chat": 0}),
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var infos []*database.ProjectInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	return infos, nil
}

// SaveRegistryInfo replaces the registry document.
func (c *Client) SaveRegistryInfo(ctx context.Context, info *database.RegistryInfo) error {
	doc := registryDocument{ID: registryDocumentID, Info: *info.DeepCopy()}
	if _, err := c.collection(ColRegistry).ReplaceOne(
		ctx,
		bson.M{"_id": registryDocumentID},
		doc,
		options.Replace().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// FindRegistryInfo returns the registry document, or an empty state.
func (c *Client) FindRegistryInfo(ctx context.Context) (*database.RegistryInfo, error) {
	doc := &registryDocument{}
	result := c.collection(ColRegistry).FindOne(ctx, bson.M{"_id": registryDocumentID})
	if err := result.Decode(doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &database.RegistryInfo{}, nil
		}
		return nil, fmt.Errorf("find registry: %w", err)
	}
	return &doc.Info, nil
}
