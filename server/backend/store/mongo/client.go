/*
 * Copyright 2026 The Tidemark Authors. All rights reserved.
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

// Package mongo implements the document store and the audit log using
// MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/tidemark-team/tidemark/api/types"
	"github.com/tidemark-team/tidemark/server/backend/audit"
	"github.com/tidemark-team/tidemark/server/backend/store"
	"github.com/tidemark-team/tidemark/server/logging"
)

const (
	colDocuments = "documents"
	colEvents    = "events"
)

// Client is a client that connects to MongoDB and reads or saves Tidemark
// documents and audit entries.
type Client struct {
	config *Config
	client *mongo.Client
}

// Dial creates an instance of Client and dials the given MongoDB.
func Dial(conf *Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.ParseConnectionTimeout())
	defer cancel()

	client, err := mongo.Connect(
		options.Client().ApplyURI(conf.ConnectionURI),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(ctx, conf.ParsePingTimeout())
	defer cancelPing()

	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(conf.TidemarkDatabase)); err != nil {
		return nil, err
	}

	logging.DefaultLogger().Infof(
		"MongoDB connected, URI: %s, DB: %s",
		conf.ConnectionURI,
		conf.TidemarkDatabase,
	)

	return &Client{
		config: conf,
		client: client,
	}, nil
}

// Close all resources of this client.
func (c *Client) Close() error {
	if err := c.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("disconnect from mongo: %w", err)
	}

	return nil
}

// Repositories returns the names of all registered repositories.
func (c *Client) Repositories() []string {
	return slices.Clone(c.config.Repositories)
}

// OpenSession opens a session onto the named repository for the principal.
func (c *Client) OpenSession(
	_ context.Context,
	repository string,
	principal *store.Principal,
) (store.Session, error) {
	if !slices.Contains(c.config.Repositories, repository) {
		return nil, fmt.Errorf("open session of %s: %w", repository, store.ErrRepositoryNotFound)
	}

	return &session{
		client:     c,
		repository: repository,
		principal:  principal,
	}, nil
}

func (c *Client) documents() *mongo.Collection {
	return c.client.Database(c.config.TidemarkDatabase).Collection(colDocuments)
}

func (c *Client) events() *mongo.Collection {
	return c.client.Database(c.config.TidemarkDatabase).Collection(colEvents)
}

// Search returns the audit entries matching the filter, ordered by
// repository ascending then event time descending, paged by
// pageStart/pageLimit.
func (c *Client) Search(
	ctx context.Context,
	filter audit.Filter,
	pageStart, pageLimit int,
) ([]audit.Entry, error) {
	opts := options.Find().
		SetSort(bson.D{
			{Key: "repository", Value: 1},
			{Key: "event_time", Value: -1},
		}).
		SetSkip(int64(pageStart))
	if pageLimit > 0 {
		opts = opts.SetLimit(int64(pageLimit))
	}

	cursor, err := c.events().Find(ctx, buildAuditQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find audit entries: %w", err)
	}

	var entries []audit.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("fetch audit entries: %w", err)
	}

	return entries, nil
}

// Append adds an entry to the audit log, generating an identifier when
// absent.
func (c *Client) Append(ctx context.Context, entry audit.Entry) error {
	if entry.ID == "" {
		entry.ID = xid.New().String()
	}

	if _, err := c.events().InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert audit entry %s: %w", entry.ID, err)
	}

	return nil
}

// buildAuditQuery translates the typed audit filter into a parameterized
// bson document. Path prefixes become anchored, quoted regular expressions;
// no user-controlled value is spliced into a query string.
func buildAuditQuery(filter audit.Filter) bson.M {
	var clauses bson.A

	if filter.Repository != "" {
		clauses = append(clauses, bson.M{"repository": filter.Repository})
	}

	if len(filter.Scopes) > 0 {
		var scopes bson.A
		for _, scope := range filter.Scopes {
			clause := bson.M{"category": scope.Category}
			if len(scope.EventIDs) > 0 {
				clause["event_id"] = bson.M{"$in": scope.EventIDs}
			}
			scopes = append(scopes, clause)
		}
		clauses = append(clauses, bson.M{"$or": scopes})
	}

	if len(filter.ExcludeDocTypes) > 0 {
		clauses = append(clauses, bson.M{"doc_type": bson.M{"$nin": filter.ExcludeDocTypes}})
	}

	if len(filter.PathPrefixes) > 0 {
		var prefixes bson.A
		for _, prefix := range filter.PathPrefixes {
			prefixes = append(prefixes, bson.M{"doc_path": bson.M{
				"$regex": "^" + regexp.QuoteMeta(prefix),
			}})
		}
		clauses = append(clauses, bson.M{"$or": prefixes})
	}

	window := bson.M{}
	if !filter.After.IsZero() {
		window["$gt"] = filter.After
	}
	if !filter.Until.IsZero() {
		window["$lte"] = filter.Until
	}
	if len(window) > 0 {
		clauses = append(clauses, bson.M{"event_time": window})
	}

	if len(clauses) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": clauses}
}

// session is a handle onto one repository served by the Client.
type session struct {
	client     *Client
	repository string
	principal  *store.Principal
}

// Repository returns the repository this session is bound to.
func (s *session) Repository() string {
	return s.repository
}

// Principal returns the principal the session was opened for.
func (s *session) Principal() *store.Principal {
	return s.principal
}

// Close releases the session.
func (s *session) Close() error {
	return nil
}

// Query returns the documents matching the filter, ordered by title
// ascending then creation date descending.
func (s *session) Query(
	ctx context.Context,
	filter store.DocumentFilter,
) ([]*types.Document, error) {
	query := bson.M{"repository": s.repository}
	if filter.Subscriber != "" {
		query["subscribers"] = filter.Subscriber
	}
	if len(filter.ExcludeLifecycleStates) > 0 {
		query["lifecycle_state"] = bson.M{"$nin": filter.ExcludeLifecycleStates}
	}

	cursor, err := s.client.documents().Find(ctx, query, options.Find().SetSort(bson.D{
		{Key: "title", Value: 1},
		{Key: "created_at", Value: -1},
	}))
	if err != nil {
		return nil, fmt.Errorf("find documents of %s: %w", s.repository, err)
	}

	var docs []*types.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("fetch documents of %s: %w", s.repository, err)
	}

	return docs, nil
}

// GetDocument returns the document with the given identifier.
func (s *session) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	result := s.client.documents().FindOne(ctx, bson.M{
		"_id":        id,
		"repository": s.repository,
	})

	doc := &types.Document{}
	if err := result.Decode(doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("find document of %s: %w", id, store.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("decode document of %s: %w", id, err)
	}

	return doc, nil
}

// HasPermission reports whether the principal holds the named permission on
// the document.
func (s *session) HasPermission(
	ctx context.Context,
	principal *store.Principal,
	id string,
	permission string,
) (bool, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return false, err
	}

	return store.Granted(doc, principal, permission), nil
}

// SaveDocument persists the given document state.
func (s *session) SaveDocument(ctx context.Context, doc *types.Document) error {
	if _, err := s.client.documents().ReplaceOne(
		ctx,
		bson.M{"_id": doc.ID, "repository": s.repository},
		doc,
		options.Replace().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(colDocuments).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "repository", Value: 1},
			{Key: "subscribers", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "repository", Value: 1},
			{Key: "path", Value: 1},
		}},
	}); err != nil {
		return fmt.Errorf("create document indexes: %w", err)
	}

	if _, err := db.Collection(colEvents).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "repository", Value: 1},
			{Key: "event_time", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "doc_path", Value: 1},
		}},
	}); err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}

	return nil
}
