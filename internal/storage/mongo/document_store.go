// Package mongo caches archive pages in a MongoDB collection keyed by URL.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

type document struct {
	URL     string `bson:"url"`
	Content string `bson:"content"`
}

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("mongo.uri is required")
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// DocumentStore implements the document cache over one collection.
type DocumentStore struct {
	coll *mongo.Collection
}

// NewDocumentStore wraps coll.
func NewDocumentStore(coll *mongo.Collection) (*DocumentStore, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	return &DocumentStore{coll: coll}, nil
}

// EnsureIndexes creates the unique url index that makes writes first-wins.
func (s *DocumentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("url_unique"),
	})
	if err != nil {
		return fmt.Errorf("create url index: %w", err)
	}
	return nil
}

// Get returns the cached content for url.
func (s *DocumentStore) Get(ctx context.Context, url string) (string, bool, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"url": url}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find document: %w", err)
	}
	return doc.Content, true, nil
}

// PutIfAbsent upserts with $setOnInsert so an existing document keeps its
// content. A duplicate key from a racing upsert counts as not inserted.
func (s *DocumentStore) PutIfAbsent(ctx context.Context, url string, content string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"url": url},
		bson.M{"$setOnInsert": document{URL: url, Content: content}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}
	return res.UpsertedCount == 1, nil
}
