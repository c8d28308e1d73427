package storage

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

// MongoStorage persists Pages as documents in a MongoDB collection,
// keyed by content hash.
type MongoStorage struct {
	uri        string
	database   string
	defaultCol string
	client     *mongo.Client
	logger     *slog.Logger
}

// NewMongoStorage builds a MongoStorage; Connect dials the server.
func NewMongoStorage(uri, database, defaultCollection string, logger *slog.Logger) *MongoStorage {
	return &MongoStorage{
		uri:        uri,
		database:   database,
		defaultCol: defaultCollection,
		logger:     logger.With("component", "mongo_storage"),
	}
}

func (s *MongoStorage) Name() string { return "mongodb" }

func (s *MongoStorage) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping: %w", err)
	}
	s.client = client
	return nil
}

func (s *MongoStorage) Disconnect(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *MongoStorage) collection(name string) *mongo.Collection {
	if name == "" {
		name = s.defaultCol
	}
	return s.client.Database(s.database).Collection(name)
}

type pageDoc struct {
	ID string `bson:"_id"`
	*types.Page
}

func (s *MongoStorage) Save(ctx context.Context, page *types.Page, collection string) error {
	_, err := s.collection(collection).ReplaceOne(ctx,
		bson.M{"_id": page.ContentHash},
		pageDoc{ID: page.ContentHash, Page: page},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongodb save: %w", err)
	}
	return nil
}

func (s *MongoStorage) SaveBatch(ctx context.Context, pages []*types.Page, collection string) error {
	models := make([]mongo.WriteModel, len(pages))
	for i, p := range pages {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": p.ContentHash}).
			SetReplacement(pageDoc{ID: p.ContentHash, Page: p}).
			SetUpsert(true)
	}
	_, err := s.collection(collection).BulkWrite(ctx, models)
	if err != nil {
		return fmt.Errorf("mongodb save batch: %w", err)
	}
	return nil
}

func (s *MongoStorage) Get(ctx context.Context, id string) (*types.Page, error) {
	var doc pageDoc
	err := s.collection("").FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("mongodb get: %w", err)
	}
	return doc.Page, nil
}

func (s *MongoStorage) Find(ctx context.Context, query Query, limit, skip int) ([]*types.Page, error) {
	filter := bson.M{}
	if query.Domain != "" {
		filter["domain"] = query.Domain
	}
	if query.URL != "" {
		filter["url"] = query.URL
	}
	if query.StatusCode != 0 {
		filter["status_code"] = query.StatusCode
	}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}

	cursor, err := s.collection("").Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	var pages []*types.Page
	for cursor.Next(ctx) {
		var doc pageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb decode: %w", err)
		}
		pages = append(pages, doc.Page)
	}
	return pages, cursor.Err()
}

func (s *MongoStorage) Update(ctx context.Context, id string, page *types.Page) error {
	_, err := s.collection("").ReplaceOne(ctx, bson.M{"_id": id}, pageDoc{ID: id, Page: page})
	if err != nil {
		return fmt.Errorf("mongodb update: %w", err)
	}
	return nil
}

func (s *MongoStorage) Delete(ctx context.Context, id string) error {
	_, err := s.collection("").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb delete: %w", err)
	}
	return nil
}

func (s *MongoStorage) Count(ctx context.Context, query Query) (int64, error) {
	filter := bson.M{}
	if query.Domain != "" {
		filter["domain"] = query.Domain
	}
	if query.URL != "" {
		filter["url"] = query.URL
	}
	if query.StatusCode != 0 {
		filter["status_code"] = query.StatusCode
	}
	n, err := s.collection("").CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongodb count: %w", err)
	}
	return n, nil
}
