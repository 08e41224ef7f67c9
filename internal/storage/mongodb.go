package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CineIndexBot/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	entriesCollection     = "entries"
	preferencesCollection = "preferences"
)

// MongoStorage handles MongoDB storage operations for index entries and
// user preferences. Entries are keyed by their index key.
type MongoStorage struct {
	client   *mongo.Client
	database string
}

// NewMongoStorage creates a new MongoStorage instance
func NewMongoStorage(ctx context.Context, uri, database string) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStorage{client: client, database: database}

	_, err = s.entries().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return s, nil
}

func (s *MongoStorage) entries() *mongo.Collection {
	return s.client.Database(s.database).Collection(entriesCollection)
}

func (s *MongoStorage) preferences() *mongo.Collection {
	return s.client.Database(s.database).Collection(preferencesCollection)
}

func (s *MongoStorage) Get(ctx context.Context, key string) (*models.IndexEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var entry models.IndexEntry
	err := s.entries().FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entry %q: %w", key, err)
	}
	return &entry, nil
}

// Put replaces the entry stored under entry.Key, inserting it if missing
func (s *MongoStorage) Put(ctx context.Context, entry *models.IndexEntry) error {
	if entry == nil || entry.Key == "" {
		return fmt.Errorf("put entry: empty key")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := s.entries().ReplaceOne(ctx, bson.M{"_id": entry.Key}, entry, opts); err != nil {
		return fmt.Errorf("failed to store entry %q: %w", entry.Key, err)
	}
	return nil
}

func (s *MongoStorage) List(ctx context.Context) ([]models.IndexEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.entries().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entries: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.IndexEntry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}
	return out, nil
}

func (s *MongoStorage) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := s.entries().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(n), nil
}

func (s *MongoStorage) GetLanguage(ctx context.Context, userID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var pref models.UserPreference
	err := s.preferences().FindOne(ctx, bson.M{"_id": userID}).Decode(&pref)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch preference for %d: %w", userID, err)
	}
	return pref.Lang, nil
}

func (s *MongoStorage) SetLanguage(ctx context.Context, userID int64, lang string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if lang == "" {
		if _, err := s.preferences().DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
			return fmt.Errorf("failed to clear preference for %d: %w", userID, err)
		}
		return nil
	}

	update := bson.M{"$set": bson.M{"lang": lang, "updated_at": time.Now()}}
	opts := options.Update().SetUpsert(true)
	if _, err := s.preferences().UpdateOne(ctx, bson.M{"_id": userID}, update, opts); err != nil {
		return fmt.Errorf("failed to store preference for %d: %w", userID, err)
	}
	return nil
}

// Ping checks the connection is alive
func (s *MongoStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
