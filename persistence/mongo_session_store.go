package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/briefkit/briefkit/session"
)

// mongoSessionDoc keeps the state as a JSON string so nested artifact data
// round-trips with the same types as every other backend.
type mongoSessionDoc struct {
	ID           string    `bson:"_id"`
	CurrentStage int       `bson:"current_stage"`
	State        string    `bson:"state"`
	Ledger       []string  `bson:"ledger"`
	LastActiveAt time.Time `bson:"last_active_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// MongoSessionStore stores one document per session.
type MongoSessionStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewMongoSessionStore connects, pings and ensures the activity index.
func NewMongoSessionStore(ctx context.Context, config MongoStoreConfig) (*MongoSessionStore, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("%w: mongo store requires uri", ErrInvalidInput)
	}
	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client, err := mongo.Connect(options.Client().ApplyURI(config.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName, collName := config.Database, config.Collection
	if dbName == "" {
		dbName = "briefkit"
	}
	if collName == "" {
		collName = "sessions"
	}
	coll := client.Database(dbName).Collection(collName)

	_, err = coll.Indexes().CreateOne(pingCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "last_active_at", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create session index: %w", err)
	}

	return &MongoSessionStore{client: client, coll: coll, now: time.Now}, nil
}

// Close disconnects the client
func (s *MongoSessionStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable
func (s *MongoSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Save replaces the document with the same _id, inserting when absent.
func (s *MongoSessionStore) Save(ctx context.Context, snap session.Snapshot) error {
	if err := validateID(snap.ID); err != nil {
		return err
	}
	state, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	ledger := snap.Ledger
	if ledger == nil {
		ledger = []string{}
	}
	doc := mongoSessionDoc{
		ID:           snap.ID,
		CurrentStage: int(snap.State.CurrentStage),
		State:        string(state),
		Ledger:       ledger,
		LastActiveAt: snap.LastActiveAt.UTC(),
		UpdatedAt:    s.now().UTC(),
	}
	_, err = s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: snap.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	return nil
}

// Load retrieves a snapshot by id
func (s *MongoSessionStore) Load(ctx context.Context, id string) (session.Snapshot, error) {
	var doc mongoSessionDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	snap := session.Snapshot{ID: doc.ID, Ledger: doc.Ledger, LastActiveAt: doc.LastActiveAt}
	if err := json.Unmarshal([]byte(doc.State), &snap.State); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return snap, nil
}

// Delete removes a snapshot
func (s *MongoSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	return err
}

// List returns every id, sorted
func (s *MongoSessionStore) List(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := make([]string, 0)
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

// Cleanup deletes documents idle for longer than maxIdle
func (s *MongoSessionStore) Cleanup(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-maxIdle).UTC()
	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "last_active_at", Value: bson.D{{Key: "$lt", Value: cutoff}}}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
