package db

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/EternisAI/image-vault/pkg/lazy"
)

const (
	MemoryCollection = "memory_messages"
	ItemsCollection  = "image_items"

	DefaultDatabase = "image_vault"

	maxPoolSize            = 10
	serverSelectionTimeout = 10 * time.Second
	connectTimeout         = 3 * serverSelectionTimeout
)

var (
	// ErrStoreUnavailable is returned when no MongoDB URI is configured.
	ErrStoreUnavailable = errors.New("durable store unavailable")
	// ErrNotConnected is returned by Ping before the first connection is made.
	ErrNotConnected = errors.New("durable store not connected")
)

// Collections are the handles shared by the item and memory stores.
type Collections struct {
	Memory *mongo.Collection
	Items  *mongo.Collection
}

type connection struct {
	client *mongo.Client
	cols   Collections
}

// Mongo lazily owns the single MongoDB client for the process.
type Mongo struct {
	uri      string
	database string
	logger   *log.Logger

	conn           *lazy.Value[*connection]
	indexesEnsured atomic.Bool
}

// NewMongo does not dial. The first Collections call connects.
func NewMongo(uri, database string, logger *log.Logger) *Mongo {
	if database == "" {
		database = DefaultDatabase
	}
	m := &Mongo{
		uri:      uri,
		database: database,
		logger:   logger,
	}
	m.conn = lazy.New(m.connect).
		WithTimeout(connectTimeout).
		WithDiscard(m.disconnectStale)
	return m
}

// disconnectStale releases a client whose connect finished after Close.
func (m *Mongo) disconnectStale(conn *connection) {
	m.logger.Info("Disconnecting MongoDB client opened during close")
	if err := conn.client.Disconnect(context.Background()); err != nil {
		m.logger.Warn("Failed to disconnect stale MongoDB client", "error", err)
	}
}

func (m *Mongo) Configured() bool {
	return m != nil && m.uri != ""
}

func (m *Mongo) Database() string {
	return m.database
}

// Collections returns the shared collections, connecting on first use.
func (m *Mongo) Collections(ctx context.Context) (Collections, error) {
	if !m.Configured() {
		return Collections{}, ErrStoreUnavailable
	}
	conn, err := m.conn.Get(ctx)
	if err != nil {
		return Collections{}, err
	}
	return conn.cols, nil
}

func (m *Mongo) State() lazy.State {
	return m.conn.State()
}

func (m *Mongo) connect(ctx context.Context) (*connection, error) {
	m.logger.Info("Connecting to MongoDB", "database", m.database)

	opts := options.Client().
		ApplyURI(m.uri).
		SetMaxPoolSize(maxPoolSize).
		SetServerSelectionTimeout(serverSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		m.logger.Error("Failed to connect to MongoDB", "error", err)
		return nil, pkgerrors.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		m.logger.Error("Failed to ping MongoDB", "error", err)
		return nil, pkgerrors.Wrap(err, "failed to ping MongoDB")
	}

	db := client.Database(m.database)
	conn := &connection{
		client: client,
		cols: Collections{
			Memory: db.Collection(MemoryCollection),
			Items:  db.Collection(ItemsCollection),
		},
	}

	if m.indexesEnsured.CompareAndSwap(false, true) {
		m.ensureIndexes(ctx, db)
	}

	m.logger.Info("Connected to MongoDB", "database", m.database)
	return conn, nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		MemoryCollection: {
			{Keys: bson.D{{Key: "platform", Value: 1}, {Key: "user_id", Value: 1}, {Key: "ts", Value: -1}}},
			{Keys: bson.D{{Key: "platform", Value: 1}, {Key: "user_id", Value: 1}, {Key: "chat_id", Value: 1}, {Key: "ts", Value: -1}}},
		},
		ItemsCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "message_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("uniq_owner_message").
					SetPartialFilterExpression(bson.M{"message_id": bson.M{"$type": "string", "$gt": ""}}),
			},
			{
				Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "file_unique_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_owner_file_unique"),
			},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "tags", Value: 1}}},
			{
				Keys: bson.D{
					{Key: "owner_id", Value: 1},
					{Key: "caption", Value: "text"},
					{Key: "note", Value: "text"},
					{Key: "tags_text", Value: "text"},
				},
				Options: options.Index().SetName("owner_text"),
			},
		},
	}
}

// ensureIndexes never fails the caller; index errors are logged.
func (m *Mongo) ensureIndexes(ctx context.Context, db *mongo.Database) {
	for name, models := range indexModels() {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			m.logger.Warn("Failed to ensure indexes", "collection", name, "error", err)
			continue
		}
		m.logger.Debug("Indexes ensured", "collection", name, "count", len(models))
	}
}

// Ping checks an existing connection without dialing a new one.
func (m *Mongo) Ping(ctx context.Context) error {
	if !m.Configured() {
		return ErrStoreUnavailable
	}
	conn, ok := m.conn.Peek()
	if !ok {
		return ErrNotConnected
	}
	return conn.client.Ping(ctx, readpref.Primary())
}

// Close disconnects if connected. Safe to call when never connected.
func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.conn == nil {
		return nil
	}
	conn, had := m.conn.Reset()
	if !had {
		return nil
	}
	m.logger.Info("Disconnecting from MongoDB")
	if err := conn.client.Disconnect(ctx); err != nil {
		return pkgerrors.Wrap(err, "failed to disconnect from MongoDB")
	}
	return nil
}
