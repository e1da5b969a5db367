package convmemory

import (
	"context"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/EternisAI/image-vault/pkg/db"
)

// MongoStore keeps turns in memory_messages and trims each chat to window after insert.
type MongoStore struct {
	adapter *db.Mongo
	window  int
	logger  *log.Logger
	now     func() time.Time
}

func NewMongoStore(adapter *db.Mongo, window int, logger *log.Logger) *MongoStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MongoStore{adapter: adapter, window: window, logger: logger, now: time.Now}
}

func (s *MongoStore) Backend() string { return "mongo" }

func (s *MongoStore) collection(ctx context.Context) (*mongo.Collection, error) {
	cols, err := s.adapter.Collections(ctx)
	if err != nil {
		return nil, err
	}
	return cols.Memory, nil
}

func scopeFilter(key Key) bson.M {
	filter := bson.M{"platform": key.Platform, "user_id": key.UserID}
	if key.ChatID != "" {
		filter["chat_id"] = key.ChatID
	}
	return filter
}

var newestFirst = bson.D{{Key: "ts", Value: -1}, {Key: "_id", Value: -1}}

func (s *MongoStore) Append(ctx context.Context, key Key, role Role, text string) {
	coll, err := s.collection(ctx)
	if err != nil {
		s.logger.Error("Memory append skipped, store unavailable", "error", err)
		return
	}

	turn := Turn{
		Platform:  key.Platform,
		UserID:    key.UserID,
		ChatID:    key.ChatID,
		Role:      role,
		Text:      prepareText(text),
		Timestamp: s.now().UTC(),
	}
	if _, err := coll.InsertOne(ctx, turn); err != nil {
		s.logger.Error("Failed to append turn", "user_id", key.UserID, "error", err)
		return
	}

	s.trim(ctx, coll, key)
}

// trim deletes turns of one chat beyond the window. Best effort.
func (s *MongoStore) trim(ctx context.Context, coll *mongo.Collection, key Key) {
	filter := bson.M{"platform": key.Platform, "user_id": key.UserID, "chat_id": key.ChatID}
	opts := options.Find().
		SetSort(newestFirst).
		SetSkip(int64(s.window)).
		SetProjection(bson.M{"_id": 1})
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		s.logger.Warn("Failed to find turns beyond window", "error", err)
		return
	}
	var stale []struct {
		ID any `bson:"_id"`
	}
	if err := cursor.All(ctx, &stale); err != nil {
		s.logger.Warn("Failed to decode turns beyond window", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	ids := make(bson.A, 0, len(stale))
	for _, doc := range stale {
		ids = append(ids, doc.ID)
	}
	if _, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		s.logger.Warn("Failed to trim memory window", "error", err)
	}
}

func (s *MongoStore) find(ctx context.Context, key Key, limit int) []Turn {
	coll, err := s.collection(ctx)
	if err != nil {
		s.logger.Error("Memory read skipped, store unavailable", "error", err)
		return []Turn{}
	}
	cursor, err := coll.Find(ctx, scopeFilter(key), options.Find().SetSort(newestFirst).SetLimit(int64(limit)))
	if err != nil {
		s.logger.Error("Failed to read turns", "user_id", key.UserID, "error", err)
		return []Turn{}
	}
	var turns []Turn
	if err := cursor.All(ctx, &turns); err != nil {
		s.logger.Error("Failed to decode turns", "user_id", key.UserID, "error", err)
		return []Turn{}
	}
	slices.Reverse(turns)
	if turns == nil {
		return []Turn{}
	}
	return turns
}

func (s *MongoStore) Recent(ctx context.Context, key Key, limit int) []Turn {
	return s.find(ctx, key, clampLimit(limit))
}

func (s *MongoStore) History(ctx context.Context, key Key) []Turn {
	return s.find(ctx, key, s.window)
}

func (s *MongoStore) Clear(ctx context.Context, key Key) {
	coll, err := s.collection(ctx)
	if err != nil {
		s.logger.Error("Memory clear skipped, store unavailable", "error", err)
		return
	}
	res, err := coll.DeleteMany(ctx, scopeFilter(key))
	if err != nil {
		s.logger.Error("Failed to clear memory", "user_id", key.UserID, "error", err)
		return
	}
	s.logger.Debug("Cleared memory", "user_id", key.UserID, "chat_id", key.ChatID, "deleted", res.DeletedCount)
}
