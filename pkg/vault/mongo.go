package vault

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/events"
)

// MongoStore persists items in the image_items collection. The unique
// (owner_id, message_id) and (owner_id, file_unique_id) indexes settle
// concurrent saves of the same image.
type MongoStore struct {
	notifier
	adapter *db.Mongo
}

func NewMongoStore(adapter *db.Mongo, publisher events.Publisher, logger *log.Logger) *MongoStore {
	return &MongoStore{
		notifier: notifier{publisher: publisher, logger: logger, now: time.Now},
		adapter:  adapter,
	}
}

func (s *MongoStore) Backend() string { return BackendMongo }

func (s *MongoStore) items(ctx context.Context) (*mongo.Collection, error) {
	cols, err := s.adapter.Collections(ctx)
	if err != nil {
		return nil, err
	}
	return cols.Items, nil
}

func (s *MongoStore) Save(ctx context.Context, in SaveInput) (SaveResult, error) {
	if err := in.Media.Validate(); err != nil {
		return SaveResult{}, err
	}
	coll, err := s.items(ctx)
	if err != nil {
		return SaveResult{}, err
	}

	res, err := s.save(ctx, coll, in)
	if mongo.IsDuplicateKeyError(err) {
		s.logger.Debug("Concurrent save detected, retrying dedup lookup", "owner_id", in.OwnerID, "message_id", in.MessageID)
		res, err = s.save(ctx, coll, in)
	}
	if err != nil {
		s.logger.Error("Failed to save item", "owner_id", in.OwnerID, "error", err)
		return SaveResult{}, err
	}

	s.notify(ctx, saveAction(res), in.OwnerID, res.Item.ID, res.Reason)
	return res, nil
}

func (s *MongoStore) save(ctx context.Context, coll *mongo.Collection, in SaveInput) (SaveResult, error) {
	now := s.now().UTC()
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	if in.MessageID != "" {
		var item Item
		err := coll.FindOneAndUpdate(ctx,
			bson.M{"owner_id": in.OwnerID, "message_id": in.MessageID},
			bson.M{"$set": bson.M{
				"file_id":    in.Media.FileID,
				"mime_type":  in.Media.MimeType,
				"file_name":  in.Media.FileName,
				"caption":    in.Media.Caption,
				"updated_at": now,
			}},
			after,
		).Decode(&item)
		if err == nil {
			return SaveResult{Item: item, Deduped: true, Reason: ReasonSourceMessage}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return SaveResult{}, err
		}
	}

	set := bson.M{
		"file_id":    in.Media.FileID,
		"mime_type":  in.Media.MimeType,
		"file_name":  in.Media.FileName,
		"updated_at": now,
	}
	if in.Media.Caption != "" {
		set["caption"] = in.Media.Caption
	}
	var item Item
	err := coll.FindOneAndUpdate(ctx,
		bson.M{"owner_id": in.OwnerID, "file_unique_id": in.Media.FileUniqueID},
		bson.M{"$set": set},
		after,
	).Decode(&item)
	if err == nil {
		return SaveResult{Item: item, Deduped: true, Reason: ReasonContentKey}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return SaveResult{}, err
	}

	item = Item{
		ID:           newID(),
		OwnerID:      in.OwnerID,
		ChatID:       in.ChatID,
		MessageID:    in.MessageID,
		FileID:       in.Media.FileID,
		FileUniqueID: in.Media.FileUniqueID,
		Kind:         in.Media.Kind,
		MimeType:     in.Media.MimeType,
		FileName:     in.Media.FileName,
		Caption:      in.Media.Caption,
		Tags:         []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := coll.InsertOne(ctx, item); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Item: item}, nil
}

func (s *MongoStore) List(ctx context.Context, ownerID string, page, pageSize int) (Page, error) {
	return s.find(ctx, bson.M{"owner_id": ownerID}, page, pageSize), nil
}

func (s *MongoStore) Search(ctx context.Context, ownerID, query string, page, pageSize int) (Page, error) {
	terms := SearchTerms(query)
	if len(terms) == 0 {
		return s.List(ctx, ownerID, page, pageSize)
	}
	return s.find(ctx, searchFilter(ownerID, terms), page, pageSize), nil
}

func searchFilter(ownerID string, terms []string) bson.M {
	pattern := strings.Join(lo.Map(terms, func(t string, _ int) string { return regexp.QuoteMeta(t) }), "|")
	regex := bson.M{"$regex": pattern, "$options": "i"}
	lowered := lo.Map(terms, func(t string, _ int) string { return strings.ToLower(t) })
	return bson.M{
		"owner_id": ownerID,
		"$or": bson.A{
			bson.M{"caption": regex},
			bson.M{"note": regex},
			bson.M{"tags_text": regex},
			bson.M{"tags": bson.M{"$in": lowered}},
		},
	}
}

// find runs a paginated newest-first query. Failures are logged and yield an empty page.
func (s *MongoStore) find(ctx context.Context, filter bson.M, page, pageSize int) Page {
	page, pageSize = clampPage(page, pageSize)
	result := Page{Items: []Item{}, Page: page, PageSize: pageSize}

	coll, err := s.items(ctx)
	if err != nil {
		s.logger.Error("Item store unavailable", "error", err)
		return result
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to count items", "error", err)
		return result
	}

	result.Total = total
	skip := int64(pageOffset(page, pageSize))
	if skip >= total {
		return result
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(pageSize))
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		s.logger.Error("Failed to query items", "error", err)
		return result
	}
	var items []Item
	if err := cursor.All(ctx, &items); err != nil {
		s.logger.Error("Failed to decode items", "error", err)
		return result
	}

	if items != nil {
		result.Items = items
	}
	return result
}

func (s *MongoStore) Get(ctx context.Context, ownerID, id string) (Item, error) {
	coll, err := s.items(ctx)
	if err != nil {
		s.logger.Error("Item store unavailable", "error", err)
		return Item{}, ErrNotFound
	}
	var item Item
	err = coll.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&item)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			s.logger.Error("Failed to get item", "id", id, "error", err)
		}
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (s *MongoStore) update(ctx context.Context, ownerID, id string, set bson.M) (Item, error) {
	coll, err := s.items(ctx)
	if err != nil {
		return Item{}, err
	}
	set["updated_at"] = s.now().UTC()

	var item Item
	err = coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (s *MongoStore) SetTags(ctx context.Context, ownerID, id string, tags []string) (Item, error) {
	normalized := NormalizeTags(tags)
	item, err := s.update(ctx, ownerID, id, bson.M{"tags": normalized, "tags_text": tagsText(normalized)})
	if err != nil {
		return Item{}, err
	}
	s.notify(ctx, events.ActionTagged, ownerID, id, "")
	return item, nil
}

func (s *MongoStore) SetNote(ctx context.Context, ownerID, id, note string) (Item, error) {
	item, err := s.update(ctx, ownerID, id, bson.M{"note": normalizeNote(note)})
	if err != nil {
		return Item{}, err
	}
	s.notify(ctx, events.ActionNoted, ownerID, id, "")
	return item, nil
}

func (s *MongoStore) Delete(ctx context.Context, ownerID, id string) error {
	coll, err := s.items(ctx)
	if err != nil {
		return err
	}
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	s.notify(ctx, events.ActionDeleted, ownerID, id, "")
	return nil
}

func (s *MongoStore) Export(ctx context.Context, ownerID string) ([]ExportItem, error) {
	out := []ExportItem{}
	coll, err := s.items(ctx)
	if err != nil {
		s.logger.Error("Item store unavailable", "error", err)
		return out, nil
	}
	cursor, err := coll.Find(ctx, bson.M{"owner_id": ownerID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		s.logger.Error("Failed to export items", "error", err)
		return out, nil
	}
	var items []Item
	if err := cursor.All(ctx, &items); err != nil {
		s.logger.Error("Failed to decode exported items", "error", err)
		return out, nil
	}
	return lo.Map(items, func(it Item, _ int) ExportItem { return it.Export() }), nil
}
