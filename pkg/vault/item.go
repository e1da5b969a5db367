// Package vault owns saved image metadata: dedup on save, paginated list and
// search, tag and note mutation, delete and export. Image bytes are never stored.
package vault

import (
	"context"
	"errors"
	"time"
)

type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
)

const (
	ReasonSourceMessage = "sourceMessageId"
	ReasonContentKey    = "mediaContentKey"
)

const (
	DefaultPageSize = 5
	MaxTags         = 50
	MaxNoteLength   = 2000
	MaxPageSize     = 20
	MaxSearchTerms  = 12
)

var (
	ErrNotFound     = errors.New("item not found")
	ErrInvalidMedia = errors.New("media has no file reference or content key")
)

// Media is the inbound descriptor delivered by the chat platform.
type Media struct {
	Kind         MediaKind
	FileID       string
	FileUniqueID string
	MimeType     string
	FileName     string
	Caption      string
}

func (m Media) Validate() error {
	if m.FileID == "" || m.FileUniqueID == "" {
		return ErrInvalidMedia
	}
	return nil
}

type Item struct {
	ID           string    `bson:"_id" json:"id"`
	OwnerID      string    `bson:"owner_id" json:"ownerId"`
	ChatID       string    `bson:"chat_id" json:"chatId"`
	MessageID    string    `bson:"message_id" json:"messageId"`
	FileID       string    `bson:"file_id" json:"fileId"`
	FileUniqueID string    `bson:"file_unique_id" json:"fileUniqueId"`
	Kind         MediaKind `bson:"media_kind" json:"mediaKind"`
	MimeType     string    `bson:"mime_type,omitempty" json:"mimeType,omitempty"`
	FileName     string    `bson:"file_name,omitempty" json:"fileName,omitempty"`
	Caption      string    `bson:"caption" json:"caption"`
	Tags         []string  `bson:"tags" json:"tags"`
	TagsText     string    `bson:"tags_text" json:"-"`
	Note         string    `bson:"note" json:"note"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

type SaveInput struct {
	OwnerID   string
	ChatID    string
	MessageID string
	Media     Media
}

type SaveResult struct {
	Item    Item
	Deduped bool
	Reason  string
}

type Page struct {
	Items    []Item
	Total    int64
	Page     int
	PageSize int
}

// Pages is the number of pages needed for Total at PageSize.
func (p Page) Pages() int {
	if p.PageSize <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// ExportItem is the metadata-only projection of an Item.
type ExportItem struct {
	ID        string    `json:"id"`
	MediaKind MediaKind `json:"mediaKind"`
	MimeType  string    `json:"mimeType,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	Caption   string    `json:"caption"`
	Tags      []string  `json:"tags"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (it Item) Export() ExportItem {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return ExportItem{
		ID:        it.ID,
		MediaKind: it.Kind,
		MimeType:  it.MimeType,
		FileName:  it.FileName,
		Caption:   it.Caption,
		Tags:      tags,
		Note:      it.Note,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

// Store is implemented by MemoryStore and MongoStore.
type Store interface {
	Save(ctx context.Context, in SaveInput) (SaveResult, error)
	List(ctx context.Context, ownerID string, page, pageSize int) (Page, error)
	Search(ctx context.Context, ownerID, query string, page, pageSize int) (Page, error)
	Get(ctx context.Context, ownerID, id string) (Item, error)
	SetTags(ctx context.Context, ownerID, id string, tags []string) (Item, error)
	SetNote(ctx context.Context, ownerID, id, note string) (Item, error)
	Delete(ctx context.Context, ownerID, id string) error
	Export(ctx context.Context, ownerID string) ([]ExportItem, error)
	Backend() string
}
