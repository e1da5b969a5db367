package vault

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/EternisAI/image-vault/pkg/events"
)

// MemoryStore keeps items in process memory. Nothing survives a restart.
type MemoryStore struct {
	notifier

	mu      sync.Mutex
	byOwner map[string][]*Item
	ids     map[string]struct{}
}

func NewMemoryStore(publisher events.Publisher, logger *log.Logger) *MemoryStore {
	return &MemoryStore{
		notifier: notifier{publisher: publisher, logger: logger, now: time.Now},
		byOwner:  make(map[string][]*Item),
		ids:      make(map[string]struct{}),
	}
}

func (s *MemoryStore) Backend() string { return BackendMemory }

func (s *MemoryStore) Save(ctx context.Context, in SaveInput) (SaveResult, error) {
	if err := in.Media.Validate(); err != nil {
		return SaveResult{}, err
	}
	res := s.save(in)
	s.notify(ctx, saveAction(res), in.OwnerID, res.Item.ID, res.Reason)
	return res, nil
}

func (s *MemoryStore) save(in SaveInput) SaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	items := s.byOwner[in.OwnerID]

	if in.MessageID != "" {
		if it, ok := lo.Find(items, func(it *Item) bool { return it.MessageID == in.MessageID }); ok {
			it.FileID = in.Media.FileID
			it.MimeType = in.Media.MimeType
			it.FileName = in.Media.FileName
			it.Caption = in.Media.Caption
			it.UpdatedAt = now
			return SaveResult{Item: cloneItem(*it), Deduped: true, Reason: ReasonSourceMessage}
		}
	}

	if it, ok := lo.Find(items, func(it *Item) bool { return it.FileUniqueID == in.Media.FileUniqueID }); ok {
		it.FileID = in.Media.FileID
		it.MimeType = in.Media.MimeType
		it.FileName = in.Media.FileName
		if in.Media.Caption != "" {
			it.Caption = in.Media.Caption
		}
		it.UpdatedAt = now
		return SaveResult{Item: cloneItem(*it), Deduped: true, Reason: ReasonContentKey}
	}

	item := &Item{
		ID:           s.uniqueID(),
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
	s.byOwner[in.OwnerID] = append(items, item)
	return SaveResult{Item: cloneItem(*item)}
}

func (s *MemoryStore) uniqueID() string {
	for {
		id := newID()
		if _, taken := s.ids[id]; !taken {
			s.ids[id] = struct{}{}
			return id
		}
	}
}

// newestFirst returns a copy of the owner's items ordered by CreatedAt descending.
func (s *MemoryStore) newestFirst(ownerID string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.byOwner[ownerID]))
	for _, it := range s.byOwner[ownerID] {
		out = append(out, cloneItem(*it))
	}
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b Item) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func paginate(items []Item, page, pageSize int) Page {
	page, pageSize = clampPage(page, pageSize)
	start := min(pageOffset(page, pageSize), len(items))
	end := min(start+pageSize, len(items))
	return Page{
		Items:    items[start:end],
		Total:    int64(len(items)),
		Page:     page,
		PageSize: pageSize,
	}
}

func (s *MemoryStore) List(ctx context.Context, ownerID string, page, pageSize int) (Page, error) {
	return paginate(s.newestFirst(ownerID), page, pageSize), nil
}

func (s *MemoryStore) Search(ctx context.Context, ownerID, query string, page, pageSize int) (Page, error) {
	terms := SearchTerms(query)
	if len(terms) == 0 {
		return s.List(ctx, ownerID, page, pageSize)
	}
	hits := lo.Filter(s.newestFirst(ownerID), func(it Item, _ int) bool {
		return matches(it, terms)
	})
	return paginate(hits, page, pageSize), nil
}

// matches reports whether any term is a case-insensitive substring of the
// caption, note or tag text, or equals one of the tags.
func matches(it Item, terms []string) bool {
	hay := strings.ToLower(strings.Join([]string{it.Caption, it.Note, tagsText(it.Tags)}, " "))
	for _, term := range terms {
		lower := strings.ToLower(term)
		if strings.Contains(hay, lower) || slices.Contains(it.Tags, lower) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) find(ownerID, id string) (*Item, bool) {
	return lo.Find(s.byOwner[ownerID], func(it *Item) bool { return it.ID == id })
}

func (s *MemoryStore) Get(ctx context.Context, ownerID, id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.find(ownerID, id)
	if !ok {
		return Item{}, ErrNotFound
	}
	return cloneItem(*it), nil
}

func (s *MemoryStore) mutate(ownerID, id string, fn func(it *Item)) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.find(ownerID, id)
	if !ok {
		return Item{}, ErrNotFound
	}
	fn(it)
	it.UpdatedAt = s.now()
	return cloneItem(*it), nil
}

func (s *MemoryStore) SetTags(ctx context.Context, ownerID, id string, tags []string) (Item, error) {
	normalized := NormalizeTags(tags)
	item, err := s.mutate(ownerID, id, func(it *Item) {
		it.Tags = normalized
		it.TagsText = tagsText(normalized)
	})
	if err != nil {
		return Item{}, err
	}
	s.notify(ctx, events.ActionTagged, ownerID, id, "")
	return item, nil
}

func (s *MemoryStore) SetNote(ctx context.Context, ownerID, id, note string) (Item, error) {
	note = normalizeNote(note)
	item, err := s.mutate(ownerID, id, func(it *Item) {
		it.Note = note
	})
	if err != nil {
		return Item{}, err
	}
	s.notify(ctx, events.ActionNoted, ownerID, id, "")
	return item, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	items := s.byOwner[ownerID]
	idx := slices.IndexFunc(items, func(it *Item) bool { return it.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.byOwner[ownerID] = slices.Delete(items, idx, idx+1)
	delete(s.ids, id)
	s.mu.Unlock()

	s.notify(ctx, events.ActionDeleted, ownerID, id, "")
	return nil
}

func (s *MemoryStore) Export(ctx context.Context, ownerID string) ([]ExportItem, error) {
	items := s.newestFirst(ownerID)
	slices.Reverse(items)
	return lo.Map(items, func(it Item, _ int) ExportItem { return it.Export() }), nil
}
