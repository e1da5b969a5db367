package vault

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ItemEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.ItemEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) actions() []events.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Action, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

// steppingClock advances one minute per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func newTestMemoryStore(t *testing.T) (*MemoryStore, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	s := NewMemoryStore(pub, log.New(io.Discard))
	s.now = steppingClock()
	return s, pub
}

func photo(unique, caption string) Media {
	return Media{
		Kind:         MediaPhoto,
		FileID:       "file-" + unique,
		FileUniqueID: unique,
		MimeType:     "image/jpeg",
		Caption:      caption,
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	logger := log.New(io.Discard)
	memory := New(db.NewMongo("", "", logger), nil, logger)
	assert.Equal(t, BackendMemory, memory.Backend())

	mongo := New(db.NewMongo("mongodb://127.0.0.1:1", "", logger), nil, logger)
	assert.Equal(t, BackendMongo, mongo.Backend())
}

func TestMemoryStore_SaveRejectsInvalidMedia(t *testing.T) {
	s, pub := newTestMemoryStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: Media{Kind: MediaPhoto}})
	assert.ErrorIs(t, err, ErrInvalidMedia)

	_, err = s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: Media{FileID: "f"}})
	assert.ErrorIs(t, err, ErrInvalidMedia)

	assert.Empty(t, pub.actions())
}

func TestMemoryStore_DedupBySourceMessage(t *testing.T) {
	s, pub := newTestMemoryStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, SaveInput{OwnerID: "u1", ChatID: "c1", MessageID: "100", Media: photo("uniq-a", "first caption")})
	require.NoError(t, err)
	assert.False(t, first.Deduped)
	assert.Len(t, first.Item.ID, 8)

	second, err := s.Save(ctx, SaveInput{OwnerID: "u1", ChatID: "c1", MessageID: "100", Media: photo("uniq-b", "")})
	require.NoError(t, err)
	assert.True(t, second.Deduped)
	assert.Equal(t, ReasonSourceMessage, second.Reason)
	assert.Equal(t, first.Item.ID, second.Item.ID)
	assert.Equal(t, "file-uniq-b", second.Item.FileID)
	assert.Equal(t, "", second.Item.Caption, "message-id dedup overwrites the caption")
	assert.True(t, second.Item.UpdatedAt.After(first.Item.UpdatedAt))
	assert.Equal(t, first.Item.CreatedAt, second.Item.CreatedAt)

	assert.Equal(t, []events.Action{events.ActionSaved, events.ActionDeduped}, pub.actions())
}

func TestMemoryStore_DedupByContentKey(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("same-content", "keep me")})
	require.NoError(t, err)

	second, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "2", Media: photo("same-content", "")})
	require.NoError(t, err)
	assert.True(t, second.Deduped)
	assert.Equal(t, ReasonContentKey, second.Reason)
	assert.Equal(t, first.Item.ID, second.Item.ID)
	assert.Equal(t, "keep me", second.Item.Caption)

	third, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "3", Media: photo("same-content", "replaced")})
	require.NoError(t, err)
	assert.Equal(t, "replaced", third.Item.Caption)

	page, err := s.List(ctx, "u1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestMemoryStore_MessageIDWinsOverContentKey(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("content-a", "")})
	require.NoError(t, err)
	b, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "2", Media: photo("content-b", "")})
	require.NoError(t, err)

	res, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("content-b", "")})
	require.NoError(t, err)
	assert.Equal(t, a.Item.ID, res.Item.ID)
	assert.NotEqual(t, b.Item.ID, res.Item.ID)
	assert.Equal(t, ReasonSourceMessage, res.Reason)
}

func TestMemoryStore_DedupIsPerOwner(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("shared", "")})
	require.NoError(t, err)
	b, err := s.Save(ctx, SaveInput{OwnerID: "u2", MessageID: "1", Media: photo("shared", "")})
	require.NoError(t, err)

	assert.False(t, b.Deduped)
	assert.NotEqual(t, a.Item.ID, b.Item.ID)
}

func TestMemoryStore_ConcurrentDuplicateSaves(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "7", Media: photo("dup", "")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	page, err := s.List(ctx, "u1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestMemoryStore_ListPagination(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 7; i++ {
		res, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: fmt.Sprint(i), Media: photo(fmt.Sprintf("c%d", i), "")})
		require.NoError(t, err)
		ids = append(ids, res.Item.ID)
	}

	page, err := s.List(ctx, "u1", 2, 5)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 2, page.Pages())
	assert.Equal(t, ids[1], page.Items[0].ID)
	assert.Equal(t, ids[0], page.Items[1].ID)

	first, err := s.List(ctx, "u1", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, MaxPageSize, first.PageSize)
	assert.Equal(t, ids[6], first.Items[0].ID)

	for _, huge := range []int{2305843009213693953, math.MaxInt} {
		require.NotPanics(t, func() {
			far, err := s.List(ctx, "u1", huge, 5)
			require.NoError(t, err)
			assert.Empty(t, far.Items)
			assert.Equal(t, int64(7), far.Total)

			found, err := s.Search(ctx, "u1", "c1", huge, 5)
			require.NoError(t, err)
			assert.Empty(t, found.Items)
		})
	}

	beyond, err := s.List(ctx, "u1", 9, 5)
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, int64(7), beyond.Total)

	other, err := s.List(ctx, "nobody", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, other.Items)
	assert.Equal(t, int64(0), other.Total)
}

func TestMemoryStore_Search(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()

	tagged, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("a", "lunch with team")})
	require.NoError(t, err)
	_, err = s.SetTags(ctx, "u1", tagged.Item.ID, []string{"receipts"})
	require.NoError(t, err)

	noted, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "2", Media: photo("b", "beach")})
	require.NoError(t, err)
	_, err = s.SetNote(ctx, "u1", noted.Item.ID, "Sunset in Bali")
	require.NoError(t, err)

	_, err = s.Save(ctx, SaveInput{OwnerID: "u2", MessageID: "3", Media: photo("c", "receipts from u2")})
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "tag only match", query: "receipts", want: []string{tagged.Item.ID}},
		{name: "case insensitive note", query: "BALI", want: []string{noted.Item.ID}},
		{name: "any term", query: "lunch sunset", want: []string{noted.Item.ID, tagged.Item.ID}},
		{name: "substring of caption", query: "tea", want: []string{tagged.Item.ID}},
		{name: "no match", query: "mountains", want: nil},
		{name: "empty query lists all", query: "   ", want: []string{noted.Item.ID, tagged.Item.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.Search(ctx, "u1", tt.query, 1, 5)
			require.NoError(t, err)
			var got []string
			for _, it := range page.Items {
				got = append(got, it.ID)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int64(len(tt.want)), page.Total)
		})
	}
}

func TestMemoryStore_SetTagsAndNote(t *testing.T) {
	s, pub := newTestMemoryStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("a", "")})
	require.NoError(t, err)

	item, err := s.SetTags(ctx, "u1", saved.Item.ID, []string{"A", " a ", "b,c", "", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, item.Tags)
	assert.True(t, item.UpdatedAt.After(saved.Item.UpdatedAt))

	long := make([]byte, 0, 2100)
	for i := 0; i < 2100; i++ {
		long = append(long, 'x')
	}
	item, err = s.SetNote(ctx, "u1", saved.Item.ID, "  "+string(long)+"  ")
	require.NoError(t, err)
	assert.Len(t, item.Note, MaxNoteLength)

	_, err = s.SetTags(ctx, "u2", saved.Item.ID, []string{"x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.SetNote(ctx, "u1", "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Get(ctx, "u1", saved.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got.Tags)

	got.Tags[0] = "mutated"
	again, err := s.Get(ctx, "u1", saved.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Tags[0])

	assert.Equal(t, []events.Action{events.ActionSaved, events.ActionTagged, events.ActionNoted}, pub.actions())
}

func TestMemoryStore_DeleteIsOwnerScoped(t *testing.T) {
	s, pub := newTestMemoryStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, SaveInput{OwnerID: "owner", MessageID: "1", Media: photo("a", "")})
	require.NoError(t, err)

	err = s.Delete(ctx, "intruder", saved.Item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "intruder", saved.Item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "owner", saved.Item.ID))
	_, err = s.Get(ctx, "owner", saved.Item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "owner", saved.Item.ID), ErrNotFound)

	assert.Equal(t, []events.Action{events.ActionSaved, events.ActionDeleted}, pub.actions())
}

func TestMemoryStore_Export(t *testing.T) {
	s, _ := newTestMemoryStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("a", "first")})
	require.NoError(t, err)
	b, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "2", Media: photo("b", "second")})
	require.NoError(t, err)

	items, err := s.Export(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, a.Item.ID, items[0].ID)
	assert.Equal(t, b.Item.ID, items[1].ID)
	assert.Equal(t, []string{}, items[0].Tags)

	empty, err := s.Export(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_Isolation(t *testing.T) {
	s1, _ := newTestMemoryStore(t)
	s2, _ := newTestMemoryStore(t)
	ctx := context.Background()

	_, err := s1.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("a", "")})
	require.NoError(t, err)

	page, err := s2.List(ctx, "u1", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
}
