package vault

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/EternisAI/image-vault/pkg/db"
)

func TestSearchFilter(t *testing.T) {
	filter := searchFilter("u1", []string{"Receipts", "a.b"})
	assert.Equal(t, "u1", filter["owner_id"])

	or := filter["$or"].(bson.A)
	require.Len(t, or, 4)
	caption := or[0].(bson.M)["caption"].(bson.M)
	assert.Equal(t, `Receipts|a\.b`, caption["$regex"])
	assert.Equal(t, "i", caption["$options"])
	tags := or[3].(bson.M)["tags"].(bson.M)
	assert.Equal(t, []string{"receipts", "a.b"}, tags["$in"])
}

func TestMongoStore_UnreachableReadsDegrade(t *testing.T) {
	logger := log.New(io.Discard)
	s := NewMongoStore(db.NewMongo("notmongo://broken", "", logger), nil, logger)
	ctx := context.Background()

	page, err := s.List(ctx, "u1", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = s.Search(ctx, "u1", "cats", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	items, err := s.Export(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = s.Get(ctx, "u1", "abcd1234")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "1", Media: photo("a", "")})
	assert.Error(t, err)
}

func TestMongoStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	logger := log.New(io.Discard)
	container, err := db.SetupMongoTestContainer(ctx, logger)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	adapter := db.NewMongo(container.URI(), "vault_store_test", logger)
	defer func() { _ = adapter.Close(context.Background()) }()

	pub := &recordingPublisher{}
	s := NewMongoStore(adapter, pub, logger)
	s.now = steppingClock()

	t.Run("dedup by message then content key", func(t *testing.T) {
		first, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "10", Media: photo("m-a", "original")})
		require.NoError(t, err)
		assert.False(t, first.Deduped)

		byMessage, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "10", Media: photo("m-a", "")})
		require.NoError(t, err)
		assert.Equal(t, ReasonSourceMessage, byMessage.Reason)
		assert.Equal(t, first.Item.ID, byMessage.Item.ID)
		assert.Equal(t, "", byMessage.Item.Caption)

		byContent, err := s.Save(ctx, SaveInput{OwnerID: "u1", MessageID: "11", Media: photo("m-a", "new caption")})
		require.NoError(t, err)
		assert.Equal(t, ReasonContentKey, byContent.Reason)
		assert.Equal(t, first.Item.ID, byContent.Item.ID)
		assert.Equal(t, "new caption", byContent.Item.Caption)
	})

	t.Run("concurrent duplicate saves create one item", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make([]string, 10)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := s.Save(ctx, SaveInput{OwnerID: "race", MessageID: "1", Media: photo("race-content", "")})
				if assert.NoError(t, err) {
					ids[i] = res.Item.ID
				}
			}(i)
		}
		wg.Wait()

		page, err := s.List(ctx, "race", 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		for _, id := range ids {
			assert.Equal(t, page.Items[0].ID, id)
		}
	})

	t.Run("pagination search tags and delete", func(t *testing.T) {
		for i := 0; i < 7; i++ {
			_, err := s.Save(ctx, SaveInput{OwnerID: "pager", MessageID: fmt.Sprint(i), Media: photo(fmt.Sprintf("p%d", i), "")})
			require.NoError(t, err)
		}
		page, err := s.List(ctx, "pager", 2, 5)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, int64(7), page.Total)

		target := page.Items[0]
		tagged, err := s.SetTags(ctx, "pager", target.ID, []string{"Receipts", "receipts", "travel"})
		require.NoError(t, err)
		assert.Equal(t, []string{"receipts", "travel"}, tagged.Tags)

		hits, err := s.Search(ctx, "pager", "receipts", 1, 5)
		require.NoError(t, err)
		require.Len(t, hits.Items, 1)
		assert.Equal(t, target.ID, hits.Items[0].ID)

		noted, err := s.SetNote(ctx, "pager", target.ID, "  paid already ")
		require.NoError(t, err)
		assert.Equal(t, "paid already", noted.Note)

		assert.ErrorIs(t, s.Delete(ctx, "intruder", target.ID), ErrNotFound)
		require.NoError(t, s.Delete(ctx, "pager", target.ID))
		_, err = s.Get(ctx, "pager", target.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		exported, err := s.Export(ctx, "pager")
		require.NoError(t, err)
		assert.Len(t, exported, 6)
		for i := 1; i < len(exported); i++ {
			assert.False(t, exported[i].CreatedAt.Before(exported[i-1].CreatedAt))
		}
	})
}
