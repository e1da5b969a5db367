package convmemory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/redact"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func texts(turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, turn := range turns {
		out = append(out, turn.Text)
	}
	return out
}

func TestNew_SelectsBackend(t *testing.T) {
	logger := testLogger()
	assert.Equal(t, "memory", New(db.NewMongo("", "", logger), 0, logger).Backend())
	assert.Equal(t, "mongo", New(db.NewMongo("mongodb://127.0.0.1:1", "", logger), 0, logger).Backend())
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 1, clampLimit(0))
	assert.Equal(t, 1, clampLimit(-5))
	assert.Equal(t, 16, clampLimit(16))
	assert.Equal(t, MaxRecent, clampLimit(100))
}

func TestPrepareText(t *testing.T) {
	assert.Equal(t, "key [REDACTED]", prepareText("key sk-abcdefghijklmnop"))

	long := strings.Repeat("ü", MaxTextLength+10)
	assert.Equal(t, MaxTextLength, len([]rune(prepareText(long))))

	key := "sk-abcdefghijklmnopqrstuvwxyz"
	straddling := strings.Repeat("a", MaxTextLength-9) + " " + key
	got := prepareText(straddling)
	assert.LessOrEqual(t, len([]rune(got)), MaxTextLength)
	assert.NotContains(t, got, "sk-abcde")
	assert.True(t, strings.HasSuffix(got, " "+redact.Placeholder[:8]))
}

func TestMemoryStore_WindowKeepsMostRecent(t *testing.T) {
	s := NewMemoryStore(200, testLogger())
	ctx := context.Background()
	key := Key{Platform: "telegram", UserID: "u1", ChatID: "c1"}

	for i := 1; i <= 205; i++ {
		s.Append(ctx, key, RoleUser, fmt.Sprintf("turn %d", i))
	}

	history := s.History(ctx, key)
	require.Len(t, history, 200)
	assert.Equal(t, "turn 6", history[0].Text)
	assert.Equal(t, "turn 205", history[199].Text)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
	}

	recent := s.Recent(ctx, key, 50)
	require.Len(t, recent, MaxRecent)
	assert.Equal(t, "turn 186", recent[0].Text)
	assert.Equal(t, "turn 205", recent[MaxRecent-1].Text)
}

func TestMemoryStore_RecentOrderAndRoles(t *testing.T) {
	s := NewMemoryStore(10, testLogger())
	ctx := context.Background()
	key := Key{Platform: "telegram", UserID: "u1", ChatID: "c1"}

	s.Append(ctx, key, RoleUser, "hello")
	s.Append(ctx, key, RoleAssistant, "hi there")
	s.Append(ctx, key, RoleUser, "my token is Bearer abcdefghijklmnop")

	recent := s.Recent(ctx, key, 16)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"hello", "hi there", "my token is [REDACTED]"}, texts(recent))
	assert.Equal(t, RoleAssistant, recent[1].Role)
	assert.Equal(t, "c1", recent[0].ChatID)

	assert.Equal(t, []string{"my token is [REDACTED]"}, texts(s.Recent(ctx, key, 0)))
}

func TestMemoryStore_ChatScoping(t *testing.T) {
	s := NewMemoryStore(10, testLogger())
	ctx := context.Background()
	chatA := Key{Platform: "telegram", UserID: "u1", ChatID: "a"}
	chatB := Key{Platform: "telegram", UserID: "u1", ChatID: "b"}
	allChats := Key{Platform: "telegram", UserID: "u1"}

	s.Append(ctx, chatA, RoleUser, "a1")
	s.Append(ctx, chatB, RoleUser, "b1")
	s.Append(ctx, chatA, RoleUser, "a2")
	s.Append(ctx, Key{Platform: "telegram", UserID: "u2", ChatID: "a"}, RoleUser, "other user")
	s.Append(ctx, Key{Platform: "whatsapp", UserID: "u1", ChatID: "a"}, RoleUser, "other platform")

	assert.Equal(t, []string{"a1", "a2"}, texts(s.Recent(ctx, chatA, 20)))
	assert.Equal(t, []string{"b1"}, texts(s.Recent(ctx, chatB, 20)))
	assert.Equal(t, []string{"a1", "b1", "a2"}, texts(s.Recent(ctx, allChats, 20)))

	s.Clear(ctx, chatA)
	assert.Empty(t, s.Recent(ctx, chatA, 20))
	assert.Equal(t, []string{"b1"}, texts(s.Recent(ctx, allChats, 20)))

	s.Append(ctx, chatA, RoleUser, "a3")
	s.Clear(ctx, allChats)
	assert.Empty(t, s.Recent(ctx, allChats, 20))
	assert.Equal(t, []string{"other user"}, texts(s.Recent(ctx, Key{Platform: "telegram", UserID: "u2"}, 20)))
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	s := NewMemoryStore(500, testLogger())
	ctx := context.Background()
	key := Key{Platform: "telegram", UserID: "u1", ChatID: "c1"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(ctx, key, RoleUser, fmt.Sprint(i))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.History(ctx, key), 50)
}

func TestMongoStore_UnavailableDegrades(t *testing.T) {
	s := NewMongoStore(db.NewMongo("notmongo://broken", "", testLogger()), 10, testLogger())
	ctx := context.Background()
	key := Key{Platform: "telegram", UserID: "u1"}

	assert.NotPanics(t, func() {
		s.Append(ctx, key, RoleUser, "hello")
		s.Clear(ctx, key)
	})
	assert.Empty(t, s.Recent(ctx, key, 5))
	assert.Empty(t, s.History(ctx, key))
}

func TestMongoStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	logger := testLogger()
	container, err := db.SetupMongoTestContainer(ctx, logger)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	adapter := db.NewMongo(container.URI(), "memory_test", logger)
	defer func() { _ = adapter.Close(context.Background()) }()

	s := NewMongoStore(adapter, 5, logger)
	key := Key{Platform: "telegram", UserID: "u1", ChatID: "c1"}
	for i := 1; i <= 8; i++ {
		s.Append(ctx, key, RoleUser, fmt.Sprintf("turn %d", i))
	}
	s.Append(ctx, Key{Platform: "telegram", UserID: "u1", ChatID: "c2"}, RoleAssistant, "other chat")

	assert.Equal(t, []string{"turn 4", "turn 5", "turn 6", "turn 7", "turn 8"}, texts(s.History(ctx, key)))
	assert.Equal(t, []string{"turn 7", "turn 8"}, texts(s.Recent(ctx, key, 2)))
	assert.Equal(t, []string{"turn 8", "other chat"}, texts(s.Recent(ctx, Key{Platform: "telegram", UserID: "u1"}, 2)))

	s.Clear(ctx, key)
	assert.Empty(t, s.Recent(ctx, key, 5))
	assert.Len(t, s.Recent(ctx, Key{Platform: "telegram", UserID: "u1"}, 5), 1)
}
