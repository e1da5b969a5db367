package convmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/EternisAI/image-vault/pkg/helpers"
	"github.com/EternisAI/image-vault/pkg/ring"
)

type entry struct {
	turn Turn
	seq  uint64
}

type userKey struct {
	platform string
	userID   string
}

// MemoryStore is the in-process fallback. Each (platform, user, chat) keeps at most window turns.
type MemoryStore struct {
	window int
	logger *log.Logger
	now    func() time.Time

	mu    sync.Mutex
	seq   uint64
	chats map[userKey]map[string]*ring.Buffer[entry]
}

func NewMemoryStore(window int, logger *log.Logger) *MemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryStore{
		window: window,
		logger: logger,
		now:    time.Now,
		chats:  make(map[userKey]map[string]*ring.Buffer[entry]),
	}
}

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) Append(ctx context.Context, key Key, role Role, text string) {
	turn := Turn{
		Platform:  key.Platform,
		UserID:    key.UserID,
		ChatID:    key.ChatID,
		Role:      role,
		Text:      prepareText(text),
		Timestamp: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uk := userKey{platform: key.Platform, userID: key.UserID}
	chats, ok := s.chats[uk]
	if !ok {
		chats = make(map[string]*ring.Buffer[entry])
		s.chats[uk] = chats
	}
	buf, ok := chats[key.ChatID]
	if !ok {
		buf = ring.New[entry](s.window)
		chats[key.ChatID] = buf
	}
	s.seq++
	if buf.Push(entry{turn: turn, seq: s.seq}) {
		s.logger.Debug("Memory window full, dropped oldest turn", "user_id", key.UserID, "chat_id", key.ChatID)
	}
}

// entries returns the scoped entries oldest first. An empty ChatID merges all chats.
func (s *MemoryStore) entries(key Key) []entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := s.chats[userKey{platform: key.Platform, userID: key.UserID}]
	if key.ChatID != "" {
		buf, ok := chats[key.ChatID]
		if !ok {
			return nil
		}
		return buf.All()
	}

	var merged []entry
	for _, buf := range chats {
		merged = append(merged, buf.All()...)
	}
	slices.SortFunc(merged, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	return merged
}

func toTurns(entries []entry) []Turn {
	return lo.Map(entries, func(e entry, _ int) Turn { return e.turn })
}

func (s *MemoryStore) Recent(ctx context.Context, key Key, limit int) []Turn {
	return toTurns(helpers.SafeLastN(s.entries(key), clampLimit(limit)))
}

func (s *MemoryStore) History(ctx context.Context, key Key) []Turn {
	return toTurns(s.entries(key))
}

func (s *MemoryStore) Clear(ctx context.Context, key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uk := userKey{platform: key.Platform, userID: key.UserID}
	if key.ChatID == "" {
		delete(s.chats, uk)
		return
	}
	if chats, ok := s.chats[uk]; ok {
		delete(chats, key.ChatID)
		if len(chats) == 0 {
			delete(s.chats, uk)
		}
	}
}
