package verification

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps pending verifications in process memory. Records are
// evicted after the configured TTL. Suitable for single-process
// deployments; data is lost on restart, which is an accepted limitation.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// Ensure MemoryStore implements PendingStore
var _ PendingStore = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	cleanupInterval := ttl
	if cleanupInterval < time.Minute {
		cleanupInterval = time.Minute
	}
	return &MemoryStore{
		cache: cache.New(ttl, cleanupInterval),
	}
}

func (s *MemoryStore) Create(_ context.Context, discordUserID, guildID string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	record := &PendingVerification{
		Token:         token,
		DiscordUserID: discordUserID,
		GuildID:       guildID,
		CreatedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	s.cache.Set(token, record, cache.DefaultExpiration)
	s.mu.Unlock()

	return token, nil
}

// Consume is a pop, not a peek: the lookup and the delete happen under one
// lock so a replayed token can never observe the original record.
func (s *MemoryStore) Consume(_ context.Context, token string) (*PendingVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, found := s.cache.Get(token)
	if !found {
		return nil, ErrNotFound
	}
	s.cache.Delete(token)

	return val.(*PendingVerification), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
