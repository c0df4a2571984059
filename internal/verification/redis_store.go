package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pending_verification:"

// RedisStore keeps pending verifications in Redis so multiple processes can
// serve the flow behind one load balancer. GETDEL gives the same
// consume-exactly-once guarantee as the in-memory store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Ensure RedisStore implements PendingStore
var _ PendingStore = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Create(ctx context.Context, discordUserID, guildID string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	record := PendingVerification{
		Token:         token,
		DiscordUserID: discordUserID,
		GuildID:       guildID,
		CreatedAt:     time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pending verification: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+token, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store pending verification: %w", err)
	}

	return token, nil
}

func (s *RedisStore) Consume(ctx context.Context, token string) (*PendingVerification, error) {
	data, err := s.client.GetDel(ctx, redisKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume pending verification: %w", err)
	}

	var record PendingVerification
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending verification: %w", err)
	}
	return &record, nil
}

// Ping reports whether Redis is reachable. Used by the health check.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
