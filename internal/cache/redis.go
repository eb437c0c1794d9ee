package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SprintCache keeps recent board sprint listings. Misses and cache errors are equivalent
// to callers: the listing is fetched again. scope comes from Scope, so entries are only
// shared between callers holding the same credentials.
type SprintCache interface {
	GetSprints(ctx context.Context, scope string, boardID int64) ([]domain.Sprint, bool)
	PutSprints(ctx context.Context, scope string, boardID int64, sprints []domain.Sprint) error
}

// Scope identifies a site and the credentials used against it. Only a digest of the
// credentials is kept.
func Scope(site, email, apiToken string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(email) + ":" + strings.TrimSpace(apiToken)))
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(site)), "/") + "|" + hex.EncodeToString(sum[:16])
}

type Noop struct{}

func (Noop) GetSprints(context.Context, string, int64) ([]domain.Sprint, bool) { return nil, false }

func (Noop) PutSprints(context.Context, string, int64, []domain.Sprint) error { return nil }

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Close() error { return c.client.Close() }

func sprintsKey(scope string, boardID int64) string {
	return fmt.Sprintf("sprints:%s:%d", scope, boardID)
}

func (c *RedisCache) GetSprints(ctx context.Context, scope string, boardID int64) ([]domain.Sprint, bool) {
	raw, err := c.client.Get(ctx, sprintsKey(scope, boardID)).Bytes()
	if err != nil {
		return nil, false
	}
	var out []domain.Sprint
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *RedisCache) PutSprints(ctx context.Context, scope string, boardID int64, sprints []domain.Sprint) error {
	payload, err := json.Marshal(sprints)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, sprintsKey(scope, boardID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache sprints: %w", err)
	}
	return nil
}
