package judgments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/searchlab/search-eval/internal/pkg/errors"
)

// RedisStore persists judgments in Redis, one hash per query keyed by
// doc id. Useful when several labeling runs share one judgment pool.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.ConfigurationError("invalid redis URL: " + err.Error())
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.StorageError("connecting to redis", err)
	}

	return &RedisStore{
		client: client,
		prefix: "seval:judgments:",
	}, nil
}

func (s *RedisStore) queryKey(query string) string {
	return s.prefix + query
}

// Get returns the judgment for a pair, or nil when unjudged.
func (s *RedisStore) Get(ctx context.Context, query, docID string) (*RelevanceJudgment, error) {
	raw, err := s.client.HGet(ctx, s.queryKey(query), docID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError("reading judgment", err)
	}

	var j RelevanceJudgment
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, errors.StorageError("decoding judgment", err)
	}
	return &j, nil
}

// Put creates or replaces the judgment for a pair.
func (s *RedisStore) Put(ctx context.Context, judgment RelevanceJudgment) error {
	raw, err := json.Marshal(judgment)
	if err != nil {
		return errors.StorageError("encoding judgment", err)
	}

	if err := s.client.HSet(ctx, s.queryKey(judgment.Query), judgment.DocID, raw).Err(); err != nil {
		return errors.StorageError("writing judgment", err)
	}
	return nil
}

// List returns all judgments ordered by query then doc id.
func (s *RedisStore) List(ctx context.Context) ([]RelevanceJudgment, error) {
	var out []RelevanceJudgment

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		fields, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, errors.StorageError("listing judgments", err)
		}
		for _, raw := range fields {
			var j RelevanceJudgment
			if err := json.Unmarshal([]byte(raw), &j); err != nil {
				return nil, errors.StorageError("decoding judgment", err)
			}
			out = append(out, j)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.StorageError("scanning judgments", err)
	}

	sortJudgments(out)
	return out, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
