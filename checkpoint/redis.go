package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures the Redis-backed checkpoint store.
type RedisConfig struct {
	Addr      string        `yaml:"addr" json:"addr"`
	Password  string        `yaml:"password" json:"password"`
	DB        int           `yaml:"db" json:"db"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// RedisStore persists checkpoints in Redis so a run can resume on any node.
// State lives under {prefix}ckpt:{pipeline}:{session}; a per-pipeline sorted
// set scored by update time indexes the sessions, and a plain set tracks the
// pipeline names for unfiltered List calls.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg, logger), nil
}

// NewRedisStoreFromClient wraps an existing client. The store takes
// ownership and closes it on Close.
func NewRedisStoreFromClient(client redis.UniversalClient, cfg RedisConfig, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "sigflow:"
	}

	return &RedisStore{
		client: client,
		prefix: prefix + "ckpt:",
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "checkpoint_redis")),
	}
}

// Name implements Store.
func (s *RedisStore) Name() string { return "redis" }

// dataKey returns the Redis key holding a checkpoint document.
func (s *RedisStore) dataKey(pipeline, session string) string {
	return s.prefix + pipeline + ":" + session
}

// indexKey returns the sorted set indexing one pipeline's sessions.
func (s *RedisStore) indexKey(pipeline string) string {
	return s.prefix + "index:" + pipeline
}

// pipelinesKey returns the set of known pipeline names.
func (s *RedisStore) pipelinesKey() string {
	return s.prefix + "pipelines"
}

// Save stores the checkpoint and refreshes its index entries. With a TTL
// configured the document expires on its own; stale index entries are
// dropped lazily by List.
func (s *RedisStore) Save(ctx context.Context, pipeline, session string, state any) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}

	score := float64(time.Now().UnixNano())

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(pipeline, session), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(pipeline), redis.Z{Score: score, Member: session})
	pipe.SAdd(ctx, s.pipelinesKey(), pipeline)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved",
		zap.String("pipeline", pipeline),
		zap.String("session", session),
		zap.Int("bytes", len(data)))

	return nil
}

// Load reads a checkpoint into the value pointed to by into.
func (s *RedisStore) Load(ctx context.Context, pipeline, session string, into any) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	data, err := s.client.Get(ctx, s.dataKey(pipeline, session)).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return nil
}

// List returns stored checkpoints, newest first, optionally filtered by
// pipeline name. Index entries whose document expired are removed as they
// are encountered.
func (s *RedisStore) List(ctx context.Context, pipeline string) ([]Ref, error) {
	pipelines := []string{pipeline}
	if pipeline == "" {
		var err error
		pipelines, err = s.client.SMembers(ctx, s.pipelinesKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list checkpoint pipelines: %w", err)
		}
	}

	var refs []Ref
	for _, p := range pipelines {
		entries, err := s.client.ZRevRangeWithScores(ctx, s.indexKey(p), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list checkpoints for %s: %w", p, err)
		}
		for _, entry := range entries {
			session, ok := entry.Member.(string)
			if !ok {
				continue
			}
			exists, err := s.client.Exists(ctx, s.dataKey(p, session)).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to check checkpoint %s/%s: %w", p, session, err)
			}
			if exists == 0 {
				s.client.ZRem(ctx, s.indexKey(p), session)
				continue
			}
			refs = append(refs, Ref{
				Pipeline:  p,
				Session:   session,
				UpdatedAt: time.Unix(0, int64(entry.Score)),
			})
		}
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].UpdatedAt.After(refs[j].UpdatedAt)
	})
	return refs, nil
}

// Delete removes a checkpoint and its index entry.
func (s *RedisStore) Delete(ctx context.Context, pipeline, session string) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	removed, err := s.client.Del(ctx, s.dataKey(pipeline, session)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if err := s.client.ZRem(ctx, s.indexKey(pipeline), session).Err(); err != nil {
		return fmt.Errorf("failed to remove checkpoint index entry: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
