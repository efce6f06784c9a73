package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hammamikhairi/dagchef/internal/domain"
	"github.com/hammamikhairi/dagchef/internal/logger"
	"github.com/hammamikhairi/dagchef/internal/wire"
)

const (
	redisKeyPrefix = "dagchef:recipe:"
	redisIndexKey  = "dagchef:recipes"
	redisRetries   = 5
)

var _ domain.RecipeStore = (*RedisStore)(nil)

// RedisStore keeps each recipe as a JSON string under dagchef:recipe:<id>
// and the set of ids under dagchef:recipes. Saves use WATCH/MULTI so
// concurrent editors never interleave.
type RedisStore struct {
	client *redis.Client
	newID  func() string
	log    *logger.Logger
}

// NewRedisStore connects to url (redis://host:port/db) and pings it.
func NewRedisStore(ctx context.Context, url string, log *logger.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	log.Debug("connected to redis at %s", opts.Addr)
	return &RedisStore{client: client, newID: newPersistedID, log: log}, nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error { return s.client.Close() }

func redisKey(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) get(ctx context.Context, c redis.Cmdable, id string) (*domain.Document, error) {
	raw, err := c.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &domain.NotFoundError{Kind: "recipe", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading recipe %s: %w", id, err)
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding recipe %s: %w", id, err)
	}
	return &doc, nil
}

func put(ctx context.Context, pipe redis.Pipeliner, doc *domain.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding recipe %s: %w", doc.ID, err)
	}
	pipe.Set(ctx, redisKey(doc.ID), raw, 0)
	pipe.SAdd(ctx, redisIndexKey, doc.ID)
	return nil
}

// List returns summaries of every indexed recipe, sorted by title.
func (s *RedisStore) List(ctx context.Context) ([]domain.RecipeSummary, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	out := make([]domain.RecipeSummary, 0, len(ids))
	for _, id := range ids {
		doc, err := s.get(ctx, s.client, id)
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("index references missing recipe %s", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc.Summary())
	}
	sortSummaries(out)
	return out, nil
}

// Load returns a recipe document.
func (s *RedisStore) Load(ctx context.Context, id string) (*domain.Document, error) {
	return s.get(ctx, s.client, id)
}

// Create stores doc, replacing any document with the same id.
func (s *RedisStore) Create(ctx context.Context, doc *domain.Document) error {
	if err := wire.Check(doc); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return put(ctx, pipe, doc)
	})
	if err != nil {
		return fmt.Errorf("storing recipe %s: %w", doc.ID, err)
	}
	return nil
}

// Save applies a change set under an optimistic lock on the recipe key.
func (s *RedisStore) Save(ctx context.Context, cs *domain.ChangeSet) (*domain.IDMap, error) {
	var ids *domain.IDMap
	txf := func(tx *redis.Tx) error {
		cur, err := s.get(ctx, tx, cs.RecipeID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		next, m, err := wire.Apply(cur, cs, s.newID)
		if err != nil {
			return fmt.Errorf("saving recipe %s: %w", cs.RecipeID, err)
		}
		ids = m
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return put(ctx, pipe, next)
		})
		return err
	}

	for i := 0; i < redisRetries; i++ {
		err := s.client.Watch(ctx, txf, redisKey(cs.RecipeID))
		if errors.Is(err, redis.TxFailedErr) {
			s.log.Debug("recipe %s changed during save, retrying", cs.RecipeID)
			continue
		}
		if err != nil {
			return nil, err
		}
		return ids, nil
	}
	return nil, fmt.Errorf("saving recipe %s: too much contention", cs.RecipeID)
}

// Delete removes a recipe and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, redisKey(id))
		pipe.SRem(ctx, redisIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting recipe %s: %w", id, err)
	}
	if del.Val() == 0 {
		return &domain.NotFoundError{Kind: "recipe", ID: id}
	}
	return nil
}
