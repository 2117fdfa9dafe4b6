// Package rediscache wraps a repository.PostRepository with a Redis read-through
// cache for single-post lookups.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"boardapi/internal/model"
	"boardapi/internal/repository"
)

const (
	keyPrefix     = "board:post:"
	versionPrefix = "board:post:ver:"
	// versionTTL must outlive any single read-through by a wide margin.
	versionTTL = 24 * time.Hour
)

// PostCache caches FindByID results. Writes go to the wrapped repository first and
// then evict the cached entry. Redis failures are logged and never fail a request.
//
// Every eviction bumps a per-post version counter. A read-through only fills the
// cache when the version it saw before loading the row is still current, so a load
// that raced with a delete or update never writes the old row back.
type PostCache struct {
	next   repository.PostRepository
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// New wraps next with a cache backed by client.
func New(next repository.PostRepository, client *redis.Client, ttl time.Duration, log *zap.Logger) *PostCache {
	return &PostCache{next: next, client: client, ttl: ttl, log: log.With(zap.String("component", "post_cache"))}
}

var _ repository.PostRepository = (*PostCache)(nil)

var errStale = errors.New("cached version changed")

func cacheKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

func versionKey(id int64) string {
	return versionPrefix + strconv.FormatInt(id, 10)
}

func (c *PostCache) FindAll(ctx context.Context) ([]model.Post, error) {
	return c.next.FindAll(ctx)
}

func (c *PostCache) FindByID(ctx context.Context, id int64) (model.Post, error) {
	key := cacheKey(id)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p model.Post
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, nil
		}
		c.log.Warn("cache_decode_failed", zap.String("key", key))
	case err != redis.Nil:
		c.log.Warn("cache_get_failed", zap.String("key", key), zap.Error(err))
	}

	version, verErr := c.client.Get(ctx, versionKey(id)).Int64()
	if verErr == redis.Nil {
		version, verErr = 0, nil
	}

	p, err := c.next.FindByID(ctx, id)
	if err != nil {
		return model.Post{}, err
	}

	if verErr != nil {
		c.log.Warn("cache_version_failed", zap.String("key", key), zap.Error(verErr))
		return p, nil
	}
	c.fill(ctx, id, version, p)
	return p, nil
}

// fill stores p unless the post was evicted after version was read.
func (c *PostCache) fill(ctx context.Context, id, version int64, p model.Post) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	key, verKey := cacheKey(id), versionKey(id)

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Int64()
		if err == redis.Nil {
			current, err = 0, nil
		}
		if err != nil {
			return err
		}
		if current != version {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, c.ttl)
			return nil
		})
		return err
	}, verKey)

	switch {
	case err == nil, errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
	default:
		c.log.Warn("cache_set_failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *PostCache) Save(ctx context.Context, post model.Post) (model.Post, error) {
	saved, err := c.next.Save(ctx, post)
	if err != nil {
		return model.Post{}, err
	}
	c.evict(ctx, saved.ID)
	return saved, nil
}

func (c *PostCache) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return c.next.ExistsByID(ctx, id)
}

func (c *PostCache) DeleteByID(ctx context.Context, id int64) error {
	if err := c.next.DeleteByID(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

func (c *PostCache) evict(ctx context.Context, id int64) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), versionTTL)
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		c.log.Warn("cache_evict_failed", zap.Int64("post_id", id), zap.Error(err))
	}
}
