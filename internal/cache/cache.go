// SPDX-License-Identifier: MIT

// Package cache holds a short-lived Redis cache of resolved manifests.
// Correctness never depends on it: every entry expires well before the
// upstream stream URLs do, and any Redis failure falls through to a fresh
// resolve.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/soundscope/ytrelay/internal/extract"
)

const keyPrefix = "ytrelay:manifest:"

// Manifests caches resolved format manifests by video ID.
type Manifests struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects a manifest cache to the Redis instance at addr.
func New(addr string, ttl time.Duration, logger zerolog.Logger) *Manifests {
	return &Manifests{
		rdb:    redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached manifest for videoID, or false on miss or error.
func (c *Manifests) Get(ctx context.Context, videoID string) (*extract.Manifest, bool) {
	data, err := c.rdb.Get(ctx, keyPrefix+videoID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("video_id", videoID).Msg("manifest cache read failed")
		}
		return nil, false
	}

	var m extract.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		c.logger.Warn().Err(err).Str("video_id", videoID).Msg("dropping undecodable cache entry")
		c.rdb.Del(ctx, keyPrefix+videoID)
		return nil, false
	}
	return &m, true
}

// Put stores a manifest. Failures are logged and swallowed.
func (c *Manifests) Put(ctx context.Context, videoID string, m *extract.Manifest) {
	data, err := json.Marshal(m)
	if err != nil {
		c.logger.Warn().Err(err).Str("video_id", videoID).Msg("manifest cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+videoID, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("video_id", videoID).Msg("manifest cache write failed")
	}
}

// Close releases the Redis connection.
func (c *Manifests) Close() error {
	return c.rdb.Close()
}
