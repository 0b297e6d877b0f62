// Package cache stores enriched match results in Redis keyed by
// (userID, grantID). Entries carry the profile version and grant
// freshness they were computed against; a stale entry is a miss, never
// an error. Every operation degrades on store failure: reads return a
// miss, writes become no-ops, and the pipeline recomputes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"grantmatch/internal/common/logger"
	"grantmatch/internal/common/metrics"
)

const (
	keyPrefix       = "match:"
	DefaultTTLDays  = 7
	scanBatchSize   = 200
	deleteBatchSize = 100
)

// Miss reasons reported to metrics.
const (
	missAbsent       = "absent"
	missExpired      = "expired"
	missStaleProfile = "stale_profile"
	missStaleGrant   = "stale_grant"
	missUnreadable   = "unreadable"
)

// MatchData is one cached enriched match.
type MatchData struct {
	ProfileVersion    int64     `json:"profileVersion"`
	GrantUpdatedAt    time.Time `json:"grantUpdatedAt"`
	FitScore          int       `json:"fitScore"`
	FitSummary        string    `json:"fitSummary,omitempty"`
	FitExplanation    string    `json:"fitExplanation,omitempty"`
	EligibilityStatus string    `json:"eligibilityStatus,omitempty"`
	NextSteps         []string  `json:"nextSteps,omitempty"`
	WhatYouCanFund    []string  `json:"whatYouCanFund,omitempty"`
	ApplicationTips   []string  `json:"applicationTips,omitempty"`
	Urgency           string    `json:"urgency,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// MatchCache is the Redis-backed cache. Safe for concurrent use; each
// key's upsert is independent and last-write-wins.
type MatchCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewMatchCache(client *redis.Client, ttlDays int, log logger.Logger) *MatchCache {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	return &MatchCache{
		client: client,
		ttl:    time.Duration(ttlDays) * 24 * time.Hour,
		logger: log,
		now:    time.Now,
	}
}

func matchKey(userID, grantID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, userID, grantID)
}

// Get returns the cached match for one pair, or nil on any kind of miss:
// absent, expired (deleted as a side effect), written against an older
// profile version, or older than the supplied grant timestamp. Pass a
// nil grantUpdatedAt to skip the freshness check.
func (c *MatchCache) Get(ctx context.Context, userID, grantID string, profileVersion int64, grantUpdatedAt *time.Time) *MatchData {
	key := matchKey(userID, grantID)

	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues(missAbsent).Inc()
		return nil
	}
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		c.logger.WithError(err).Warn("match cache read failed, treating as miss", map[string]interface{}{
			"userId":  userID,
			"grantId": grantID,
		})
		return nil
	}

	var data MatchData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		metrics.CacheMisses.WithLabelValues(missUnreadable).Inc()
		c.logger.WithError(err).Warn("match cache entry unreadable, evicting", map[string]interface{}{
			"key": key,
		})
		c.deleteQuietly(ctx, key)
		return nil
	}

	if c.now().After(data.ExpiresAt) {
		metrics.CacheMisses.WithLabelValues(missExpired).Inc()
		c.deleteQuietly(ctx, key)
		return nil
	}
	if data.ProfileVersion != profileVersion {
		metrics.CacheMisses.WithLabelValues(missStaleProfile).Inc()
		return nil
	}
	if grantUpdatedAt != nil && grantUpdatedAt.After(data.GrantUpdatedAt) {
		metrics.CacheMisses.WithLabelValues(missStaleGrant).Inc()
		return nil
	}

	metrics.CacheHits.Inc()
	return &data
}

// GetBatch returns the subset of requested grants with valid cached
// entries. It checks expiry and profile version but not grant freshness;
// batch callers have already filtered candidates to current grants.
func (c *MatchCache) GetBatch(ctx context.Context, userID string, grantIDs []string, profileVersion int64) map[string]*MatchData {
	result := make(map[string]*MatchData, len(grantIDs))
	if len(grantIDs) == 0 {
		return result
	}

	keys := make([]string, len(grantIDs))
	for i, id := range grantIDs {
		keys[i] = matchKey(userID, id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.CacheErrors.WithLabelValues("mget").Inc()
		c.logger.WithError(err).Warn("match cache batch read failed, treating as all-miss", map[string]interface{}{
			"userId": userID,
			"count":  len(grantIDs),
		})
		return result
	}

	now := c.now()
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var data MatchData
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			continue
		}
		if now.After(data.ExpiresAt) || data.ProfileVersion != profileVersion {
			continue
		}
		result[grantIDs[i]] = &data
	}
	return result
}

// Set upserts one entry, stamping CreatedAt and ExpiresAt. Write errors
// are logged and swallowed.
func (c *MatchCache) Set(ctx context.Context, userID, grantID string, data *MatchData) {
	payload, key := c.prepare(userID, grantID, data)
	if payload == nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		c.logger.WithError(err).Warn("match cache write failed", map[string]interface{}{
			"userId":  userID,
			"grantId": grantID,
		})
	}
}

// SetBatch upserts several entries for one user in a single MULTI/EXEC
// pipeline, so a failure cannot leave a partial batch behind.
func (c *MatchCache) SetBatch(ctx context.Context, userID string, entries map[string]*MatchData) {
	if len(entries) == 0 {
		return
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for grantID, data := range entries {
			payload, key := c.prepare(userID, grantID, data)
			if payload == nil {
				continue
			}
			pipe.Set(ctx, key, payload, c.ttl)
		}
		return nil
	})
	if err != nil {
		metrics.CacheErrors.WithLabelValues("set_batch").Inc()
		c.logger.WithError(err).Warn("match cache batch write failed", map[string]interface{}{
			"userId": userID,
			"count":  len(entries),
		})
	}
}

func (c *MatchCache) prepare(userID, grantID string, data *MatchData) ([]byte, string) {
	now := c.now()
	data.CreatedAt = now
	data.ExpiresAt = now.Add(c.ttl)

	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.WithError(err).Warn("match cache entry not serializable", map[string]interface{}{
			"userId":  userID,
			"grantId": grantID,
		})
		return nil, ""
	}
	return payload, matchKey(userID, grantID)
}

// InvalidateUser deletes every cached match for one user. Called when a
// profile mutation bumps the profile version.
func (c *MatchCache) InvalidateUser(ctx context.Context, userID string) int {
	return c.deleteByPattern(ctx, fmt.Sprintf("%s%s:*", keyPrefix, userID), "invalidate_user")
}

// InvalidateGrant deletes every cached match for one grant across all
// users. Called when grant ingestion updates a grant's content.
func (c *MatchCache) InvalidateGrant(ctx context.Context, grantID string) int {
	return c.deleteByPattern(ctx, fmt.Sprintf("%s*:%s", keyPrefix, grantID), "invalidate_grant")
}

// CleanupExpired sweeps entries whose embedded expiry has passed. The
// read path already evicts lazily; this keeps keys written by older
// versions without a store-level TTL from accumulating.
func (c *MatchCache) CleanupExpired(ctx context.Context) int {
	deleted := 0
	now := c.now()

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := c.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var data MatchData
		if err := json.Unmarshal([]byte(raw), &data); err != nil || now.After(data.ExpiresAt) {
			if c.client.Del(ctx, key).Err() == nil {
				deleted++
			}
		}
	}
	if err := iter.Err(); err != nil {
		metrics.CacheErrors.WithLabelValues("cleanup").Inc()
		c.logger.WithError(err).Warn("match cache cleanup scan failed", nil)
	}
	return deleted
}

func (c *MatchCache) deleteByPattern(ctx context.Context, pattern, operation string) int {
	deleted := 0
	batch := make([]string, 0, deleteBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			metrics.CacheErrors.WithLabelValues(operation).Inc()
			c.logger.WithError(err).Warn("match cache bulk delete failed", map[string]interface{}{
				"pattern": pattern,
			})
		} else {
			deleted += int(n)
		}
		batch = batch[:0]
	}

	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= deleteBatchSize {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		metrics.CacheErrors.WithLabelValues(operation).Inc()
		c.logger.WithError(err).Warn("match cache invalidation scan failed", map[string]interface{}{
			"pattern": pattern,
		})
	}
	return deleted
}

func (c *MatchCache) deleteQuietly(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WithError(err).Debug("match cache eviction failed", map[string]interface{}{
			"key": key,
		})
	}
}
