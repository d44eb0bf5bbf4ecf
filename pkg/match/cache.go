package match

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fundermatch/platform/pkg/common/logger"
	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/fundermatch/platform/pkg/ingestion"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const redisKeyPrefix = "match:"

// LastSyncProvider reports the newest completed sync so stored entries can
// be pinned to the grant snapshot they were computed against.
type LastSyncProvider interface {
	LastCompletedSync(ctx context.Context) (*ingestion.SyncLog, error)
}

// entryStore is the durable cache tier. get returns nil for absent or
// expired entries; deleteStale removes entries pinned before syncDate,
// unpinned entries included.
type entryStore interface {
	get(ctx context.Context, charityNumber, cacheKey string, now time.Time) (*CacheEntry, error)
	put(ctx context.Context, entry *CacheEntry) error
	deleteStale(ctx context.Context, syncDate time.Time) (int64, error)
	migrate() error
}

// Cache is the two-tier match cache: a Redis hot tier in front of the
// durable Postgres table. Caching is strictly a performance optimization —
// every failure path here degrades to a miss or a skipped write, never to a
// caller-visible error.
type Cache struct {
	store    entryStore
	redis    *redis.Client
	ttl      time.Duration
	lastSync LastSyncProvider
}

func NewCache(db *gorm.DB, redisClient *redis.Client, ttl time.Duration, lastSync LastSyncProvider) *Cache {
	return &Cache{store: &gormEntryStore{db: db}, redis: redisClient, ttl: ttl, lastSync: lastSync}
}

func (c *Cache) AutoMigrate() error {
	return c.store.migrate()
}

// Lookup returns the stored result for (charityNumber, cacheKey) if a
// non-expired entry exists. Store errors degrade to a miss.
func (c *Cache) Lookup(ctx context.Context, charityNumber, cacheKey string) (*CachedResult, bool) {
	if result := c.lookupHot(ctx, charityNumber, cacheKey); result != nil {
		return result, true
	}

	entry, err := c.store.get(ctx, charityNumber, cacheKey, time.Now().UTC())
	if err != nil {
		logger.Log.WithError(err).Warn("match cache lookup failed, treating as miss")
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	var matches []models.FunderMatch
	if err := json.Unmarshal(entry.Matches, &matches); err != nil {
		logger.Log.WithError(err).Warn("match cache entry undecodable, treating as miss")
		return nil, false
	}

	result := &CachedResult{
		Matches:     matches,
		FunderCount: entry.FunderCount,
		CreatedAt:   entry.CreatedAt,
	}
	c.storeHot(ctx, charityNumber, cacheKey, result, time.Until(entry.ExpiresAt))
	return result, true
}

// Store upserts the computed matches with a fresh TTL and pins the entry to
// the current last-completed-sync time. funderCount is the size of the
// funder population that was scored, not the number of matches kept, so a
// cached replay reports the same count as the original computation.
// Failures are logged and swallowed.
func (c *Cache) Store(ctx context.Context, profile models.CharityProfile, cacheKey string, matches []models.FunderMatch, funderCount int) {
	blob, err := json.Marshal(matches)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to encode matches for cache")
		return
	}

	var lastSyncAt *time.Time
	if c.lastSync != nil {
		last, err := c.lastSync.LastCompletedSync(ctx)
		if err != nil {
			logger.Log.WithError(err).Warn("failed to resolve last sync time for cache entry")
		} else if last != nil {
			lastSyncAt = last.CompletedAt
		}
	}

	now := time.Now().UTC()
	entry := &CacheEntry{
		CharityNumber: profile.CharityNumber,
		CacheKey:      cacheKey,
		Matches:       blob,
		FunderCount:   funderCount,
		LastSyncAt:    lastSyncAt,
		CreatedAt:     now,
		ExpiresAt:     now.Add(c.ttl),
	}

	if err := c.store.put(ctx, entry); err != nil {
		logger.Log.WithError(err).Warn("failed to store match cache entry")
		return
	}

	c.storeHot(ctx, profile.CharityNumber, cacheKey, &CachedResult{
		Matches:     matches,
		FunderCount: funderCount,
		CreatedAt:   now,
	}, c.ttl)
}

// InvalidateBefore deletes entries computed against sync state older than
// syncDate, including entries stored before any sync completed. The hot
// tier is flushed wholesale; it repopulates from Postgres on demand.
func (c *Cache) InvalidateBefore(ctx context.Context, syncDate time.Time) (int64, error) {
	removed, err := c.store.deleteStale(ctx, syncDate)
	if err != nil {
		return 0, err
	}
	c.FlushHotTier(ctx)
	return removed, nil
}

// FlushHotTier drops every hot-tier entry. Called on sync completion so the
// Redis layer cannot outlive a freshness invalidation.
func (c *Cache) FlushHotTier(ctx context.Context) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Log.WithError(err).Warn("failed to scan match cache hot tier")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		logger.Log.WithError(err).Warn("failed to flush match cache hot tier")
		return
	}
	logger.Log.WithField("keys", len(keys)).Info("Flushed match cache hot tier")
}

func (c *Cache) lookupHot(ctx context.Context, charityNumber, cacheKey string) *CachedResult {
	if c.redis == nil {
		return nil
	}
	payload, err := c.redis.Get(ctx, redisKeyPrefix+charityNumber+":"+cacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Debug("match cache hot tier unavailable")
		}
		return nil
	}
	var result CachedResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil
	}
	return &result
}

func (c *Cache) storeHot(ctx context.Context, charityNumber, cacheKey string, result *CachedResult, ttl time.Duration) {
	if c.redis == nil || ttl <= 0 {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKeyPrefix+charityNumber+":"+cacheKey, payload, ttl).Err(); err != nil {
		logger.Log.WithError(err).Debug("failed to populate match cache hot tier")
	}
}

type gormEntryStore struct {
	db *gorm.DB
}

func (s *gormEntryStore) migrate() error {
	return s.db.AutoMigrate(&CacheEntry{})
}

func (s *gormEntryStore) get(ctx context.Context, charityNumber, cacheKey string, now time.Time) (*CacheEntry, error) {
	var entry CacheEntry
	err := s.db.WithContext(ctx).
		Where("charity_number = ? AND cache_key = ? AND expires_at > ?", charityNumber, cacheKey, now).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *gormEntryStore) put(ctx context.Context, entry *CacheEntry) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "charity_number"}, {Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"matches", "funder_count", "last_sync_at", "created_at", "expires_at",
		}),
	}).Create(entry).Error
}

func (s *gormEntryStore) deleteStale(ctx context.Context, syncDate time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("last_sync_at < ? OR last_sync_at IS NULL", syncDate).
		Delete(&CacheEntry{})
	return result.RowsAffected, result.Error
}
