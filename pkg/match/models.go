package match

import (
	"time"

	"github.com/fundermatch/platform/pkg/common/models"
	"gorm.io/datatypes"
)

// CacheEntry is one persisted match computation, keyed by the charity number
// and the derived cache fingerprint. last_sync_at pins the entry to the sync
// state it was computed against; freshness invalidation removes entries
// whose pin predates a later completed sync, TTL notwithstanding.
type CacheEntry struct {
	CharityNumber string         `json:"charity_number" gorm:"primaryKey;column:charity_number;size:64"`
	CacheKey      string         `json:"cache_key" gorm:"primaryKey;column:cache_key;size:32"`
	Matches       datatypes.JSON `json:"matches" gorm:"column:matches"`
	FunderCount   int            `json:"funder_count" gorm:"column:funder_count"`
	LastSyncAt    *time.Time     `json:"last_sync_at,omitempty" gorm:"column:last_sync_at;index"`
	CreatedAt     time.Time      `json:"created_at" gorm:"column:created_at"`
	ExpiresAt     time.Time      `json:"expires_at" gorm:"column:expires_at;index"`
}

func (CacheEntry) TableName() string {
	return "match_cache"
}

// CachedResult is the deserialized form handed back on a cache hit.
type CachedResult struct {
	Matches     []models.FunderMatch `json:"matches"`
	FunderCount int                  `json:"funder_count"`
	CreatedAt   time.Time            `json:"created_at"`
}
