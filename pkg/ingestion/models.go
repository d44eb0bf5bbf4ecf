package ingestion

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	SyncTypeFull        = "full"
	SyncTypeIncremental = "incremental"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultCurrency is applied when the remote grant record omits one.
const DefaultCurrency = "GBP"

// Organisation mirrors one entry of the remote organisation directory plus
// the aggregate statistics from its detail endpoint. Rows are upserted by
// org_id and never deleted by the sync engine.
type Organisation struct {
	OrgID             string         `json:"org_id" gorm:"primaryKey;column:org_id"`
	Name              string         `json:"name" gorm:"column:name"`
	IsFunder          bool           `json:"is_funder" gorm:"column:is_funder;index"`
	IsRecipient       bool           `json:"is_recipient" gorm:"column:is_recipient"`
	FunderStats       datatypes.JSON `json:"funder_stats,omitempty" gorm:"column:funder_stats"`
	RecipientStats    datatypes.JSON `json:"recipient_stats,omitempty" gorm:"column:recipient_stats"`
	GrantCount        int            `json:"grant_count" gorm:"column:grant_count;index"`
	LastGrantMadeDate *time.Time     `json:"last_grant_made_date,omitempty" gorm:"column:last_grant_made_date"`
	CreatedAt         time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"column:updated_at"`
}

func (Organisation) TableName() string {
	return "organisations"
}

// Grant is one funding award. funder_org_id and recipient_org_id are soft
// references; a missing organisation row does not block the grant.
type Grant struct {
	GrantID         string          `json:"grant_id" gorm:"primaryKey;column:grant_id"`
	Title           string          `json:"title" gorm:"column:title"`
	Description     string          `json:"description" gorm:"column:description;type:text"`
	AmountAwarded   decimal.Decimal `json:"amount_awarded" gorm:"column:amount_awarded;type:numeric(14,2)"`
	Currency        string          `json:"currency" gorm:"column:currency;size:3;default:GBP"`
	AwardDate       *time.Time      `json:"award_date,omitempty" gorm:"column:award_date;index"`
	FunderOrgID     *string         `json:"funder_org_id,omitempty" gorm:"column:funder_org_id;index"`
	RecipientOrgID  *string         `json:"recipient_org_id,omitempty" gorm:"column:recipient_org_id;index"`
	Classifications datatypes.JSON  `json:"classifications,omitempty" gorm:"column:classifications"`
	Locations       datatypes.JSON  `json:"locations,omitempty" gorm:"column:locations"`
	Raw             datatypes.JSON  `json:"-" gorm:"column:raw"`
	CreatedAt       time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (Grant) TableName() string {
	return "grants"
}

// SyncLog records one sync attempt. The newest completed row defines the
// last successful sync time used for incremental decisions and cache
// freshness invalidation.
type SyncLog struct {
	ID                  uint       `json:"id" gorm:"primaryKey;column:id"`
	SyncType            string     `json:"sync_type" gorm:"column:sync_type"`
	Status              string     `json:"status" gorm:"column:status;index"`
	OrganisationsSynced int        `json:"organisations_synced" gorm:"column:organisations_synced"`
	GrantsSynced        int        `json:"grants_synced" gorm:"column:grants_synced"`
	GrantsSkipped       int        `json:"grants_skipped" gorm:"column:grants_skipped"`
	StartedAt           time.Time  `json:"started_at" gorm:"column:started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
	ErrorMessage        string     `json:"error_message,omitempty" gorm:"column:error_message"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}
