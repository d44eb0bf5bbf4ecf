package models

import (
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // sync.started, sync.completed, sync.failed, match.computed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Charity profile as supplied by the caller of the match trigger. The
// charity lookup service resolves registration numbers to this shape; the
// matching pipeline only consumes it.
type Classification struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name,omitempty"`
}

type CharityProfile struct {
	CharityNumber     string           `json:"charity_number" validate:"required"`
	Name              string           `json:"name" validate:"required"`
	LatestIncome      float64          `json:"latest_income" validate:"gte=0"`
	LatestExpenditure float64          `json:"latest_expenditure" validate:"gte=0"`
	What              []Classification `json:"what,omitempty" validate:"dive"`
	Who               []Classification `json:"who,omitempty" validate:"dive"`
	Regions           []string         `json:"regions,omitempty"`
	LocalAuthorities  []string         `json:"local_authorities,omitempty"`
}

// Funder matching
type ScoreBreakdown struct {
	MissionAlignment    float64 `json:"mission_alignment" validate:"gte=0,lte=100"`
	GeographicFit       float64 `json:"geographic_fit" validate:"gte=0,lte=100"`
	SizeCompatibility   float64 `json:"size_compatibility" validate:"gte=0,lte=100"`
	ActivityLevel       float64 `json:"activity_level" validate:"gte=0,lte=100"`
	HistoricalPrecedent float64 `json:"historical_precedent" validate:"gte=0,lte=100"`
}

type FunderMatch struct {
	FunderOrgID            string         `json:"funder_org_id" validate:"required"`
	FunderName             string         `json:"funder_name,omitempty"`
	MatchScore             float64        `json:"match_score" validate:"gte=0,lte=100"`
	ScoreBreakdown         ScoreBreakdown `json:"score_breakdown"`
	Reasoning              string         `json:"reasoning"`
	SimilarCharitiesFunded []string       `json:"similar_charities_funded,omitempty"`
}

// Sync trigger contract
type SyncOptions struct {
	MaxOrganisations int  `json:"max_organisations,omitempty"`
	MaxGrants        int  `json:"max_grants,omitempty"`
	Offset           int  `json:"offset,omitempty"`
	ForceFullSync    bool `json:"force_full_sync,omitempty"`
}

type SyncResult struct {
	OrganisationsSynced int        `json:"organisations_synced"`
	GrantsSynced        int        `json:"grants_synced"`
	GrantsSkipped       int        `json:"grants_skipped"`
	SyncType            string     `json:"sync_type"`
	LastSyncDate        *time.Time `json:"last_sync_date,omitempty"`
}

type MatchRequest struct {
	Charity      CharityProfile `json:"charity" validate:"required"`
	ForceRefresh bool           `json:"force_refresh,omitempty"`
}

type MatchResponse struct {
	CharityNumber string        `json:"charity_number"`
	Matches       []FunderMatch `json:"matches"`
	FunderCount   int           `json:"funder_count"`
	FromCache     bool          `json:"from_cache"`
	ComputedAt    time.Time     `json:"computed_at"`
}
