package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundermatch/platform/pkg/common/config"
	"github.com/fundermatch/platform/pkg/common/logger"
	"github.com/fundermatch/platform/pkg/common/metrics"
	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/fundermatch/platform/pkg/grantdata"
	"github.com/shopspring/decimal"
)

const (
	// grantPageSize is how many grants one remote page may carry.
	grantPageSize = 100
	// maxFundersPerRun bounds the grant phase to the busiest funders.
	maxFundersPerRun = 50
)

const awardDateLayout = "2006-01-02"

type GrantAPI interface {
	ListOrganisations(ctx context.Context, limit, offset int) (grantdata.OrgPage, error)
	GetOrganisationDetail(ctx context.Context, orgID string) (grantdata.OrgDetail, error)
	ListGrantsMade(ctx context.Context, orgID string, limit, offset int) (grantdata.GrantPage, error)
}

type Store interface {
	UpsertOrganisation(ctx context.Context, org *Organisation) error
	UpsertGrant(ctx context.Context, grant *Grant) error
	GrantExists(ctx context.Context, grantID string) (bool, error)
	ListFunders(ctx context.Context, limit int) ([]Organisation, error)
	UpdateLastGrantMadeDate(ctx context.Context, orgID string, date time.Time) error
	CreateSyncLog(ctx context.Context, log *SyncLog) error
	CompleteSyncLog(ctx context.Context, id uint, orgs, grants, skipped int, completedAt time.Time) error
	FailSyncLog(ctx context.Context, id uint, message string) error
	LastCompletedSync(ctx context.Context) (*SyncLog, error)
}

// CacheInvalidator purges match results computed against now-superseded
// grant data.
type CacheInvalidator interface {
	InvalidateBefore(ctx context.Context, syncDate time.Time) (int64, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Service drives full and incremental syncs of the organisation directory
// and grant records into the local store.
type Service struct {
	api              GrantAPI
	repo             Store
	cache            CacheInvalidator
	events           EventPublisher
	defaultMaxOrgs   int
	defaultMaxGrants int
}

func NewService(api GrantAPI, repo Store, cache CacheInvalidator, events EventPublisher, cfg *config.Config) *Service {
	return &Service{
		api:              api,
		repo:             repo,
		cache:            cache,
		events:           events,
		defaultMaxOrgs:   cfg.SyncMaxOrganisations,
		defaultMaxGrants: cfg.SyncMaxGrants,
	}
}

// RunSync executes one sync attempt. The sync type is incremental when a
// prior completed sync exists and the caller did not force a full run; an
// incremental run only ingests grants awarded since that sync. Per-item
// failures are logged and skipped; failures to reach the remote directory or
// the local funder list abort the run and mark the sync log failed.
func (s *Service) RunSync(ctx context.Context, opts models.SyncOptions) (*models.SyncResult, error) {
	if opts.MaxOrganisations <= 0 {
		opts.MaxOrganisations = s.defaultMaxOrgs
	}
	if opts.MaxGrants <= 0 {
		opts.MaxGrants = s.defaultMaxGrants
	}

	syncType := SyncTypeFull
	var lastSyncDate *time.Time
	if !opts.ForceFullSync {
		last, err := s.repo.LastCompletedSync(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading last completed sync: %w", err)
		}
		if last != nil && last.CompletedAt != nil {
			syncType = SyncTypeIncremental
			lastSyncDate = last.CompletedAt
		}
	}

	log := &SyncLog{
		SyncType:  syncType,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateSyncLog(ctx, log); err != nil {
		return nil, fmt.Errorf("creating sync log: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"sync_type":         syncType,
		"max_organisations": opts.MaxOrganisations,
		"max_grants":        opts.MaxGrants,
		"offset":            opts.Offset,
	}).Info("Sync started")

	result, err := s.run(ctx, opts, syncType, lastSyncDate)
	if err != nil {
		if failErr := s.repo.FailSyncLog(ctx, log.ID, err.Error()); failErr != nil {
			logger.Log.WithError(failErr).Error("failed to mark sync log failed")
		}
		metrics.ObserveSyncRun(0, 0, 0, true)
		s.publish(ctx, "sync.failed", map[string]interface{}{
			"sync_type": syncType,
			"error":     err.Error(),
		})
		return nil, err
	}

	completedAt := time.Now().UTC()
	if err := s.repo.CompleteSyncLog(ctx, log.ID, result.OrganisationsSynced, result.GrantsSynced, result.GrantsSkipped, completedAt); err != nil {
		return nil, fmt.Errorf("completing sync log: %w", err)
	}
	metrics.ObserveSyncRun(result.OrganisationsSynced, result.GrantsSynced, result.GrantsSkipped, false)

	// Matches computed against the previous grant snapshot are stale now,
	// whatever their TTL says.
	if s.cache != nil {
		removed, err := s.cache.InvalidateBefore(ctx, completedAt)
		if err != nil {
			logger.Log.WithError(err).Error("match cache invalidation failed")
		} else if removed > 0 {
			metrics.ObserveCacheInvalidation(removed)
			logger.Log.WithField("removed", removed).Info("Invalidated stale match cache entries")
		}
	}

	s.publish(ctx, "sync.completed", map[string]interface{}{
		"sync_type":            result.SyncType,
		"organisations_synced": result.OrganisationsSynced,
		"grants_synced":        result.GrantsSynced,
		"grants_skipped":       result.GrantsSkipped,
		"completed_at":         completedAt,
	})

	logger.Log.WithFields(map[string]interface{}{
		"sync_type":            result.SyncType,
		"organisations_synced": result.OrganisationsSynced,
		"grants_synced":        result.GrantsSynced,
		"grants_skipped":       result.GrantsSkipped,
	}).Info("Sync completed")

	return result, nil
}

func (s *Service) run(ctx context.Context, opts models.SyncOptions, syncType string, lastSyncDate *time.Time) (*models.SyncResult, error) {
	result := &models.SyncResult{
		SyncType:     syncType,
		LastSyncDate: lastSyncDate,
	}

	// Incremental runs assume the organisation directory rarely changes; an
	// explicit offset means the caller is continuing an organisation
	// backfill and wants the phase anyway.
	if syncType == SyncTypeFull || opts.Offset > 0 {
		synced, err := s.syncOrganisations(ctx, opts.MaxOrganisations, opts.Offset)
		if err != nil {
			return nil, err
		}
		result.OrganisationsSynced = synced
	}

	synced, skipped, err := s.syncGrants(ctx, opts.MaxGrants, syncType, lastSyncDate)
	if err != nil {
		return nil, err
	}
	result.GrantsSynced = synced
	result.GrantsSkipped = skipped
	return result, nil
}

func (s *Service) syncOrganisations(ctx context.Context, limit, offset int) (int, error) {
	page, err := s.api.ListOrganisations(ctx, limit, offset)
	if err != nil {
		return 0, fmt.Errorf("listing organisations: %w", err)
	}

	synced := 0
	for _, summary := range page.Organisations {
		detail, err := s.api.GetOrganisationDetail(ctx, summary.OrgID)
		if err != nil {
			logger.Log.WithError(err).WithField("org_id", summary.OrgID).Warn("skipping organisation: detail fetch failed")
			continue
		}

		org, err := mapOrganisation(summary, detail)
		if err != nil {
			logger.Log.WithError(err).WithField("org_id", summary.OrgID).Warn("skipping organisation: malformed detail")
			continue
		}
		if err := s.repo.UpsertOrganisation(ctx, org); err != nil {
			logger.Log.WithError(err).WithField("org_id", summary.OrgID).Warn("skipping organisation: upsert failed")
			continue
		}
		synced++
	}
	return synced, nil
}

func (s *Service) syncGrants(ctx context.Context, maxGrants int, syncType string, lastSyncDate *time.Time) (int, int, error) {
	funders, err := s.repo.ListFunders(ctx, maxFundersPerRun)
	if err != nil {
		return 0, 0, fmt.Errorf("listing funders: %w", err)
	}

	synced, skipped := 0, 0
	for _, funder := range funders {
		if synced >= maxGrants {
			break
		}

		page, err := s.api.ListGrantsMade(ctx, funder.OrgID, grantPageSize, 0)
		if err != nil {
			logger.Log.WithError(err).WithField("org_id", funder.OrgID).Warn("skipping funder: grants fetch failed")
			continue
		}

		for _, record := range page.Grants {
			if synced >= maxGrants {
				break
			}

			awardDate := parseAwardDate(record.AwardDate)
			if syncType == SyncTypeIncremental && lastSyncDate != nil &&
				awardDate != nil && awardDate.Before(*lastSyncDate) {
				skipped++
				continue
			}
			if syncType == SyncTypeIncremental {
				exists, err := s.repo.GrantExists(ctx, record.GrantID)
				if err != nil {
					logger.Log.WithError(err).WithField("grant_id", record.GrantID).Warn("skipping grant: existence probe failed")
					continue
				}
				if exists {
					skipped++
					continue
				}
			}

			grant, err := mapGrant(record, awardDate)
			if err != nil {
				logger.Log.WithError(err).WithField("grant_id", record.GrantID).Warn("skipping grant: malformed record")
				continue
			}
			if err := s.repo.UpsertGrant(ctx, grant); err != nil {
				logger.Log.WithError(err).WithField("grant_id", record.GrantID).Warn("skipping grant: upsert failed")
				continue
			}
			synced++
		}

		if latest := latestAwardDate(page.Grants); latest != nil {
			if err := s.repo.UpdateLastGrantMadeDate(ctx, funder.OrgID, *latest); err != nil {
				logger.Log.WithError(err).WithField("org_id", funder.OrgID).Warn("failed to update last grant made date")
			}
		}
	}
	return synced, skipped, nil
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, eventType, "sync-service", data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("failed to publish sync event")
	}
}

func mapOrganisation(summary grantdata.OrgSummary, detail grantdata.OrgDetail) (*Organisation, error) {
	org := &Organisation{
		OrgID:       summary.OrgID,
		Name:        summary.Name,
		IsFunder:    len(detail.Funder) > 0,
		IsRecipient: len(detail.Recipient) > 0,
	}
	if org.Name == "" {
		org.Name = detail.Name
	}

	if len(detail.Funder) > 0 {
		blob, err := json.Marshal(detail.Funder)
		if err != nil {
			return nil, fmt.Errorf("encoding funder stats: %w", err)
		}
		org.FunderStats = blob
		for _, stats := range detail.Funder {
			org.GrantCount += stats.Count
		}
	}
	if len(detail.Recipient) > 0 {
		blob, err := json.Marshal(detail.Recipient)
		if err != nil {
			return nil, fmt.Errorf("encoding recipient stats: %w", err)
		}
		org.RecipientStats = blob
	}
	return org, nil
}

func mapGrant(record grantdata.GrantRecord, awardDate *time.Time) (*Grant, error) {
	if record.GrantID == "" {
		return nil, fmt.Errorf("grant id missing")
	}

	amount := decimal.Zero
	if record.AmountAwarded != "" {
		parsed, err := decimal.NewFromString(record.AmountAwarded.String())
		if err != nil {
			return nil, fmt.Errorf("parsing amount_awarded: %w", err)
		}
		if parsed.IsNegative() {
			return nil, fmt.Errorf("negative amount_awarded %s", parsed)
		}
		amount = parsed
	}

	currency := record.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	grant := &Grant{
		GrantID:       record.GrantID,
		Title:         record.Title,
		Description:   record.Description,
		AmountAwarded: amount,
		Currency:      currency,
		AwardDate:     awardDate,
		Raw:           []byte(record.Raw),
	}
	if len(record.Funders) > 0 {
		id := record.Funders[0].OrgID
		grant.FunderOrgID = &id
	}
	if len(record.Recipients) > 0 {
		id := record.Recipients[0].OrgID
		grant.RecipientOrgID = &id
	}
	if len(record.Classifications) > 0 {
		blob, err := json.Marshal(record.Classifications)
		if err != nil {
			return nil, fmt.Errorf("encoding classifications: %w", err)
		}
		grant.Classifications = blob
	}
	if len(record.Locations) > 0 {
		blob, err := json.Marshal(record.Locations)
		if err != nil {
			return nil, fmt.Errorf("encoding locations: %w", err)
		}
		grant.Locations = blob
	}
	return grant, nil
}

func parseAwardDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	if t, err := time.Parse(awardDateLayout, value); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	return nil
}

func latestAwardDate(grants []grantdata.GrantRecord) *time.Time {
	var latest *time.Time
	for _, g := range grants {
		if d := parseAwardDate(g.AwardDate); d != nil {
			if latest == nil || d.After(*latest) {
				latest = d
			}
		}
	}
	return latest
}
