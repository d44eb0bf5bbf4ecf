package ingestion

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Organisation{}, &Grant{}, &SyncLog{})
}

func (r *Repository) UpsertOrganisation(ctx context.Context, org *Organisation) error {
	now := time.Now().UTC()
	org.UpdatedAt = now
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "is_funder", "is_recipient",
			"funder_stats", "recipient_stats", "grant_count", "updated_at",
		}),
	}).Create(org).Error
}

func (r *Repository) UpsertGrant(ctx context.Context, grant *Grant) error {
	now := time.Now().UTC()
	grant.UpdatedAt = now
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = now
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "grant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "amount_awarded", "currency", "award_date",
			"funder_org_id", "recipient_org_id", "classifications", "locations",
			"raw", "updated_at",
		}),
	}).Create(grant).Error
}

func (r *Repository) GrantExists(ctx context.Context, grantID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Grant{}).
		Where("grant_id = ?", grantID).
		Count(&count).Error
	return count > 0, err
}

// ListFunders returns organisations flagged as funders, busiest first.
func (r *Repository) ListFunders(ctx context.Context, limit int) ([]Organisation, error) {
	var funders []Organisation
	err := r.db.WithContext(ctx).
		Where("is_funder = ?", true).
		Order("grant_count DESC").
		Limit(limit).
		Find(&funders).Error
	return funders, err
}

// RecentGrantsByFunder returns a funder's newest grants by award date.
func (r *Repository) RecentGrantsByFunder(ctx context.Context, orgID string, limit int) ([]Grant, error) {
	var grants []Grant
	err := r.db.WithContext(ctx).
		Where("funder_org_id = ?", orgID).
		Order("award_date DESC NULLS LAST").
		Limit(limit).
		Find(&grants).Error
	return grants, err
}

func (r *Repository) UpdateLastGrantMadeDate(ctx context.Context, orgID string, date time.Time) error {
	return r.db.WithContext(ctx).Model(&Organisation{}).
		Where("org_id = ?", orgID).
		Updates(map[string]interface{}{
			"last_grant_made_date": date,
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *Repository) CreateSyncLog(ctx context.Context, log *SyncLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *Repository) CompleteSyncLog(ctx context.Context, id uint, orgs, grants, skipped int, completedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&SyncLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":               StatusCompleted,
			"organisations_synced": orgs,
			"grants_synced":        grants,
			"grants_skipped":       skipped,
			"completed_at":         completedAt,
		}).Error
}

func (r *Repository) FailSyncLog(ctx context.Context, id uint, message string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&SyncLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        StatusFailed,
			"error_message": message,
			"completed_at":  now,
		}).Error
}

// LastCompletedSync returns the newest completed sync log, or nil when no
// sync has ever completed.
func (r *Repository) LastCompletedSync(ctx context.Context) (*SyncLog, error) {
	var log SyncLog
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusCompleted).
		Order("completed_at DESC").
		First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (r *Repository) RecentSyncLogs(ctx context.Context, limit int) ([]SyncLog, error) {
	var logs []SyncLog
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
