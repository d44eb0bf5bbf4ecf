package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fundermatch/platform/pkg/common/config"
	"github.com/fundermatch/platform/pkg/common/logger"
	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/fundermatch/platform/pkg/grantdata"
)

func TestMain(m *testing.M) {
	logger.Init("test")
	os.Exit(m.Run())
}

type fakeAPI struct {
	orgPage      grantdata.OrgPage
	orgErr       error
	details      map[string]grantdata.OrgDetail
	grantPages   map[string]grantdata.GrantPage
	grantErrs    map[string]error
	listOrgCalls int
}

func (f *fakeAPI) ListOrganisations(ctx context.Context, limit, offset int) (grantdata.OrgPage, error) {
	f.listOrgCalls++
	if f.orgErr != nil {
		return grantdata.OrgPage{}, f.orgErr
	}
	return f.orgPage, nil
}

func (f *fakeAPI) GetOrganisationDetail(ctx context.Context, orgID string) (grantdata.OrgDetail, error) {
	detail, ok := f.details[orgID]
	if !ok {
		return grantdata.OrgDetail{}, grantdata.ErrNotFound
	}
	return detail, nil
}

func (f *fakeAPI) ListGrantsMade(ctx context.Context, orgID string, limit, offset int) (grantdata.GrantPage, error) {
	if err := f.grantErrs[orgID]; err != nil {
		return grantdata.GrantPage{}, err
	}
	return f.grantPages[orgID], nil
}

type fakeStore struct {
	orgs          map[string]Organisation
	grants        map[string]Grant
	funders       []Organisation
	fundersErr    error
	logs          []*SyncLog
	lastCompleted *SyncLog
	lastGrantDate map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orgs:          make(map[string]Organisation),
		grants:        make(map[string]Grant),
		lastGrantDate: make(map[string]time.Time),
	}
}

func (f *fakeStore) UpsertOrganisation(ctx context.Context, org *Organisation) error {
	f.orgs[org.OrgID] = *org
	return nil
}

func (f *fakeStore) UpsertGrant(ctx context.Context, grant *Grant) error {
	f.grants[grant.GrantID] = *grant
	return nil
}

func (f *fakeStore) GrantExists(ctx context.Context, grantID string) (bool, error) {
	_, ok := f.grants[grantID]
	return ok, nil
}

func (f *fakeStore) ListFunders(ctx context.Context, limit int) ([]Organisation, error) {
	if f.fundersErr != nil {
		return nil, f.fundersErr
	}
	if len(f.funders) > limit {
		return f.funders[:limit], nil
	}
	return f.funders, nil
}

func (f *fakeStore) UpdateLastGrantMadeDate(ctx context.Context, orgID string, date time.Time) error {
	f.lastGrantDate[orgID] = date
	return nil
}

func (f *fakeStore) CreateSyncLog(ctx context.Context, log *SyncLog) error {
	log.ID = uint(len(f.logs) + 1)
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeStore) CompleteSyncLog(ctx context.Context, id uint, orgs, grants, skipped int, completedAt time.Time) error {
	for _, log := range f.logs {
		if log.ID == id {
			log.Status = StatusCompleted
			log.OrganisationsSynced = orgs
			log.GrantsSynced = grants
			log.GrantsSkipped = skipped
			log.CompletedAt = &completedAt
		}
	}
	return nil
}

func (f *fakeStore) FailSyncLog(ctx context.Context, id uint, message string) error {
	for _, log := range f.logs {
		if log.ID == id {
			log.Status = StatusFailed
			log.ErrorMessage = message
		}
	}
	return nil
}

func (f *fakeStore) LastCompletedSync(ctx context.Context) (*SyncLog, error) {
	return f.lastCompleted, nil
}

type fakeInvalidator struct {
	calls []time.Time
}

func (f *fakeInvalidator) InvalidateBefore(ctx context.Context, syncDate time.Time) (int64, error) {
	f.calls = append(f.calls, syncDate)
	return 3, nil
}

func testConfig() *config.Config {
	return &config.Config{SyncMaxOrganisations: 100, SyncMaxGrants: 500}
}

func grantRecord(id, awardDate string, funderID string) grantdata.GrantRecord {
	return grantdata.GrantRecord{
		GrantID:       id,
		Title:         "Grant " + id,
		AmountAwarded: json.Number("15000"),
		AwardDate:     awardDate,
		Funders:       []grantdata.OrgRef{{OrgID: funderID, Name: "Funder"}},
		Recipients:    []grantdata.OrgRef{{OrgID: "GB-CHC-999", Name: "Recipient"}},
		Raw:           json.RawMessage(`{"grant_id":"` + id + `"}`),
	}
}

func TestRunSyncFirstRunIsFull(t *testing.T) {
	api := &fakeAPI{
		orgPage: grantdata.OrgPage{
			Count:         2,
			Organisations: []grantdata.OrgSummary{{OrgID: "F1", Name: "Alpha Trust"}, {OrgID: "R1", Name: "Beta CIC"}},
		},
		details: map[string]grantdata.OrgDetail{
			"F1": {OrgID: "F1", Funder: map[string]grantdata.CurrencyStats{"GBP": {Count: 12, TotalAmount: 90000}}},
			"R1": {OrgID: "R1", Recipient: map[string]grantdata.CurrencyStats{"GBP": {Count: 3}}},
		},
		grantPages: map[string]grantdata.GrantPage{
			"F1": {Grants: []grantdata.GrantRecord{grantRecord("g1", "2026-05-01", "F1")}},
		},
	}
	store := newFakeStore()
	service := NewService(api, store, nil, nil, testConfig())

	// The grant phase reads funders from the store, which the organisation
	// phase has just populated in a real run; mirror that here.
	store.funders = []Organisation{{OrgID: "F1", Name: "Alpha Trust", IsFunder: true}}

	result, err := service.RunSync(context.Background(), models.SyncOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SyncType != SyncTypeFull {
		t.Fatalf("expected full sync, got %s", result.SyncType)
	}
	if result.OrganisationsSynced != 2 {
		t.Fatalf("expected 2 organisations synced, got %d", result.OrganisationsSynced)
	}
	if result.GrantsSynced != 1 {
		t.Fatalf("expected 1 grant synced, got %d", result.GrantsSynced)
	}

	org := store.orgs["F1"]
	if !org.IsFunder || org.GrantCount != 12 {
		t.Fatalf("expected F1 to be a funder with grant count 12, got %+v", org)
	}
	if store.orgs["R1"].IsFunder {
		t.Fatal("expected R1 not to be flagged as funder")
	}
	if len(store.logs) != 1 || store.logs[0].Status != StatusCompleted {
		t.Fatalf("expected one completed sync log, got %+v", store.logs)
	}
	if _, ok := store.lastGrantDate["F1"]; !ok {
		t.Fatal("expected last_grant_made_date update for F1")
	}
}

func TestRunSyncIncrementalSkipsOldAndExistingGrants(t *testing.T) {
	lastSync := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		grantPages: map[string]grantdata.GrantPage{
			"F1": {Grants: []grantdata.GrantRecord{
				grantRecord("old", "2026-01-15", "F1"),
				grantRecord("seen", "2026-07-01", "F1"),
				grantRecord("new", "2026-07-02", "F1"),
			}},
		},
	}
	store := newFakeStore()
	store.funders = []Organisation{{OrgID: "F1", IsFunder: true}}
	store.lastCompleted = &SyncLog{Status: StatusCompleted, CompletedAt: &lastSync}
	store.grants["seen"] = Grant{GrantID: "seen"}

	service := NewService(api, store, nil, nil, testConfig())
	result, err := service.RunSync(context.Background(), models.SyncOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SyncType != SyncTypeIncremental {
		t.Fatalf("expected incremental sync, got %s", result.SyncType)
	}
	if api.listOrgCalls != 0 {
		t.Fatal("expected organisation phase to be skipped for incremental sync without offset")
	}
	if result.GrantsSynced != 1 {
		t.Fatalf("expected 1 grant synced, got %d", result.GrantsSynced)
	}
	if result.GrantsSkipped != 2 {
		t.Fatalf("expected 2 grants skipped, got %d", result.GrantsSkipped)
	}
	if _, ok := store.grants["old"]; ok {
		t.Fatal("grant predating last sync must not be upserted")
	}
}

func TestRunSyncOffsetResumesOrganisationBackfill(t *testing.T) {
	lastSync := time.Now().UTC()
	api := &fakeAPI{
		orgPage: grantdata.OrgPage{Organisations: []grantdata.OrgSummary{{OrgID: "F9", Name: "Gamma"}}},
		details: map[string]grantdata.OrgDetail{
			"F9": {OrgID: "F9", Funder: map[string]grantdata.CurrencyStats{"GBP": {Count: 1}}},
		},
	}
	store := newFakeStore()
	store.lastCompleted = &SyncLog{Status: StatusCompleted, CompletedAt: &lastSync}

	service := NewService(api, store, nil, nil, testConfig())
	result, err := service.RunSync(context.Background(), models.SyncOptions{Offset: 200})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.listOrgCalls != 1 {
		t.Fatal("expected organisation phase to run when an offset is given")
	}
	if result.OrganisationsSynced != 1 {
		t.Fatalf("expected 1 organisation synced, got %d", result.OrganisationsSynced)
	}
}

func TestRunSyncHonoursMaxGrants(t *testing.T) {
	var records []grantdata.GrantRecord
	for i := 0; i < 15; i++ {
		records = append(records, grantRecord(fmt.Sprintf("g%02d", i), "2026-05-01", "F1"))
	}
	api := &fakeAPI{grantPages: map[string]grantdata.GrantPage{"F1": {Grants: records}}}
	store := newFakeStore()
	store.funders = []Organisation{{OrgID: "F1", IsFunder: true}}

	service := NewService(api, store, nil, nil, testConfig())
	result, err := service.RunSync(context.Background(), models.SyncOptions{MaxGrants: 10, ForceFullSync: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.GrantsSynced != 10 {
		t.Fatalf("expected 10 grants synced, got %d", result.GrantsSynced)
	}
	if result.GrantsSkipped != 0 {
		t.Fatalf("full sync must not report skips, got %d", result.GrantsSkipped)
	}
	if len(store.grants) != 10 {
		t.Fatalf("expected 10 grants stored, got %d", len(store.grants))
	}
}

func TestRunSyncIsIdempotentWhenForcedFull(t *testing.T) {
	api := &fakeAPI{
		orgPage: grantdata.OrgPage{Organisations: []grantdata.OrgSummary{{OrgID: "F1", Name: "Alpha Trust"}}},
		details: map[string]grantdata.OrgDetail{
			"F1": {OrgID: "F1", Funder: map[string]grantdata.CurrencyStats{"GBP": {Count: 2}}},
		},
		grantPages: map[string]grantdata.GrantPage{
			"F1": {Grants: []grantdata.GrantRecord{grantRecord("g1", "2026-05-01", "F1"), grantRecord("g2", "2026-05-02", "F1")}},
		},
	}
	store := newFakeStore()
	store.funders = []Organisation{{OrgID: "F1", IsFunder: true}}
	service := NewService(api, store, nil, nil, testConfig())

	for i := 0; i < 2; i++ {
		if _, err := service.RunSync(context.Background(), models.SyncOptions{ForceFullSync: true}); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}
	if len(store.grants) != 2 {
		t.Fatalf("expected 2 grants after repeated sync, got %d", len(store.grants))
	}
	if len(store.orgs) != 1 {
		t.Fatalf("expected 1 organisation after repeated sync, got %d", len(store.orgs))
	}
}

func TestRunSyncDirectoryFailureMarksLogFailed(t *testing.T) {
	api := &fakeAPI{orgErr: &grantdata.APIError{StatusCode: 503, Body: "unavailable"}}
	store := newFakeStore()
	service := NewService(api, store, nil, nil, testConfig())

	_, err := service.RunSync(context.Background(), models.SyncOptions{ForceFullSync: true})
	if err == nil {
		t.Fatal("expected error when the directory is unreachable")
	}
	var apiErr *grantdata.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError in chain, got %v", err)
	}
	if len(store.logs) != 1 || store.logs[0].Status != StatusFailed {
		t.Fatalf("expected a failed sync log, got %+v", store.logs)
	}
	if store.logs[0].ErrorMessage == "" {
		t.Fatal("expected error message on failed sync log")
	}
}

func TestRunSyncInvalidatesCacheAfterCompletion(t *testing.T) {
	api := &fakeAPI{grantPages: map[string]grantdata.GrantPage{}}
	store := newFakeStore()
	invalidator := &fakeInvalidator{}
	service := NewService(api, store, invalidator, nil, testConfig())

	before := time.Now().UTC()
	if _, err := service.RunSync(context.Background(), models.SyncOptions{ForceFullSync: true, MaxOrganisations: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invalidator.calls) != 1 {
		t.Fatalf("expected one invalidation call, got %d", len(invalidator.calls))
	}
	if invalidator.calls[0].Before(before) {
		t.Fatal("invalidation cutoff must not predate the sync")
	}
}

func TestRunSyncPerFunderFailureDoesNotAbort(t *testing.T) {
	api := &fakeAPI{
		grantPages: map[string]grantdata.GrantPage{
			"F2": {Grants: []grantdata.GrantRecord{grantRecord("g1", "2026-05-01", "F2")}},
		},
		grantErrs: map[string]error{"F1": &grantdata.APIError{StatusCode: 500, Body: "boom"}},
	}
	store := newFakeStore()
	store.funders = []Organisation{{OrgID: "F1", IsFunder: true}, {OrgID: "F2", IsFunder: true}}

	service := NewService(api, store, nil, nil, testConfig())
	result, err := service.RunSync(context.Background(), models.SyncOptions{ForceFullSync: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.GrantsSynced != 1 {
		t.Fatalf("expected the healthy funder's grant to sync, got %d", result.GrantsSynced)
	}
}
