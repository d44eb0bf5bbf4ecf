package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	syncRunsCompleted    atomic.Int64
	syncRunsFailed       atomic.Int64
	organisationsSynced  atomic.Int64
	grantsSynced         atomic.Int64
	grantsSkipped        atomic.Int64
	matchRequests        atomic.Int64
	matchCacheHits       atomic.Int64
	matchCacheInvalidate atomic.Int64
)

func ObserveSyncRun(orgs, grants, skipped int, failed bool) {
	if failed {
		syncRunsFailed.Add(1)
	} else {
		syncRunsCompleted.Add(1)
	}
	organisationsSynced.Add(int64(orgs))
	grantsSynced.Add(int64(grants))
	grantsSkipped.Add(int64(skipped))
}

func ObserveMatchRequest(cacheHit bool) {
	matchRequests.Add(1)
	if cacheHit {
		matchCacheHits.Add(1)
	}
}

func ObserveCacheInvalidation(removed int64) {
	matchCacheInvalidate.Add(removed)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP fundermatch_sync_runs_completed_total Number of sync runs that completed.\n")
	fmt.Fprintf(w, "# TYPE fundermatch_sync_runs_completed_total counter\n")
	fmt.Fprintf(w, "fundermatch_sync_runs_completed_total %d\n", syncRunsCompleted.Load())

	fmt.Fprintf(w, "# HELP fundermatch_sync_runs_failed_total Number of sync runs that failed.\n")
	fmt.Fprintf(w, "# TYPE fundermatch_sync_runs_failed_total counter\n")
	fmt.Fprintf(w, "fundermatch_sync_runs_failed_total %d\n", syncRunsFailed.Load())

	fmt.Fprintf(w, "# HELP fundermatch_organisations_synced_total Organisations upserted across all sync runs.\n")
	fmt.Fprintf(w, "# TYPE fundermatch_organisations_synced_total counter\n")
	fmt.Fprintf(w, "fundermatch_organisations_synced_total %d\n", organisationsSynced.Load())

	fmt.Fprintf(w, "# HELP fundermatch_grants_synced_total Grants upserted across all sync runs.\n")
	fmt.Fprintf(w, "# TYPE fundermatch_grants_synced_total counter\n")
	fmt.Fprintf(w, "fundermatch_grants_synced_total %d\n", grantsSynced.Load())

	fmt.Fprintf(w, "# HELP fundermatch_grants_skipped_total Grants skipped by incremental dedup across all sync runs.\n")
	fmt.Fprintf(w, "# TYPE fundermatch_grants_skipped_total counter\n")
	fmt.Fprintf(w, "fundermatch_grants_skipped_total %d\n", grantsSkipped.Load())

	fmt.Fprintf(w, "# HELP fundermatch_match_requests_total Funder match requests served.\n")
	fmt.Fprintf(w, "# TYPE fundermatch_match_requests_total counter\n")
	fmt.Fprintf(w, "fundermatch_match_requests_total %d\n", matchRequests.Load())

	fmt.Fprintf(w, "# HELP fundermatch_match_cache_hits_total Funder match requests answered from cache.\n")
	fmt.Fprintf(w, "# TYPE fundermatch_match_cache_hits_total counter\n")
	fmt.Fprintf(w, "fundermatch_match_cache_hits_total %d\n", matchCacheHits.Load())

	fmt.Fprintf(w, "# HELP fundermatch_match_cache_invalidated_total Cache entries removed by freshness invalidation.\n")
	fmt.Fprintf(w, "# TYPE fundermatch_match_cache_invalidated_total counter\n")
	fmt.Fprintf(w, "fundermatch_match_cache_invalidated_total %d\n", matchCacheInvalidate.Load())
}
