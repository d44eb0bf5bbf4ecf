package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fundermatch/platform/pkg/common/logger"
	"github.com/fundermatch/platform/pkg/common/metrics"
	"github.com/fundermatch/platform/pkg/common/models"
	"github.com/fundermatch/platform/pkg/ingestion"
)

// ErrNoFundersAvailable means matching was attempted before any funder has
// been synced; there is nothing to score against.
var ErrNoFundersAvailable = errors.New("match: no funders available")

type FunderStore interface {
	ListFunders(ctx context.Context, limit int) ([]ingestion.Organisation, error)
	RecentGrantsByFunder(ctx context.Context, orgID string, limit int) ([]ingestion.Grant, error)
}

type MatchCache interface {
	Lookup(ctx context.Context, charityNumber, cacheKey string) (*CachedResult, bool)
	Store(ctx context.Context, profile models.CharityProfile, cacheKey string, matches []models.FunderMatch, funderCount int)
}

type Scorer interface {
	Score(ctx context.Context, system, prompt string) (string, error)
}

// Service runs the funder-matching pipeline: select funders, consult the
// cache, render the prompt, score, parse, rank, write through.
type Service struct {
	store  FunderStore
	cache  MatchCache
	scorer Scorer
	rules  Rules
}

func NewService(store FunderStore, cache MatchCache, scorer Scorer, rules Rules) *Service {
	return &Service{store: store, cache: cache, scorer: scorer, rules: rules.normalized()}
}

func (s *Service) MatchFunders(ctx context.Context, profile models.CharityProfile, forceRefresh bool) (*models.MatchResponse, error) {
	funders, err := s.store.ListFunders(ctx, s.rules.MaxFunders)
	if err != nil {
		return nil, fmt.Errorf("listing funders: %w", err)
	}
	if len(funders) == 0 {
		return nil, ErrNoFundersAvailable
	}

	funderIDs := make([]string, 0, len(funders))
	for _, funder := range funders {
		funderIDs = append(funderIDs, funder.OrgID)
	}
	cacheKey := ComputeCacheKey(profile, funderIDs)

	if !forceRefresh {
		if cached, ok := s.cache.Lookup(ctx, profile.CharityNumber, cacheKey); ok {
			metrics.ObserveMatchRequest(true)
			logger.Log.WithFields(map[string]interface{}{
				"charity_number": profile.CharityNumber,
				"cache_key":      cacheKey,
			}).Info("Match served from cache")
			return &models.MatchResponse{
				CharityNumber: profile.CharityNumber,
				Matches:       cached.Matches,
				FunderCount:   cached.FunderCount,
				FromCache:     true,
				ComputedAt:    cached.CreatedAt,
			}, nil
		}
	}

	samples := make(map[string][]ingestion.Grant, len(funders))
	for _, funder := range funders {
		grants, err := s.store.RecentGrantsByFunder(ctx, funder.OrgID, s.rules.SampleGrants)
		if err != nil {
			logger.Log.WithError(err).WithField("org_id", funder.OrgID).Warn("grant sample fetch failed, scoring without it")
			grants = nil
		}
		samples[funder.OrgID] = grants
	}

	prompt := RenderPrompt(profile, funders, samples, s.rules.PromptGrants)
	raw, err := s.scorer.Score(ctx, SystemInstruction, prompt)
	if err != nil {
		return nil, fmt.Errorf("scoring service: %w", err)
	}

	matches, err := ParseMatches(raw, funders)
	if err != nil {
		return nil, err
	}

	// Stable: equal scores keep the scoring service's relative order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	if len(matches) > s.rules.MaxResults {
		matches = matches[:s.rules.MaxResults]
	}

	s.cache.Store(ctx, profile, cacheKey, matches, len(funders))
	metrics.ObserveMatchRequest(false)

	return &models.MatchResponse{
		CharityNumber: profile.CharityNumber,
		Matches:       matches,
		FunderCount:   len(funders),
		FromCache:     false,
		ComputedAt:    time.Now().UTC(),
	}, nil
}
