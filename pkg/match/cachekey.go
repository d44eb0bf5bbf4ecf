package match

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/fundermatch/platform/pkg/common/models"
)

// incomeBucket coarsens the charity's latest income so that fluctuation
// within a band does not churn the cache key.
func incomeBucket(income float64) string {
	switch {
	case income < 10_000:
		return "micro"
	case income < 100_000:
		return "small"
	case income < 500_000:
		return "medium"
	case income < 1_000_000:
		return "large"
	case income < 5_000_000:
		return "major"
	default:
		return "national"
	}
}

type keyDescriptor struct {
	CharityNumber string `json:"charity_number"`
	IncomeBucket  string `json:"income_bucket"`
	WhatCodes     string `json:"what_codes"`
	WhoCodes      string `json:"who_codes"`
	Regions       string `json:"regions"`
	FunderIDs     string `json:"funder_ids"`
}

// ComputeCacheKey derives the content-addressed fingerprint for a charity
// profile and funder population. Sets are sorted before joining so the key
// is invariant under ordering; income is bucketed so the key is invariant
// within a band. The key changes whenever the What/Who classifications,
// regions, or the funder population change.
func ComputeCacheKey(profile models.CharityProfile, funderIDs []string) string {
	descriptor := keyDescriptor{
		CharityNumber: profile.CharityNumber,
		IncomeBucket:  incomeBucket(profile.LatestIncome),
		WhatCodes:     joinSortedCodes(profile.What),
		WhoCodes:      joinSortedCodes(profile.Who),
		Regions:       joinSorted(profile.Regions),
		FunderIDs:     joinSorted(funderIDs),
	}

	// Struct field order is fixed, so this serialization is deterministic.
	blob, _ := json.Marshal(descriptor)
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])[:32]
}

func joinSortedCodes(classifications []models.Classification) string {
	codes := make([]string, 0, len(classifications))
	for _, c := range classifications {
		codes = append(codes, c.Code)
	}
	return joinSorted(codes)
}

func joinSorted(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
