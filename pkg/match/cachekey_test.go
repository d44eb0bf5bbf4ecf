package match

import (
	"testing"

	"github.com/fundermatch/platform/pkg/common/models"
)

func profileFixture() models.CharityProfile {
	return models.CharityProfile{
		CharityNumber: "1234567",
		Name:          "Riverside Youth Project",
		LatestIncome:  52_000,
		What:          []models.Classification{{Code: "W1", Name: "Education"}, {Code: "W5", Name: "Arts"}},
		Who:           []models.Classification{{Code: "B2", Name: "Young people"}},
		Regions:       []string{"North West", "Yorkshire"},
	}
}

func TestComputeCacheKeyIgnoresFunderOrder(t *testing.T) {
	profile := profileFixture()
	a := ComputeCacheKey(profile, []string{"F1", "F2", "F3"})
	b := ComputeCacheKey(profile, []string{"F3", "F1", "F2"})
	if a != b {
		t.Fatalf("funder order changed the key: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}

func TestComputeCacheKeyIgnoresClassificationOrder(t *testing.T) {
	a := profileFixture()
	b := profileFixture()
	b.What = []models.Classification{b.What[1], b.What[0]}
	if ComputeCacheKey(a, []string{"F1"}) != ComputeCacheKey(b, []string{"F1"}) {
		t.Fatal("classification order changed the key")
	}
}

func TestComputeCacheKeyStableWithinIncomeBucket(t *testing.T) {
	a := profileFixture()
	b := profileFixture()
	a.LatestIncome = 52_000
	b.LatestIncome = 61_000
	if ComputeCacheKey(a, []string{"F1"}) != ComputeCacheKey(b, []string{"F1"}) {
		t.Fatal("income within the same band must not change the key")
	}

	b.LatestIncome = 150_000
	if ComputeCacheKey(a, []string{"F1"}) == ComputeCacheKey(b, []string{"F1"}) {
		t.Fatal("crossing an income band must change the key")
	}
}

func TestComputeCacheKeySensitiveToInputs(t *testing.T) {
	base := profileFixture()
	baseKey := ComputeCacheKey(base, []string{"F1", "F2"})

	changedWhat := profileFixture()
	changedWhat.What = append(changedWhat.What, models.Classification{Code: "W9"})
	if ComputeCacheKey(changedWhat, []string{"F1", "F2"}) == baseKey {
		t.Fatal("changed What classifications must change the key")
	}

	changedRegions := profileFixture()
	changedRegions.Regions = []string{"London"}
	if ComputeCacheKey(changedRegions, []string{"F1", "F2"}) == baseKey {
		t.Fatal("changed regions must change the key")
	}

	if ComputeCacheKey(base, []string{"F1", "F2", "F3"}) == baseKey {
		t.Fatal("changed funder population must change the key")
	}
}

func TestIncomeBucketBoundaries(t *testing.T) {
	cases := []struct {
		income float64
		want   string
	}{
		{0, "micro"},
		{9_999, "micro"},
		{10_000, "small"},
		{99_999, "small"},
		{100_000, "medium"},
		{499_999, "medium"},
		{500_000, "large"},
		{999_999, "large"},
		{1_000_000, "major"},
		{4_999_999, "major"},
		{5_000_000, "national"},
	}
	for _, tc := range cases {
		if got := incomeBucket(tc.income); got != tc.want {
			t.Errorf("incomeBucket(%.0f) = %s, want %s", tc.income, got, tc.want)
		}
	}
}
