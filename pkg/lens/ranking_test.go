package lens

import (
	"testing"

	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

// rankLoc builds a location whose Quality score tracks q and Character
// score tracks c (both monotonically), with enough metadata for every lens.
func rankLoc(id string, q, c float64) place.Location {
	return place.Location{
		PlaceID:               id,
		Name:                  id,
		Rating:                fptr(4.0),
		UserRatingsTotal:      100,
		ReviewCount:           10,
		AvgFoodDrinkQuality:   fptr(q),
		AvgWouldRecommend:     fptr(q),
		AvgServiceQuality:     fptr(q),
		AvgValueScore:         fptr(q),
		AvgAuthenticity:       fptr(c),
		AvgClassicInstitution: fptr(c),
		AvgUnpretentious:      fptr(c),
		AvgDiveyScore:         fptr(c),
		AvgMemorable:          fptr(0.5),
	}
}

func defaultRanker() *Ranker { return NewRanker(5, 80, -0.1) }

func TestRankOrdersDescending(t *testing.T) {
	locs := []place.Location{
		rankLoc("low", 0.2, 0.2),
		rankLoc("high", 0.9, 0.9),
		rankLoc("mid", 0.5, 0.5),
	}

	ranked := defaultRanker().Rank(locs, Quality, false)
	if len(ranked) != 3 {
		t.Fatalf("ranked %d locations, want 3", len(ranked))
	}
	for i, want := range []string{"high", "mid", "low"} {
		if ranked[i].Location.PlaceID != want {
			t.Errorf("position %d = %s, want %s", i, ranked[i].Location.PlaceID, want)
		}
	}

	if p := ranked[0].Percentile; p == nil || *p != 100 {
		t.Errorf("top percentile = %v, want 100", p)
	}
	if p := ranked[2].Percentile; p == nil || *p != 0 {
		t.Errorf("bottom percentile = %v, want 0", p)
	}
}

func TestQuadrantPartitionIsExact(t *testing.T) {
	locs := []place.Location{
		rankLoc("a", 0.9, 0.9),
		rankLoc("b", 0.9, 0.1),
		rankLoc("c", 0.1, 0.9),
		rankLoc("d", 0.1, 0.1),
		rankLoc("e", 0.5, 0.5),
	}

	ranked := defaultRanker().Rank(locs, Blended, true)
	if len(ranked) != len(locs) {
		t.Fatalf("ranked %d, want %d", len(ranked), len(locs))
	}

	counts := map[Quadrant]int{}
	for _, r := range ranked {
		counts[r.Quadrant]++
	}
	total := counts[QuadrantBestFinds] + counts[QuadrantQuality] + counts[QuadrantCharacter] + counts[QuadrantAverage]
	if total != len(locs) {
		t.Errorf("quadrant counts sum to %d, want %d: %v", total, len(locs), counts)
	}

	want := map[string]Quadrant{
		"a": QuadrantBestFinds,
		"b": QuadrantQuality,
		"c": QuadrantCharacter,
		"d": QuadrantAverage,
	}
	for _, r := range ranked {
		if q, ok := want[r.Location.PlaceID]; ok && r.Quadrant != q {
			t.Errorf("%s quadrant = %s, want %s", r.Location.PlaceID, r.Quadrant, q)
		}
	}
}

func TestTieAtBothMediansIsAverage(t *testing.T) {
	locs := []place.Location{
		rankLoc("low", 0.2, 0.2),
		rankLoc("median", 0.5, 0.5),
		rankLoc("high", 0.8, 0.8),
	}

	ranked := defaultRanker().Rank(locs, Quality, true)
	for _, r := range ranked {
		if r.Location.PlaceID != "median" {
			continue
		}
		if r.Quadrant != QuadrantAverage {
			t.Errorf("location exactly at both medians got %s, want %s", r.Quadrant, QuadrantAverage)
		}
	}
}

// Percentiles are relative to the ranked set, so the same location must in
// general rank differently under a filtered subset than under the corpus.
func TestRescopingMovesPercentiles(t *testing.T) {
	a := rankLoc("a", 0.2, 0.2)
	b := rankLoc("b", 0.5, 0.5)
	c := rankLoc("c", 0.8, 0.8)

	r := defaultRanker()
	full := r.Rank([]place.Location{a, b, c}, Quality, false)
	subset := r.Rank([]place.Location{b, c}, Quality, false)

	pct := func(ranked []Ranked, id string) float64 {
		for _, x := range ranked {
			if x.Location.PlaceID == id {
				return *x.Percentile
			}
		}
		t.Fatalf("%s not ranked", id)
		return 0
	}

	fullB, subB := pct(full, "b"), pct(subset, "b")
	if fullB == subB {
		t.Errorf("percentile of b unchanged after rescoping: full=%v subset=%v", fullB, subB)
	}
	if fullB != 50 {
		t.Errorf("full-corpus percentile of b = %v, want 50", fullB)
	}
	if subB != 0 {
		t.Errorf("subset percentile of b = %v, want 0", subB)
	}
}

func TestBadges(t *testing.T) {
	// Identical signals; "sleeper" has far fewer public ratings, so its
	// discovery factor pushes it to the top of the underrated lens.
	locs := []place.Location{
		rankLoc("busy1", 0.6, 0.6),
		rankLoc("busy2", 0.6, 0.6),
		rankLoc("busy3", 0.6, 0.6),
		rankLoc("busy4", 0.6, 0.6),
		rankLoc("sleeper", 0.6, 0.6),
	}
	locs[4].UserRatingsTotal = 5

	locs[0].AnomalyScore = fptr(-0.4) // flagged outlier
	locs[1].AnomalyScore = fptr(0.2)  // inlier
	locs[2].ReviewCount = 2           // thin coverage

	ranked := defaultRanker().Rank(locs, Blended, true)

	has := func(id string, b Badge) bool {
		for _, r := range ranked {
			if r.Location.PlaceID != id {
				continue
			}
			for _, got := range r.Badges {
				if got == b {
					return true
				}
			}
		}
		return false
	}

	if !has("sleeper", BadgeUnderrated) {
		t.Error("sleeper missing underrated badge")
	}
	if !has("busy1", BadgeUnique) {
		t.Error("busy1 missing unique badge")
	}
	if has("busy2", BadgeUnique) {
		t.Error("busy2 has unique badge despite inlier anomaly score")
	}
	if has("busy4", BadgeUnique) {
		t.Error("busy4 has unique badge despite missing anomaly score")
	}
	if !has("busy3", BadgeLowData) {
		t.Error("busy3 missing low_data badge")
	}
	if has("busy4", BadgeLowData) {
		t.Error("busy4 has low_data badge at sufficient coverage")
	}
}

func TestUnscoredLocations(t *testing.T) {
	locs := []place.Location{
		rankLoc("scored", 0.7, 0.7),
		{PlaceID: "empty", Name: "empty"}, // no signals at all
	}

	r := defaultRanker()

	only := r.Rank(locs, Quality, false)
	if len(only) != 1 || only[0].Location.PlaceID != "scored" {
		t.Fatalf("excludeUnscored kept %d results", len(only))
	}

	all := r.Rank(locs, Quality, true)
	if len(all) != 2 {
		t.Fatalf("includeUnscored kept %d results, want 2", len(all))
	}
	last := all[1]
	if last.Location.PlaceID != "empty" {
		t.Fatalf("unscored location not sorted last")
	}
	if last.Score != nil || last.Percentile != nil {
		t.Errorf("unscored location has score=%v percentile=%v, want nils", last.Score, last.Percentile)
	}
	if last.Quadrant != QuadrantAverage {
		t.Errorf("unscored location quadrant = %s, want %s", last.Quadrant, QuadrantAverage)
	}
}
