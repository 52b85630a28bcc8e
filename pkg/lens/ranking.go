package lens

import (
	"sort"

	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

// Quadrant is one of the four median-split categories over the
// Quality x Character axes used by the two-axis visualization.
type Quadrant string

const (
	QuadrantBestFinds Quadrant = "best_finds"
	QuadrantQuality   Quadrant = "quality"
	QuadrantCharacter Quadrant = "character"
	QuadrantAverage   Quadrant = "average"
)

// Badge is a display flag attached to a ranked location.
type Badge string

const (
	BadgeUnderrated Badge = "underrated"
	BadgeUnique     Badge = "unique"
	BadgeLowData    Badge = "low_data"
)

// Ranked pairs a location with its set-relative statistics for one lens.
type Ranked struct {
	Location   *place.Location `json:"location"`
	Score      *float64        `json:"score"`      // nil: insufficient data for this lens
	Percentile *float64        `json:"percentile"` // nil when unscored
	Quadrant   Quadrant        `json:"quadrant"`
	Badges     []Badge         `json:"badges"`
}

// Ranker computes percentile ranks, quadrant assignments, and badges over
// an explicit location set. Statistics are always scoped to the set passed
// in: a filtered view gets filtered medians and percentiles, which can move
// locations between quadrants relative to the full corpus.
type Ranker struct {
	MinReviews           int     // coverage below this earns the low-data badge
	UnderratedPercentile float64 // underrated-lens percentile at or above = underrated badge
	AnomalyThreshold     float64 // isolation-forest score at or below = unique badge
}

// NewRanker creates a ranker, substituting defaults for zero thresholds.
func NewRanker(minReviews int, underratedPercentile, anomalyThreshold float64) *Ranker {
	if minReviews <= 0 {
		minReviews = 5
	}
	if underratedPercentile <= 0 {
		underratedPercentile = 80
	}
	if anomalyThreshold == 0 {
		anomalyThreshold = -0.1
	}
	return &Ranker{
		MinReviews:           minReviews,
		UnderratedPercentile: underratedPercentile,
		AnomalyThreshold:     anomalyThreshold,
	}
}

// Rank scores every location under l and attaches set-relative statistics.
// Results are sorted descending by score; unscored locations sort last, or
// are dropped entirely when includeUnscored is false. One unscorable
// location never prevents ranking the rest of the set.
func (r *Ranker) Rank(locs []place.Location, l Lens, includeUnscored bool) []Ranked {
	n := len(locs)
	scores := make([]*float64, n)
	quality := make([]*float64, n)
	character := make([]*float64, n)
	underrated := make([]*float64, n)
	for i := range locs {
		scores[i] = scoreOrNil(l, &locs[i])
		quality[i] = scoreOrNil(Quality, &locs[i])
		character[i] = scoreOrNil(Character, &locs[i])
		underrated[i] = scoreOrNil(Underrated, &locs[i])
	}

	percentiles := percentileRanks(scores)
	underratedPcts := percentileRanks(underrated)
	qMedian, qOK := medianOf(quality)
	cMedian, cOK := medianOf(character)

	ranked := make([]Ranked, 0, n)
	for i := range locs {
		if scores[i] == nil && !includeUnscored {
			continue
		}
		ranked = append(ranked, Ranked{
			Location:   &locs[i],
			Score:      scores[i],
			Percentile: percentiles[i],
			Quadrant:   quadrantFor(quality[i], character[i], qMedian, qOK, cMedian, cOK),
			Badges:     r.badges(&locs[i], underratedPcts[i]),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Score, ranked[j].Score
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})
	return ranked
}

func (r *Ranker) badges(loc *place.Location, underratedPct *float64) []Badge {
	var badges []Badge
	if underratedPct != nil && *underratedPct >= r.UnderratedPercentile {
		badges = append(badges, BadgeUnderrated)
	}
	// Anomaly scores come from the offline isolation-forest script; absent
	// score means no badge, never an ad-hoc recomputation here.
	if loc.AnomalyScore != nil && *loc.AnomalyScore <= r.AnomalyThreshold {
		badges = append(badges, BadgeUnique)
	}
	if loc.ReviewCount < r.MinReviews {
		badges = append(badges, BadgeLowData)
	}
	return badges
}

// quadrantFor assigns the median-split quadrant. The threshold is
// exclusive: a location exactly at a median counts as below it, and a
// location unscored on an axis can never be above that axis's median, so
// the four quadrants always partition the set exactly.
func quadrantFor(q, c *float64, qMedian float64, qOK bool, cMedian float64, cOK bool) Quadrant {
	aboveQ := qOK && q != nil && *q > qMedian
	aboveC := cOK && c != nil && *c > cMedian
	switch {
	case aboveQ && aboveC:
		return QuadrantBestFinds
	case aboveQ:
		return QuadrantQuality
	case aboveC:
		return QuadrantCharacter
	default:
		return QuadrantAverage
	}
}

// percentileRanks converts scores to 0-100 percentile ranks within the
// present values: 100 * (count strictly below) / (n-1). Ties share a rank;
// a lone value ranks 100.
func percentileRanks(scores []*float64) []*float64 {
	present := make([]float64, 0, len(scores))
	for _, s := range scores {
		if s != nil {
			present = append(present, *s)
		}
	}

	out := make([]*float64, len(scores))
	if len(present) == 0 {
		return out
	}
	sort.Float64s(present)

	for i, s := range scores {
		if s == nil {
			continue
		}
		pct := 100.0
		if len(present) > 1 {
			below := sort.SearchFloat64s(present, *s)
			pct = 100 * float64(below) / float64(len(present)-1)
		}
		p := pct
		out[i] = &p
	}
	return out
}

// medianOf returns the median of the present values; ok is false when the
// set has no scored values at all.
func medianOf(scores []*float64) (float64, bool) {
	present := make([]float64, 0, len(scores))
	for _, s := range scores {
		if s != nil {
			present = append(present, *s)
		}
	}
	if len(present) == 0 {
		return 0, false
	}
	sort.Float64s(present)

	mid := len(present) / 2
	if len(present)%2 == 1 {
		return present[mid], true
	}
	return (present[mid-1] + present[mid]) / 2, true
}

func scoreOrNil(l Lens, loc *place.Location) *float64 {
	v, err := l.Score(loc)
	if err != nil {
		return nil
	}
	return &v
}
