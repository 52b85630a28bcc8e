package place

import "time"

// Signal is one of the nine per-review quality/vibe scores extracted by
// the LLM analysis step. Every signal value lives in [0,1].
type Signal string

const (
	SignalFoodDrinkQuality   Signal = "food_drink_quality"
	SignalServiceQuality     Signal = "service_quality"
	SignalValueScore         Signal = "value_score"
	SignalDiveyScore         Signal = "divey_score"
	SignalClassicInstitution Signal = "classic_institution"
	SignalUnpretentious      Signal = "unpretentious"
	SignalAuthenticity       Signal = "authenticity"
	SignalWouldRecommend     Signal = "would_recommend"
	SignalMemorable          Signal = "memorable"
)

// AllSignals returns the nine signals in canonical column order.
func AllSignals() []Signal {
	return []Signal{
		SignalFoodDrinkQuality,
		SignalServiceQuality,
		SignalValueScore,
		SignalDiveyScore,
		SignalClassicInstitution,
		SignalUnpretentious,
		SignalAuthenticity,
		SignalWouldRecommend,
		SignalMemorable,
	}
}

// ValidSignal reports whether name is a known signal.
func ValidSignal(name string) bool {
	for _, s := range AllSignals() {
		if string(s) == name {
			return true
		}
	}
	return false
}

// SignalValues maps signals to values. A missing key means the signal has
// not been scored; it is never substituted with zero.
type SignalValues map[Signal]float64

// Location is one place with its static Google metadata, the aggregated
// signal averages written by the aggregator, and read-only fields produced
// by the offline ML scripts.
type Location struct {
	PlaceID          string   `json:"place_id" db:"place_id"`
	Name             string   `json:"name" db:"name"`
	Address          string   `json:"address" db:"address"`
	Lat              float64  `json:"lat" db:"lat"`
	Lng              float64  `json:"lng" db:"lng"`
	Rating           *float64 `json:"rating" db:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total" db:"user_ratings_total"`
	PriceLevel       *int     `json:"price_level" db:"price_level"`
	Types            []string `json:"types" db:"-"`
	Phone            string   `json:"phone,omitempty" db:"phone"`
	Website          string   `json:"website,omitempty" db:"website"`

	// Aggregates recomputed from reviews by the aggregator.
	ReviewCount          int      `json:"review_count" db:"review_count"`
	AvgFoodDrinkQuality  *float64 `json:"avg_food_drink_quality" db:"avg_food_drink_quality"`
	AvgServiceQuality    *float64 `json:"avg_service_quality" db:"avg_service_quality"`
	AvgValueScore        *float64 `json:"avg_value_score" db:"avg_value_score"`
	AvgDiveyScore        *float64 `json:"avg_divey_score" db:"avg_divey_score"`
	AvgClassicInstitution *float64 `json:"avg_classic_institution" db:"avg_classic_institution"`
	AvgUnpretentious     *float64 `json:"avg_unpretentious" db:"avg_unpretentious"`
	AvgAuthenticity      *float64 `json:"avg_authenticity" db:"avg_authenticity"`
	AvgWouldRecommend    *float64 `json:"avg_would_recommend" db:"avg_would_recommend"`
	AvgMemorable         *float64 `json:"avg_memorable" db:"avg_memorable"`

	// Written by the offline ML scripts, consumed read-only here.
	UmapX        *float64 `json:"umap_x,omitempty" db:"umap_x"`
	UmapY        *float64 `json:"umap_y,omitempty" db:"umap_y"`
	AutoTags     []string `json:"auto_tags,omitempty" db:"-"`
	AnomalyScore *float64 `json:"anomaly_score,omitempty" db:"anomaly_score"`

	CollectedAt time.Time `json:"collected_at" db:"collected_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	TypesJSON    string `json:"-" db:"types"`
	AutoTagsJSON string `json:"-" db:"auto_tags"`
}

// SignalAverages returns the averaged signals present on the location.
// A nil column is omitted, not mapped to zero.
func (l *Location) SignalAverages() SignalValues {
	out := make(SignalValues, 9)
	put := func(s Signal, v *float64) {
		if v != nil {
			out[s] = *v
		}
	}
	put(SignalFoodDrinkQuality, l.AvgFoodDrinkQuality)
	put(SignalServiceQuality, l.AvgServiceQuality)
	put(SignalValueScore, l.AvgValueScore)
	put(SignalDiveyScore, l.AvgDiveyScore)
	put(SignalClassicInstitution, l.AvgClassicInstitution)
	put(SignalUnpretentious, l.AvgUnpretentious)
	put(SignalAuthenticity, l.AvgAuthenticity)
	put(SignalWouldRecommend, l.AvgWouldRecommend)
	put(SignalMemorable, l.AvgMemorable)
	return out
}

// kindTypes maps high-level place kinds to the Google place types that
// count as a match.
var kindTypes = map[string]map[string]bool{
	"bar":        {"bar": true, "night_club": true},
	"restaurant": {"restaurant": true, "cafe": true, "meal_takeaway": true, "meal_delivery": true},
}

// Kinds returns the supported high-level kind names.
func Kinds() []string { return []string{"bar", "restaurant"} }

// HasKind reports whether the location's Google place types match the
// given high-level kind ("bar" or "restaurant").
func (l *Location) HasKind(kind string) bool {
	want, ok := kindTypes[kind]
	if !ok {
		return false
	}
	for _, t := range l.Types {
		if want[t] {
			return true
		}
	}
	return false
}

// Review is one scraped review with its nine nullable signal columns.
// Signals are populated by the analyze step and overwritten on re-analysis.
type Review struct {
	ID         string     `json:"id" db:"id"`
	PlaceID    string     `json:"place_id" db:"place_id"`
	AuthorName string     `json:"author_name" db:"author_name"`
	Rating     *int       `json:"rating" db:"rating"`
	ReviewText string     `json:"review_text" db:"review_text"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`

	CollectedAt time.Time  `json:"collected_at" db:"collected_at"`
	AnalyzedAt  *time.Time `json:"analyzed_at,omitempty" db:"analyzed_at"`
	Model       string     `json:"model,omitempty" db:"model"`

	FoodDrinkQuality   *float64 `json:"food_drink_quality" db:"food_drink_quality"`
	ServiceQuality     *float64 `json:"service_quality" db:"service_quality"`
	ValueScore         *float64 `json:"value_score" db:"value_score"`
	DiveyScore         *float64 `json:"divey_score" db:"divey_score"`
	ClassicInstitution *float64 `json:"classic_institution" db:"classic_institution"`
	Unpretentious      *float64 `json:"unpretentious" db:"unpretentious"`
	Authenticity       *float64 `json:"authenticity" db:"authenticity"`
	WouldRecommend     *float64 `json:"would_recommend" db:"would_recommend"`
	Memorable          *float64 `json:"memorable" db:"memorable"`
}

// Signals returns the signals present on the review.
func (r *Review) Signals() SignalValues {
	out := make(SignalValues, 9)
	put := func(s Signal, v *float64) {
		if v != nil {
			out[s] = *v
		}
	}
	put(SignalFoodDrinkQuality, r.FoodDrinkQuality)
	put(SignalServiceQuality, r.ServiceQuality)
	put(SignalValueScore, r.ValueScore)
	put(SignalDiveyScore, r.DiveyScore)
	put(SignalClassicInstitution, r.ClassicInstitution)
	put(SignalUnpretentious, r.Unpretentious)
	put(SignalAuthenticity, r.Authenticity)
	put(SignalWouldRecommend, r.WouldRecommend)
	put(SignalMemorable, r.Memorable)
	return out
}
