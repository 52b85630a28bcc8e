package lens

import (
	"errors"
	"fmt"
	"math"

	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

// ErrInsufficientData marks a lens/location pair that cannot be scored
// because a required input has zero coverage. It is a per-location flag,
// never converted to a numeric zero: an unscored location is observably
// different from a location scoring 0.0.
var ErrInsufficientData = errors.New("insufficient signal data")

// ValidationError rejects malformed custom-lens weights before any
// computation, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid lens weights: %s: %s", e.Field, e.Reason)
}

// Name identifies a lens. The built-in set is closed; "custom" carries
// caller-supplied weights validated per request.
type Name string

const (
	NameQuality    Name = "quality"
	NameCharacter  Name = "character"
	NameUnderrated Name = "underrated"
	NameBlended    Name = "blended"
	NameCustom     Name = "custom"
)

// Custom lens weights must sum to 1.0 within this tolerance.
const weightSumTolerance = 0.01

// Lens is a named weighting over signals producing one 0-10 score per
// location. Quality, Character, and Custom are plain weighted sums;
// Underrated and Blended are composite forms dispatched by name.
type Lens struct {
	Name    Name
	Weights place.SignalValues
}

var (
	Quality = Lens{Name: NameQuality, Weights: place.SignalValues{
		place.SignalFoodDrinkQuality: 0.35,
		place.SignalWouldRecommend:   0.30,
		place.SignalServiceQuality:   0.15,
		place.SignalValueScore:       0.10,
		place.SignalMemorable:        0.10,
	}}

	Character = Lens{Name: NameCharacter, Weights: place.SignalValues{
		place.SignalAuthenticity:       0.30,
		place.SignalClassicInstitution: 0.25,
		place.SignalUnpretentious:      0.20,
		place.SignalDiveyScore:         0.15,
		place.SignalMemorable:          0.10,
	}}

	Underrated = Lens{Name: NameUnderrated}
	Blended    = Lens{Name: NameBlended}
)

// Blended lens mix over the other three built-in scores.
const (
	blendedQualityWeight    = 0.40
	blendedCharacterWeight  = 0.35
	blendedUnderratedWeight = 0.25
)

// Underrated lens mix: recommend gap, signal-sentiment gap, discovery.
const (
	underratedRecommendWeight = 0.40
	underratedSentimentWeight = 0.30
	underratedDiscoveryWeight = 0.30
)

// Builtin resolves a built-in lens by name.
func Builtin(name string) (Lens, bool) {
	switch Name(name) {
	case NameQuality:
		return Quality, true
	case NameCharacter:
		return Character, true
	case NameUnderrated:
		return Underrated, true
	case NameBlended:
		return Blended, true
	}
	return Lens{}, false
}

// NewCustom builds a validated ad-hoc lens from caller-supplied weights.
// Unknown signal names, negative weights, and weight sums off 1.0 by more
// than the tolerance are rejected. Unlisted signals implicitly weigh 0.
func NewCustom(weights map[string]float64) (Lens, error) {
	if len(weights) == 0 {
		return Lens{}, &ValidationError{Field: "weights", Reason: "no signal weights provided"}
	}

	vals := make(place.SignalValues, len(weights))
	sum := 0.0
	for name, w := range weights {
		if !place.ValidSignal(name) {
			return Lens{}, &ValidationError{Field: name, Reason: "unknown signal"}
		}
		if w < 0 {
			return Lens{}, &ValidationError{Field: name, Reason: "weight must not be negative"}
		}
		vals[place.Signal(name)] = w
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return Lens{}, &ValidationError{
			Field:  "weights",
			Reason: fmt.Sprintf("must sum to 1.0 within %.2f, got %.3f", weightSumTolerance, sum),
		}
	}

	return Lens{Name: NameCustom, Weights: vals}, nil
}

// Score applies the lens to one location's averaged signals (plus static
// Google metadata for the underrated lens) and returns a 0-10 score.
// It returns ErrInsufficientData when a required input is missing.
func (l Lens) Score(loc *place.Location) (float64, error) {
	switch l.Name {
	case NameUnderrated:
		return scoreUnderrated(loc)
	case NameBlended:
		return scoreBlended(loc)
	default:
		return scoreWeighted(l.Weights, loc.SignalAverages())
	}
}

// Scores computes every built-in lens for one location. Lenses that cannot
// be scored map to nil.
func Scores(loc *place.Location) map[Name]*float64 {
	out := make(map[Name]*float64, 4)
	for _, l := range []Lens{Quality, Character, Underrated, Blended} {
		if v, err := l.Score(loc); err == nil {
			score := v
			out[l.Name] = &score
		} else {
			out[l.Name] = nil
		}
	}
	return out
}

func scoreWeighted(weights, avgs place.SignalValues) (float64, error) {
	// Summing in canonical signal order keeps the float result identical
	// across runs; map iteration order would make scores flap at rounding
	// boundaries.
	raw := 0.0
	for _, sig := range place.AllSignals() {
		w, ok := weights[sig]
		if !ok || w == 0 {
			continue
		}
		v, ok := avgs[sig]
		if !ok {
			return 0, fmt.Errorf("signal %s: %w", sig, ErrInsufficientData)
		}
		raw += w * v
	}
	return finish(raw * 10), nil
}

func scoreUnderrated(loc *place.Location) (float64, error) {
	avgs := loc.SignalAverages()

	recommend, ok := avgs[place.SignalWouldRecommend]
	if !ok {
		return 0, fmt.Errorf("signal %s: %w", place.SignalWouldRecommend, ErrInsufficientData)
	}
	if loc.Rating == nil {
		return 0, fmt.Errorf("google rating: %w", ErrInsufficientData)
	}

	normRating := NormalizeRating(*loc.Rating)

	// Signal sentiment: mean of whatever averaged signals the location has.
	sentiment := 0.0
	for _, v := range avgs {
		sentiment += v
	}
	sentiment /= float64(len(avgs))

	// Gaps land in [-1,1]; shift onto [0,1] before weighting.
	recGap := (recommend - normRating + 1) / 2
	sentGap := (sentiment - normRating + 1) / 2

	raw := underratedRecommendWeight*recGap +
		underratedSentimentWeight*sentGap +
		underratedDiscoveryWeight*DiscoveryFactor(loc.UserRatingsTotal)

	return finish(raw * 10), nil
}

func scoreBlended(loc *place.Location) (float64, error) {
	q, err := Quality.Score(loc)
	if err != nil {
		return 0, err
	}
	c, err := Character.Score(loc)
	if err != nil {
		return 0, err
	}
	u, err := Underrated.Score(loc)
	if err != nil {
		return 0, err
	}
	return finish(blendedQualityWeight*q + blendedCharacterWeight*c + blendedUnderratedWeight*u), nil
}

// NormalizeRating maps a 0-5 Google rating onto the 0-1 scale the NLP
// signals use. Differencing the raw 0-5 rating against 0-1 signals would
// silently corrupt the gap calculation, so this is its own step.
func NormalizeRating(rating float64) float64 {
	return clamp(rating/5, 0, 1)
}

// DiscoveryFactor rewards review-volume scarcity: fewer public reviews
// means a less discovered place. Monotonically non-increasing in count and
// bounded in (0,1]; 1 review = 1.0, 100 = 0.33, 1000 = 0.25.
func DiscoveryFactor(reviewCount int) float64 {
	if reviewCount < 1 {
		reviewCount = 1
	}
	return 1.0 / (1.0 + math.Log10(float64(reviewCount)))
}

// finish clamps a raw score onto [0,10] and truncates to one decimal for
// display stability. The 1e-9 nudge keeps sums that land a float tick
// under a decimal boundary from losing a whole tenth.
func finish(score float64) float64 {
	return math.Trunc(clamp(score, 0, 10)*10+1e-9) / 10
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
