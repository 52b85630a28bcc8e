package lens

import (
	"errors"
	"math"
	"testing"

	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

func fptr(v float64) *float64 { return &v }

func fullySignaled() *place.Location {
	return &place.Location{
		PlaceID:               "p1",
		Name:                  "Lucky's Tavern",
		Rating:                fptr(4.2),
		UserRatingsTotal:      120,
		ReviewCount:           30,
		AvgFoodDrinkQuality:   fptr(0.9),
		AvgServiceQuality:     fptr(0.8),
		AvgValueScore:         fptr(0.7),
		AvgDiveyScore:         fptr(0.6),
		AvgClassicInstitution: fptr(0.5),
		AvgUnpretentious:      fptr(0.7),
		AvgAuthenticity:       fptr(0.8),
		AvgWouldRecommend:     fptr(0.9),
		AvgMemorable:          fptr(0.8),
	}
}

func TestQualityScore(t *testing.T) {
	loc := &place.Location{
		AvgFoodDrinkQuality: fptr(0.9),
		AvgWouldRecommend:   fptr(0.9),
		AvgServiceQuality:   fptr(0.8),
		AvgValueScore:       fptr(0.7),
		AvgMemorable:        fptr(0.8),
	}

	got, err := Quality.Score(loc)
	if err != nil {
		t.Fatalf("Quality.Score: %v", err)
	}
	if got != 8.5 {
		t.Errorf("Quality score = %v, want 8.5", got)
	}
}

func TestCustomLensScore(t *testing.T) {
	l, err := NewCustom(map[string]float64{
		"divey_score":  0.5,
		"authenticity": 0.5,
	})
	if err != nil {
		t.Fatalf("NewCustom: %v", err)
	}

	loc := &place.Location{
		AvgDiveyScore:   fptr(0.2),
		AvgAuthenticity: fptr(0.4),
	}
	got, err := l.Score(loc)
	if err != nil {
		t.Fatalf("custom Score: %v", err)
	}
	if got != 3.0 {
		t.Errorf("custom score = %v, want 3.0", got)
	}
}

func TestCustomLensValidation(t *testing.T) {
	cases := []struct {
		name      string
		weights   map[string]float64
		wantField string
	}{
		{"empty", nil, "weights"},
		{"unknown signal", map[string]float64{"vibes": 1.0}, "vibes"},
		{"negative weight", map[string]float64{"divey_score": -0.5, "authenticity": 1.5}, "divey_score"},
		{"sum too low", map[string]float64{"divey_score": 0.3, "authenticity": 0.3}, "weights"},
		{"sum too high", map[string]float64{"divey_score": 0.8, "authenticity": 0.8}, "weights"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCustom(tc.weights)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("NewCustom(%v) error = %v, want *ValidationError", tc.weights, err)
			}
			if verr.Field != tc.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tc.wantField)
			}
		})
	}
}

func TestCustomLensToleratesNearOne(t *testing.T) {
	// 0.995 is within the 0.01 tolerance around 1.0.
	if _, err := NewCustom(map[string]float64{"divey_score": 0.5, "authenticity": 0.495}); err != nil {
		t.Errorf("NewCustom near 1.0 rejected: %v", err)
	}
}

func TestMissingSignalIsErrorNotZero(t *testing.T) {
	loc := fullySignaled()
	loc.AvgFoodDrinkQuality = nil

	_, err := Quality.Score(loc)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Quality.Score with missing signal: error = %v, want ErrInsufficientData", err)
	}

	// Character does not use food_drink_quality and must still score.
	if _, err := Character.Score(loc); err != nil {
		t.Errorf("Character.Score: %v", err)
	}
}

func TestUnderratedScore(t *testing.T) {
	loc := fullySignaled()

	got, err := Underrated.Score(loc)
	if err != nil {
		t.Fatalf("Underrated.Score: %v", err)
	}
	if got < 0 || got > 10 {
		t.Fatalf("Underrated score %v out of [0,10]", got)
	}

	// Fewer public ratings means more discoverable, so a less-reviewed twin
	// must score at least as high.
	quiet := fullySignaled()
	quiet.UserRatingsTotal = 8
	quietScore, err := Underrated.Score(quiet)
	if err != nil {
		t.Fatalf("Underrated.Score: %v", err)
	}
	if quietScore < got {
		t.Errorf("quieter location scored %v, busier scored %v", quietScore, got)
	}
}

func TestUnderratedRequiresRatingAndRecommend(t *testing.T) {
	loc := fullySignaled()
	loc.Rating = nil
	if _, err := Underrated.Score(loc); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("missing rating: error = %v, want ErrInsufficientData", err)
	}

	loc = fullySignaled()
	loc.AvgWouldRecommend = nil
	if _, err := Underrated.Score(loc); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("missing would_recommend: error = %v, want ErrInsufficientData", err)
	}
}

func TestBlendedScore(t *testing.T) {
	loc := fullySignaled()

	q, _ := Quality.Score(loc)
	c, _ := Character.Score(loc)
	u, _ := Underrated.Score(loc)
	want := finish(0.40*q + 0.35*c + 0.25*u)

	got, err := Blended.Score(loc)
	if err != nil {
		t.Fatalf("Blended.Score: %v", err)
	}
	if got != want {
		t.Errorf("Blended score = %v, want %v", got, want)
	}

	// Any missing component blocks the blend.
	loc.AvgAuthenticity = nil
	if _, err := Blended.Score(loc); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("blend with missing character input: error = %v, want ErrInsufficientData", err)
	}
}

func TestBuiltinLookup(t *testing.T) {
	for _, name := range []string{"quality", "character", "underrated", "blended"} {
		if _, ok := Builtin(name); !ok {
			t.Errorf("Builtin(%q) not found", name)
		}
	}
	if _, ok := Builtin("custom"); ok {
		t.Error("Builtin(custom) resolved; custom lenses need explicit weights")
	}
	if _, ok := Builtin("nope"); ok {
		t.Error("Builtin(nope) resolved")
	}
}

func TestBuiltinWeightsSumToOne(t *testing.T) {
	for _, l := range []Lens{Quality, Character} {
		sum := 0.0
		for _, w := range l.Weights {
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("%s weights sum to %v, want 1.0", l.Name, sum)
		}
	}
}

func TestNormalizeRating(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{2.5, 0.5},
		{5, 1},
		{6, 1},  // clamped
		{-1, 0}, // clamped
	}
	for _, tc := range cases {
		if got := NormalizeRating(tc.in); got != tc.want {
			t.Errorf("NormalizeRating(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDiscoveryFactor(t *testing.T) {
	if got := DiscoveryFactor(1); got != 1.0 {
		t.Errorf("DiscoveryFactor(1) = %v, want 1.0", got)
	}
	if got := DiscoveryFactor(0); got != 1.0 {
		t.Errorf("DiscoveryFactor(0) = %v, want 1.0", got)
	}

	prev := 2.0
	for _, n := range []int{1, 10, 100, 1000, 100000} {
		f := DiscoveryFactor(n)
		if f <= 0 || f > 1 {
			t.Fatalf("DiscoveryFactor(%d) = %v out of (0,1]", n, f)
		}
		if f > prev {
			t.Fatalf("DiscoveryFactor(%d) = %v rose above %v", n, f, prev)
		}
		prev = f
	}
}

func TestScoreClamping(t *testing.T) {
	if got := finish(12.3); got != 10.0 {
		t.Errorf("finish(12.3) = %v, want 10.0", got)
	}
	if got := finish(-1.2); got != 0.0 {
		t.Errorf("finish(-1.2) = %v, want 0.0", got)
	}
}

func TestScoresMapsUnscorableToNil(t *testing.T) {
	loc := &place.Location{} // no signals at all
	scores := Scores(loc)
	for _, name := range []Name{NameQuality, NameCharacter, NameUnderrated, NameBlended} {
		v, ok := scores[name]
		if !ok {
			t.Fatalf("Scores missing %s", name)
		}
		if v != nil {
			t.Errorf("%s = %v for empty location, want nil", name, *v)
		}
	}
}
