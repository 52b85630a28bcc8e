package analyze

import (
	"testing"

	"github.com/JeffBrines/dive-bar-detective/pkg/place"
)

func TestParseSignalsComplete(t *testing.T) {
	content := `{
		"food_drink_quality": 0.9,
		"service_quality": 0.8,
		"value_score": 0.7,
		"divey_score": 0.95,
		"classic_institution": 0.6,
		"unpretentious": 0.85,
		"authenticity": 0.9,
		"would_recommend": 0.9,
		"memorable": 0.75
	}`

	got, err := parseSignals(content)
	if err != nil {
		t.Fatalf("parseSignals: %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("parsed %d signals, want 9", len(got))
	}
	if got[place.SignalDiveyScore] != 0.95 {
		t.Errorf("divey_score = %v, want 0.95", got[place.SignalDiveyScore])
	}
}

func TestParseSignalsDefaults(t *testing.T) {
	// Model only scored two dimensions; the rest take their defaults.
	got, err := parseSignals(`{"food_drink_quality": 0.9, "would_recommend": 1.0}`)
	if err != nil {
		t.Fatalf("parseSignals: %v", err)
	}

	if got[place.SignalFoodDrinkQuality] != 0.9 {
		t.Errorf("food_drink_quality = %v, want 0.9", got[place.SignalFoodDrinkQuality])
	}
	if got[place.SignalServiceQuality] != 0.5 {
		t.Errorf("service_quality default = %v, want 0.5", got[place.SignalServiceQuality])
	}
	// Dive-ness defaults to absent, not neutral.
	if got[place.SignalDiveyScore] != 0.0 {
		t.Errorf("divey_score default = %v, want 0.0", got[place.SignalDiveyScore])
	}
	if got[place.SignalClassicInstitution] != 0.0 {
		t.Errorf("classic_institution default = %v, want 0.0", got[place.SignalClassicInstitution])
	}
}

func TestParseSignalsClampsAndCoerces(t *testing.T) {
	got, err := parseSignals(`{"food_drink_quality": 1.7, "service_quality": -0.3, "value_score": "0.6"}`)
	if err != nil {
		t.Fatalf("parseSignals: %v", err)
	}

	if got[place.SignalFoodDrinkQuality] != 1.0 {
		t.Errorf("food_drink_quality = %v, want clamped 1.0", got[place.SignalFoodDrinkQuality])
	}
	if got[place.SignalServiceQuality] != 0.0 {
		t.Errorf("service_quality = %v, want clamped 0.0", got[place.SignalServiceQuality])
	}
	if got[place.SignalValueScore] != 0.6 {
		t.Errorf("value_score = %v, want 0.6 from string", got[place.SignalValueScore])
	}
}

func TestParseSignalsRejectsGarbage(t *testing.T) {
	if _, err := parseSignals("not json at all"); err == nil {
		t.Fatal("parseSignals accepted non-JSON")
	}
}
