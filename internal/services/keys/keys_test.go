package keys

import (
	"strings"
	"testing"
	"time"

	"TrendDuel/internal/domain/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleWindow() []models.SeriesPoint {
	return []models.SeriesPoint{
		{Date: day("2026-01-01"), Values: map[string]float64{"coffee": 40, "tea": 60}},
		{Date: day("2026-01-02"), Values: map[string]float64{"coffee": 42, "tea": 58}},
		{Date: day("2026-01-03"), Values: map[string]float64{"coffee": 45, "tea": 55}},
	}
}

func TestDataHashDeterministic(t *testing.T) {
	a := DataHash("", sampleWindow(), "v1")
	b := DataHash("", sampleWindow(), "v1")
	if a != b {
		t.Fatalf("same input produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%s)", len(a), a)
	}
}

func TestDataHashChangesOnPerturbation(t *testing.T) {
	base := DataHash("", sampleWindow(), "v1")

	perturbed := sampleWindow()
	perturbed[1].Values["coffee"] = 42.0001
	if got := DataHash("", perturbed, "v1"); got == base {
		t.Fatalf("perturbing one value did not change the hash")
	}

	if got := DataHash("", sampleWindow(), "v2"); got == base {
		t.Fatalf("algorithm version change did not change the hash")
	}

	shorter := sampleWindow()[:2]
	if got := DataHash("", shorter, "v1"); got == base {
		t.Fatalf("window change did not change the hash")
	}
}

func TestDataHashTermNarrowing(t *testing.T) {
	coffee := DataHash("coffee", sampleWindow(), "v1")
	tea := DataHash("tea", sampleWindow(), "v1")
	all := DataHash("", sampleWindow(), "v1")

	if coffee == tea || coffee == all || tea == all {
		t.Fatalf("term narrowing did not separate hashes: coffee=%s tea=%s all=%s", coffee, tea, all)
	}

	// Changing the other term's values must not move a narrowed hash.
	perturbed := sampleWindow()
	perturbed[0].Values["tea"] = 99
	if got := DataHash("coffee", perturbed, "v1"); got != coffee {
		t.Fatalf("coffee hash moved when only tea changed")
	}
}

func TestCacheKeyComposition(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"forecast", ForecastKey("coffee-vs-tea", "coffee", "12m", "GLOBAL", "abc"),
			"forecast:coffee-vs-tea:coffee:12m:GLOBAL:abc"},
		{"status", WarmupStatusKey("coffee-vs-tea", "12m", "GLOBAL", "abc"),
			"warmup-status:coffee-vs-tea:12m:GLOBAL:abc"},
		{"error", WarmupErrorKey("coffee-vs-tea", "12m", "GLOBAL", "abc"),
			"warmup-error:coffee-vs-tea:12m:GLOBAL:abc"},
		{"debug", WarmupDebugKey("coffee-vs-tea", "12m", "GLOBAL", "abc"),
			"warmup-debug:coffee-vs-tea:12m:GLOBAL:abc"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s key: got %s want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestDataHashCanonicalTermOrder(t *testing.T) {
	// Maps iterate in random order; the digest input must not.
	for i := 0; i < 20; i++ {
		window := []models.SeriesPoint{
			{Date: day("2026-01-01"), Values: map[string]float64{"zebra": 1, "alpha": 2, "mid": 3}},
		}
		if got, want := DataHash("", window, "v1"), DataHash("", window, "v1"); got != want {
			t.Fatalf("iteration order leaked into hash")
		}
	}
}

func TestFormatValueNoExponent(t *testing.T) {
	if s := formatValue(0.0000001); strings.ContainsAny(s, "eE") {
		t.Fatalf("value formatting must be plain decimal, got %s", s)
	}
}
