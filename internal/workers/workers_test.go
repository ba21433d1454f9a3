package workers

import (
	"os"
	"runtime"
	"testing"
)

func clearOverride(t *testing.T) {
	t.Helper()
	original := os.Getenv("ARKVIEW_WORKERS")
	os.Unsetenv("ARKVIEW_WORKERS")
	t.Cleanup(func() {
		if original != "" {
			os.Setenv("ARKVIEW_WORKERS", original)
		}
	})
}

func TestCount(t *testing.T) {
	clearOverride(t)
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		min        int
		max        int
	}{
		{name: "cpu bound", multiplier: 1.0, limit: 0, min: 1, max: available},
		{name: "io bound", multiplier: 2.0, limit: 0, min: 1, max: available * 2},
		{name: "mixed", multiplier: 1.5, limit: 0, min: 1, max: int(float64(available) * 1.5)},
		{name: "capped by limit", multiplier: 2.0, limit: 2, min: 1, max: 2},
		{name: "fractional floors to one", multiplier: 0.01, limit: 0, min: 1, max: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.min || got > tt.max {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d",
					tt.multiplier, tt.limit, got, tt.min, tt.max)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	clearOverride(t)

	os.Setenv("ARKVIEW_WORKERS", "3")
	if got := Count(1.0, 0); got != 3 {
		t.Errorf("override ignored: got %d, want 3", got)
	}
	if got := Count(1.0, 2); got != 2 {
		t.Errorf("override should respect limit: got %d, want 2", got)
	}

	os.Setenv("ARKVIEW_WORKERS", "not-a-number")
	if got := Count(1.0, 0); got < 1 {
		t.Errorf("invalid override should fall back: got %d", got)
	}
}

func TestHelpers(t *testing.T) {
	clearOverride(t)

	if got := ForCPU(4); got < 1 || got > 4 {
		t.Errorf("ForCPU(4) = %d", got)
	}
	if got := ForIO(16); got < 1 || got > 16 {
		t.Errorf("ForIO(16) = %d", got)
	}
	if got := ForMixed(8); got < 1 || got > 8 {
		t.Errorf("ForMixed(8) = %d", got)
	}
}
