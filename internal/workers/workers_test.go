package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"cpu bound", 1.0, 0, cpus},
		{"io bound", 2.0, 0, cpus * 2},
		{"limit caps", 2.0, 1, 1},
		{"tiny multiplier floors at one", 0.1, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountEnvOverride(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "7")
	if got := Count(1.0, 0); got != 7 {
		t.Errorf("Count with override = %d, want 7", got)
	}
	if got := Count(1.0, 4); got != 4 {
		t.Errorf("Count with override above limit = %d, want 4", got)
	}

	t.Setenv("PIPELINE_WORKERS", "not-a-number")
	if got := Count(1.0, 0); got != runtime.GOMAXPROCS(0) {
		t.Errorf("Count with bad override = %d, want automatic sizing", got)
	}

	t.Setenv("PIPELINE_WORKERS", "-2")
	if got := Count(1.0, 0); got != runtime.GOMAXPROCS(0) {
		t.Errorf("Count with negative override = %d, want automatic sizing", got)
	}
}

func TestHelpers(t *testing.T) {
	if ForCPU(1) != 1 || ForIO(1) != 1 || ForMixed(1) != 1 {
		t.Error("limit of 1 should cap every helper at 1")
	}
}
