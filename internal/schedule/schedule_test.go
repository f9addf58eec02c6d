package schedule

import (
	"testing"
	"time"
)

func TestNextSuffix(t *testing.T) {
	const base int64 = 1768539600

	tests := []struct {
		name  string
		cycle int
		want  int64
	}{
		{"first cycle is the base", 1, base},
		{"second cycle moves one window forward", 2, base + 900},
		{"fifth cycle", 5, base + 4*900},
		{"zero clamps to base", 0, base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextSuffix(tt.cycle, base); got != tt.want {
				t.Fatalf("NextSuffix(%d) = %d, want %d", tt.cycle, got, tt.want)
			}
		})
	}
}

func TestPrevSuffix(t *testing.T) {
	const base int64 = 1768539600

	if got := PrevSuffix(1, base); got != base {
		t.Fatalf("PrevSuffix(1) = %d, want %d", got, base)
	}
	if got := PrevSuffix(3, base); got != base-1800 {
		t.Fatalf("PrevSuffix(3) = %d, want %d", got, base-1800)
	}
}

func TestNextQuarter(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			"mid window",
			time.Date(2026, 1, 16, 10, 7, 30, 0, time.UTC),
			time.Date(2026, 1, 16, 10, 15, 0, 0, time.UTC),
		},
		{
			"exactly on a boundary rolls to the next one",
			time.Date(2026, 1, 16, 10, 15, 0, 0, time.UTC),
			time.Date(2026, 1, 16, 10, 30, 0, 0, time.UTC),
		},
		{
			"last quarter rolls over the hour",
			time.Date(2026, 1, 16, 10, 59, 59, 0, time.UTC),
			time.Date(2026, 1, 16, 11, 0, 0, 0, time.UTC),
		},
		{
			"end of day rolls over midnight",
			time.Date(2026, 1, 16, 23, 50, 0, 0, time.UTC),
			time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextQuarter(tt.in); !got.Equal(tt.want) {
				t.Fatalf("NextQuarter(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSecondsUntil(t *testing.T) {
	deadline := time.Date(2026, 1, 16, 10, 15, 0, 0, time.UTC)

	if got := SecondsUntil(deadline.Add(-3*time.Minute), deadline); got != 180 {
		t.Fatalf("SecondsUntil = %d, want 180", got)
	}
	if got := SecondsUntil(deadline, deadline); got != 0 {
		t.Fatalf("SecondsUntil at deadline = %d, want 0", got)
	}
	if got := SecondsUntil(deadline.Add(2*time.Second), deadline); got != -2 {
		t.Fatalf("SecondsUntil past deadline = %d, want -2", got)
	}
	// Sub-second remainders round to the nearest second.
	if got := SecondsUntil(deadline.Add(-1500*time.Millisecond), deadline); got != 2 {
		t.Fatalf("SecondsUntil with 1.5s left = %d, want 2", got)
	}
}

func TestSecondsToClose(t *testing.T) {
	at := time.Date(2026, 1, 16, 10, 13, 0, 0, time.UTC)
	if got := SecondsToClose(at); got != 120 {
		t.Fatalf("SecondsToClose = %d, want 120", got)
	}
	boundary := time.Date(2026, 1, 16, 10, 15, 0, 0, time.UTC)
	if got := SecondsToClose(boundary); got != 900 {
		t.Fatalf("SecondsToClose at boundary = %d, want 900", got)
	}
}
