package slots

import (
	"testing"
	"time"
)

var (
	// Tuesday.
	tuesday = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	// Saturday.
	saturday = time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
)

func TestGenerateFullBusinessDay(t *testing.T) {
	// 08:00-20:00, 30-minute service, nothing booked, day entirely in the
	// future: every half hour from 08:00 through 19:30.
	now := tuesday.Add(-24 * time.Hour)
	got := Generate(tuesday, 8*60, 20*60, 30*time.Minute, 30*time.Minute, nil, now)

	if len(got) != 24 {
		t.Fatalf("expected 24 slots, got %d", len(got))
	}
	if !got[0].Start.Equal(tuesday.Add(8 * time.Hour)) {
		t.Fatalf("first slot = %s, want 08:00", got[0].Start.Format("15:04"))
	}
	last := got[len(got)-1]
	if !last.Start.Equal(tuesday.Add(19*time.Hour + 30*time.Minute)) {
		t.Fatalf("last slot = %s, want 19:30", last.Start.Format("15:04"))
	}

	for _, s := range got {
		wantPeak := s.Start.Hour() >= 18 && s.Start.Hour() < 20
		if s.IsPeak != wantPeak {
			t.Errorf("slot %s peak = %v, want %v", s.Start.Format("15:04"), s.IsPeak, wantPeak)
		}
	}
}

func TestGenerateCloseBoundaryExclusive(t *testing.T) {
	now := tuesday.Add(-time.Hour)
	got := Generate(tuesday, 19*60, 20*60, 30*time.Minute, 30*time.Minute, nil, now)

	// 19:00 and 19:30 qualify; 20:00 starts at close and is excluded.
	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(got))
	}
	for _, s := range got {
		if !s.Start.Before(tuesday.Add(20 * time.Hour)) {
			t.Fatalf("slot %s starts at or after close", s.Start.Format("15:04"))
		}
	}
}

func TestGenerateSkipsPastAndPresent(t *testing.T) {
	// now is exactly 10:00; the 10:00 candidate is "at now" and must not
	// be offered, 10:30 is the first valid one.
	now := tuesday.Add(10 * time.Hour)
	got := Generate(tuesday, 8*60, 12*60, 30*time.Minute, 30*time.Minute, nil, now)

	if len(got) != 3 {
		t.Fatalf("expected 3 slots (10:30, 11:00, 11:30), got %d", len(got))
	}
	if !got[0].Start.Equal(tuesday.Add(10*time.Hour + 30*time.Minute)) {
		t.Fatalf("first slot = %s, want 10:30", got[0].Start.Format("15:04"))
	}
}

func TestGenerateExcludesBusyIntervals(t *testing.T) {
	now := tuesday.Add(-time.Hour)
	busy := []Interval{
		{Start: tuesday.Add(9 * time.Hour), End: tuesday.Add(10 * time.Hour)},
	}
	got := Generate(tuesday, 8*60, 11*60, 60*time.Minute, 30*time.Minute, busy, now)

	// 60-minute service: 08:00 fits before the booking, 10:00 and 10:30
	// start after it; 08:30, 09:00 and 09:30 all collide.
	want := []time.Time{
		tuesday.Add(8 * time.Hour),
		tuesday.Add(10 * time.Hour),
		tuesday.Add(10*time.Hour + 30*time.Minute),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Errorf("slot %d = %s, want %s", i, got[i].Start.Format("15:04"), want[i].Format("15:04"))
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	now := tuesday.Add(-time.Hour)
	busy := []Interval{
		{Start: tuesday.Add(14 * time.Hour), End: tuesday.Add(15 * time.Hour)},
	}
	a := Generate(tuesday, 8*60, 20*60, 30*time.Minute, 30*time.Minute, busy, now)
	b := Generate(tuesday, 8*60, 20*60, 30*time.Minute, 30*time.Minute, busy, now)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || a[i].IsPeak != b[i].IsPeak {
			t.Fatalf("slot %d differs between calls", i)
		}
	}
}

func TestIsPeak(t *testing.T) {
	cases := []struct {
		at   time.Time
		want bool
	}{
		{tuesday.Add(18 * time.Hour), true},
		{tuesday.Add(19*time.Hour + 59*time.Minute), true},
		{tuesday.Add(20 * time.Hour), false},
		{tuesday.Add(17*time.Hour + 59*time.Minute), false},
		{saturday.Add(18 * time.Hour), false},
	}
	for _, tc := range cases {
		if got := IsPeak(tc.at); got != tc.want {
			t.Errorf("IsPeak(%s) = %v, want %v", tc.at.Format(time.RFC3339), got, tc.want)
		}
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	busy := []Interval{
		{Start: tuesday.Add(10 * time.Hour), End: tuesday.Add(11 * time.Hour)},
	}

	// Touching boundaries do not conflict.
	if Overlaps(tuesday.Add(9*time.Hour), tuesday.Add(10*time.Hour), busy) {
		t.Error("interval ending at busy start should not overlap")
	}
	if Overlaps(tuesday.Add(11*time.Hour), tuesday.Add(12*time.Hour), busy) {
		t.Error("interval starting at busy end should not overlap")
	}
	// Any shared instant conflicts.
	if !Overlaps(tuesday.Add(10*time.Hour+30*time.Minute), tuesday.Add(11*time.Hour+30*time.Minute), busy) {
		t.Error("partially covered interval should overlap")
	}
	if !Overlaps(tuesday.Add(9*time.Hour), tuesday.Add(12*time.Hour), busy) {
		t.Error("containing interval should overlap")
	}
}
