package progress

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDayTruncation(t *testing.T) {
	in := time.Date(2026, time.March, 5, 23, 59, 59, 123, time.UTC)
	want := date(2026, time.March, 5)
	if got := Day(in); !got.Equal(want) {
		t.Errorf("Day(%v) = %v, want %v", in, got, want)
	}

	// A late-evening time east of UTC is still the same UTC day.
	loc := time.FixedZone("UTC+9", 9*3600)
	in = time.Date(2026, time.March, 6, 3, 0, 0, 0, loc)
	if got := Day(in); !got.Equal(date(2026, time.March, 5)) {
		t.Errorf("Day(%v) = %v, want %v", in, got, date(2026, time.March, 5))
	}
}

func TestNextStreakConsecutiveDays(t *testing.T) {
	d0 := date(2026, time.January, 10)

	cur, max := NextStreak(0, 0, nil, d0)
	if cur != 1 || max != 1 {
		t.Fatalf("day 0: got streak %d/%d, want 1/1", cur, max)
	}

	last := d0
	for i := 1; i <= 2; i++ {
		day := d0.AddDate(0, 0, i)
		cur, max = NextStreak(cur, max, &last, day)
		if cur != i+1 || max != i+1 {
			t.Fatalf("day %d: got streak %d/%d, want %d/%d", i, cur, max, i+1, i+1)
		}
		last = day
	}
}

func TestNextStreakGapResets(t *testing.T) {
	d0 := date(2026, time.January, 10)
	cur, max := NextStreak(0, 0, nil, d0)

	// Skip a day: completion on D+2 resets the current streak but keeps max.
	last := d0
	cur, max = NextStreak(cur, max, &last, d0.AddDate(0, 0, 2))
	if cur != 1 {
		t.Errorf("after gap: current streak = %d, want 1", cur)
	}
	if max != 1 {
		t.Errorf("after gap: max streak = %d, want 1", max)
	}
}

func TestNextStreakMaxNeverDecreases(t *testing.T) {
	last := date(2026, time.February, 1)
	cur, max := NextStreak(4, 4, &last, date(2026, time.February, 10))
	if cur != 1 || max != 4 {
		t.Errorf("got streak %d/%d, want 1/4", cur, max)
	}
}

func TestTrustIncreaseTiers(t *testing.T) {
	cases := []struct {
		streak int
		want   float64
	}{
		{0, 1},
		{1, 1},
		{2, 1},
		{3, 2},
		{6, 2},
		{7, 2.5},
		{9, 2.5},
		{10, 3},
		{30, 3},
	}
	for _, c := range cases {
		if got := TrustIncrease(c.streak); got != c.want {
			t.Errorf("TrustIncrease(%d) = %v, want %v", c.streak, got, c.want)
		}
	}
}

func TestCompletionRateEmpty(t *testing.T) {
	if got := CompletionRate(nil, DefaultRateWindowDays, time.Now()); got != 0 {
		t.Errorf("CompletionRate(no participants) = %d, want 0", got)
	}
}

func TestCompletionRateBasic(t *testing.T) {
	now := date(2026, time.April, 10)

	// Joined 4 days ago (5 possible days), completed 5 → 100%.
	records := []RateInput{{StartDate: now.AddDate(0, 0, -4), TotalCompletions: 5}}
	if got := CompletionRate(records, 30, now); got != 100 {
		t.Errorf("full completion rate = %d, want 100", got)
	}

	// Half completion across two participants: 10 possible, 5 actual.
	records = []RateInput{
		{StartDate: now.AddDate(0, 0, -4), TotalCompletions: 2},
		{StartDate: now.AddDate(0, 0, -4), TotalCompletions: 3},
	}
	if got := CompletionRate(records, 30, now); got != 50 {
		t.Errorf("half completion rate = %d, want 50", got)
	}
}

func TestCompletionRateWindowCap(t *testing.T) {
	now := date(2026, time.April, 10)

	// Joined a year ago: possible days capped at the window, so 30/30 = 100.
	records := []RateInput{{StartDate: now.AddDate(-1, 0, 0), TotalCompletions: 30}}
	if got := CompletionRate(records, 30, now); got != 100 {
		t.Errorf("windowed rate = %d, want 100", got)
	}
}

func TestCompletionRateBounds(t *testing.T) {
	now := date(2026, time.April, 10)
	records := []RateInput{
		{StartDate: now, TotalCompletions: 0},
		{StartDate: now.AddDate(0, 0, -400), TotalCompletions: 400},
	}
	got := CompletionRate(records, 30, now)
	if got < 0 || got > 100 {
		t.Errorf("rate %d out of [0,100]", got)
	}
}

func TestCompletionRateJoinDayCountsAsOne(t *testing.T) {
	now := date(2026, time.April, 10)
	records := []RateInput{{StartDate: now, TotalCompletions: 1}}
	if got := CompletionRate(records, 30, now); got != 100 {
		t.Errorf("join-day rate = %d, want 100", got)
	}
}
