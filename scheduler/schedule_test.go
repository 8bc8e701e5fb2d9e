package scheduler

import (
	"testing"
	"time"
)

func TestEverySeconds_NextRun(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	got := EverySeconds{N: 30}.NextRun(now)
	want := now.Add(30 * time.Second)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDailyAt_RollsToTomorrowIfPassed(t *testing.T) {
	now := time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC)
	got := DailyAt{Hour: 9}.NextRun(now)
	want := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDailyAt_SameDayIfNotYetPassed(t *testing.T) {
	now := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	got := DailyAt{Hour: 9}.NextRun(now)
	want := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWeeklyAt_NextOccurrence(t *testing.T) {
	// 2026-01-01 is a Thursday.
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	got := WeeklyAt{Weekday: time.Monday, Hour: 9}.NextRun(now)
	want := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWeeklyAt_RollsToNextWeekWhenHourPassedToday(t *testing.T) {
	// 2026-01-01 is a Thursday.
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	got := WeeklyAt{Weekday: time.Thursday, Hour: 9}.NextRun(now)
	want := time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCron_EveryMinute(t *testing.T) {
	c := MustCron("* * * * *")
	now := time.Date(2026, 1, 1, 12, 30, 15, 0, time.UTC)
	got := c.NextRun(now)
	want := time.Date(2026, 1, 1, 12, 31, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCron_SpecificHour(t *testing.T) {
	c := MustCron("0 3 * * *")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	got := c.NextRun(now)
	want := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCron_StepExpression(t *testing.T) {
	c := MustCron("*/15 * * * *")
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)
	got := c.NextRun(now)
	want := time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCron_DayOfWeek(t *testing.T) {
	// Every Monday at 09:00; 2026-01-01 is a Thursday.
	c := MustCron("0 9 * * 1")
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	got := c.NextRun(now)
	want := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNewCron_RejectsMalformedExpression(t *testing.T) {
	if _, err := NewCron("not a cron"); err == nil {
		t.Fatal("expected an error for a malformed expression")
	}
	if _, err := NewCron("60 * * * *"); err == nil {
		t.Fatal("expected an error for an out-of-range minute")
	}
}
