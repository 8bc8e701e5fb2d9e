package scheduler

import (
	"fmt"
	"time"
)

// Schedule computes the next wall-clock run instant strictly after now.
type Schedule interface {
	NextRun(now time.Time) time.Time
	String() string
}

// EverySeconds fires every n seconds. EverySeconds(0) still advances by
// a single tick (one nanosecond) per call, never less, so a degenerate
// zero interval cannot turn a scheduler tick into a busy loop.
type EverySeconds struct{ N int }

func (e EverySeconds) NextRun(now time.Time) time.Time {
	if e.N <= 0 {
		return now.Add(time.Nanosecond)
	}
	return now.Add(time.Duration(e.N) * time.Second)
}

func (e EverySeconds) String() string { return fmt.Sprintf("every %ds", e.N) }

// EveryMinutes fires every n minutes.
type EveryMinutes struct{ N int }

func (e EveryMinutes) NextRun(now time.Time) time.Time {
	if e.N <= 0 {
		return now.Add(time.Nanosecond)
	}
	return now.Add(time.Duration(e.N) * time.Minute)
}

func (e EveryMinutes) String() string { return fmt.Sprintf("every %dm", e.N) }

// EveryHours fires every n hours.
type EveryHours struct{ N int }

func (e EveryHours) NextRun(now time.Time) time.Time {
	if e.N <= 0 {
		return now.Add(time.Nanosecond)
	}
	return now.Add(time.Duration(e.N) * time.Hour)
}

func (e EveryHours) String() string { return fmt.Sprintf("every %dh", e.N) }

// DailyAt fires once a day at the given hour (0-23), today if that hour
// has not yet passed, tomorrow otherwise.
type DailyAt struct{ Hour int }

func (d DailyAt) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (d DailyAt) String() string { return fmt.Sprintf("daily at %02d:00", d.Hour) }

// WeeklyAt fires once a week on the given weekday at the given hour.
type WeeklyAt struct {
	Weekday time.Weekday
	Hour    int
}

func (w WeeklyAt) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), w.Hour, 0, 0, 0, now.Location())
	daysAhead := int(w.Weekday) - int(next.Weekday())
	if daysAhead < 0 || (daysAhead == 0 && !next.After(now)) {
		daysAhead += 7
	}
	return next.AddDate(0, 0, daysAhead)
}

func (w WeeklyAt) String() string {
	return fmt.Sprintf("weekly on %s at %02d:00", w.Weekday, w.Hour)
}

// Cron fires on the next minute matching a standard 5-field cron
// expression (minute, hour, day-of-month, month, day-of-week).
type Cron struct {
	expr *cronExpr
	src  string
}

// NewCron parses a 5-field cron expression. Each field accepts `*`, a
// single value, a comma-separated list, a `a-b` range, or a `*/n` step;
// fields may combine a range with a step (`1-31/2`).
func NewCron(expr string) (Cron, error) {
	parsed, err := parseCron(expr)
	if err != nil {
		return Cron{}, err
	}
	return Cron{expr: parsed, src: expr}, nil
}

// MustCron is like NewCron but panics on a malformed expression, for use
// with expressions known at compile time.
func MustCron(expr string) Cron {
	c, err := NewCron(expr)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Cron) NextRun(now time.Time) time.Time {
	return c.expr.next(now)
}

func (c Cron) String() string { return c.src }
