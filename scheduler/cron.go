package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronExpr is a parsed 5-field cron expression, each field represented as
// a bitset over its valid range.
type cronExpr struct {
	minute  uint64 // bits 0-59
	hour    uint32 // bits 0-23
	dom     uint32 // bits 1-31
	month   uint16 // bits 1-12
	weekday uint8  // bits 0-6 (0 = Sunday)
}

var fieldRanges = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week
}

func parseCron(expr string) (*cronExpr, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("scheduler: cron expression %q must have 5 fields, got %d", expr, len(fields))
	}
	bits := make([]uint64, 5)
	for i, f := range fields {
		b, err := parseCronField(f, fieldRanges[i][0], fieldRanges[i][1])
		if err != nil {
			return nil, fmt.Errorf("scheduler: cron field %d (%q): %w", i, f, err)
		}
		bits[i] = b
	}
	return &cronExpr{
		minute:  bits[0],
		hour:    uint32(bits[1]),
		dom:     uint32(bits[2]),
		month:   uint16(bits[3]),
		weekday: uint8(bits[4]),
	}, nil
}

func parseCronField(field string, lo, hi int) (uint64, error) {
	var bits uint64
	for _, part := range strings.Split(field, ",") {
		step := 1
		rangePart := part
		if idx := strings.IndexByte(part, '/'); idx >= 0 {
			rangePart = part[:idx]
			n, err := strconv.Atoi(part[idx+1:])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("invalid step %q", part)
			}
			step = n
		}

		start, end := lo, hi
		switch {
		case rangePart == "*":
			// full range, already set
		case strings.Contains(rangePart, "-"):
			bounds := strings.SplitN(rangePart, "-", 2)
			a, err1 := strconv.Atoi(bounds[0])
			b, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil || a < lo || b > hi || a > b {
				return 0, fmt.Errorf("invalid range %q", rangePart)
			}
			start, end = a, b
		default:
			v, err := strconv.Atoi(rangePart)
			if err != nil || v < lo || v > hi {
				return 0, fmt.Errorf("invalid value %q", rangePart)
			}
			start, end = v, v
		}

		for v := start; v <= end; v += step {
			bits |= 1 << uint(v)
		}
	}
	return bits, nil
}

func (c *cronExpr) matches(t time.Time) bool {
	minute := t.Minute()
	hour := t.Hour()
	dom := t.Day()
	month := int(t.Month())
	weekday := int(t.Weekday())

	if c.minute&(1<<uint(minute)) == 0 {
		return false
	}
	if c.hour&(1<<uint(hour)) == 0 {
		return false
	}
	if c.month&(1<<uint(month)) == 0 {
		return false
	}
	// Standard cron semantics: when both day-of-month and day-of-week are
	// restricted (not "*"), a match on either is sufficient.
	domRestricted := c.dom != domFullMask
	dowRestricted := c.weekday != dowFullMask
	domMatch := c.dom&(1<<uint(dom)) != 0
	dowMatch := c.weekday&(1<<uint(weekday)) != 0
	switch {
	case domRestricted && dowRestricted:
		return domMatch || dowMatch
	case domRestricted:
		return domMatch
	case dowRestricted:
		return dowMatch
	default:
		return true
	}
}

var (
	domFullMask = rangeMask(1, 31)
	dowFullMask = uint8(rangeMask(0, 6))
)

func rangeMask(lo, hi int) uint32 {
	var m uint32
	for v := lo; v <= hi; v++ {
		m |= 1 << uint(v)
	}
	return m
}

// next returns the earliest minute-aligned instant strictly after now
// that matches the expression, scanning forward minute by minute. Cron
// resolutions never need more than a few years of lookahead; this caps
// the scan at four years to guarantee termination on a field set with no
// possible match (e.g. Feb 30).
func (c *cronExpr) next(now time.Time) time.Time {
	t := now.Truncate(time.Minute).Add(time.Minute)
	limit := now.AddDate(4, 0, 0)
	for t.Before(limit) {
		if c.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return limit
}
