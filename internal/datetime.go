package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lychee-technology/prism"
)

// resolvedRange is an inclusive [Start, End] time range at millisecond
// precision; End points at the last instant inside the range.
type resolvedRange struct {
	Start time.Time
	End   time.Time
}

func (r resolvedRange) length() time.Duration {
	return r.End.Sub(r.Start) + time.Millisecond
}

// priorPeriod returns the immediately preceding range of equal duration: it
// ends one millisecond before Start and spans the range's own length.
func priorPeriod(r resolvedRange) resolvedRange {
	return resolvedRange{
		Start: r.Start.Add(-r.length()),
		End:   r.Start.Add(-time.Millisecond),
	}
}

var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDateRange normalizes a wire date range: a literal [start, end] pair,
// a single absolute date, or a named range resolved against now. End dates
// are inclusive and expand to the end of their unit.
func parseDateRange(v prism.DateRange, now time.Time) (resolvedRange, error) {
	switch raw := v.(type) {
	case nil:
		return resolvedRange{}, fmt.Errorf("empty date range")
	case string:
		return parseNamedOrSingle(raw, now)
	case []string:
		anyVals := make([]any, len(raw))
		for i, s := range raw {
			anyVals[i] = s
		}
		return parsePair(anyVals, now)
	case []any:
		return parsePair(raw, now)
	default:
		return resolvedRange{}, fmt.Errorf("unsupported date range value %T", v)
	}
}

func parsePair(vals []any, now time.Time) (resolvedRange, error) {
	if len(vals) != 2 {
		return resolvedRange{}, fmt.Errorf("date range pair must have 2 elements, got %d", len(vals))
	}
	start, startDateOnly, err := parseDateValue(vals[0], now.Location())
	if err != nil {
		return resolvedRange{}, err
	}
	end, endDateOnly, err := parseDateValue(vals[1], now.Location())
	if err != nil {
		return resolvedRange{}, err
	}
	_ = startDateOnly
	if endDateOnly {
		end = endOfDay(end)
	}
	if end.Before(start) {
		return resolvedRange{}, fmt.Errorf("date range end precedes start")
	}
	return resolvedRange{Start: start, End: end}, nil
}

func parseDateValue(v any, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false, fmt.Errorf("date range element must be a string, got %T", v)
	}
	for _, layout := range dateLayouts {
		parsed, perr := time.ParseInLocation(layout, s, loc)
		if perr == nil {
			return parsed, layout == "2006-01-02", nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unparseable date '%s'", s)
}

// parseNamedOrSingle handles named ranges ("today", "last 30 days",
// "this month", ...) and single absolute dates (the whole day).
func parseNamedOrSingle(s string, now time.Time) (resolvedRange, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	switch name {
	case "today":
		return unitRange(now, "day", 0, 0), nil
	case "yesterday":
		return unitRange(now, "day", -1, -1), nil
	case "tomorrow":
		return unitRange(now, "day", 1, 1), nil
	}

	fields := strings.Fields(name)
	switch {
	case len(fields) == 2 && (fields[0] == "this" || fields[0] == "last" || fields[0] == "next"):
		unit, err := normalizeUnit(fields[1])
		if err != nil {
			return resolvedRange{}, err
		}
		switch fields[0] {
		case "this":
			return unitRange(now, unit, 0, 0), nil
		case "last":
			return unitRange(now, unit, -1, -1), nil
		default:
			return unitRange(now, unit, 1, 1), nil
		}

	case len(fields) == 3 && (fields[0] == "last" || fields[0] == "next"):
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return resolvedRange{}, fmt.Errorf("invalid range count in '%s'", s)
		}
		unit, err := normalizeUnit(fields[2])
		if err != nil {
			return resolvedRange{}, err
		}
		if fields[0] == "last" {
			// The current unit and the n-1 preceding ones.
			return unitRange(now, unit, -(n - 1), 0), nil
		}
		return unitRange(now, unit, 1, n), nil
	}

	// A single absolute date covers that whole day.
	t, dateOnly, err := parseDateValue(s, now.Location())
	if err != nil {
		return resolvedRange{}, fmt.Errorf("unrecognized date range '%s'", s)
	}
	if dateOnly {
		return resolvedRange{Start: t, End: endOfDay(t)}, nil
	}
	return resolvedRange{Start: t, End: t}, nil
}

func normalizeUnit(u string) (string, error) {
	u = strings.TrimSuffix(u, "s")
	switch u {
	case "day", "week", "month", "quarter", "year":
		return u, nil
	default:
		return "", fmt.Errorf("unknown date range unit '%s'", u)
	}
}

// unitRange builds the inclusive range spanning units [now+fromOffset,
// now+toOffset] of the given unit.
func unitRange(now time.Time, unit string, fromOffset, toOffset int) resolvedRange {
	start := startOfUnit(addUnits(now, unit, fromOffset), unit)
	endStart := startOfUnit(addUnits(now, unit, toOffset), unit)
	end := addUnits(endStart, unit, 1).Add(-time.Millisecond)
	return resolvedRange{Start: start, End: end}
}

func startOfUnit(t time.Time, unit string) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch unit {
	case "day":
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case "week":
		// ISO week starting Monday.
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case "month":
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case "quarter":
		qm := time.Month(((int(m)-1)/3)*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, loc)
	case "year":
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc)
	}
	return t
}

func addUnits(t time.Time, unit string, n int) time.Time {
	switch unit {
	case "day":
		return t.AddDate(0, 0, n)
	case "week":
		return t.AddDate(0, 0, 7*n)
	case "month":
		return t.AddDate(0, n, 0)
	case "quarter":
		return t.AddDate(0, 3*n, 0)
	case "year":
		return t.AddDate(n, 0, 0)
	}
	return t
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).
		AddDate(0, 0, 1).Add(-time.Millisecond)
}

// rangePredicate builds `expr >= start AND expr <= end` with both bounds
// bound as parameters in the dialect's preferred time representation.
func rangePredicate(d Dialect, expr fragment, r resolvedRange) fragment {
	return fragf("%s >= %s AND %s <= %s",
		expr, bind(d.TimeValue(r.Start)), expr, bind(d.TimeValue(r.End)))
}
