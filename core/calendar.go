package core

import (
	"fmt"
	"time"

	"github.com/shipmetrics/prism/schema"
)

// Calendar is the bucketing policy for temporal dimensions: Monday-first
// weeks following the ISO minimum-4-days-in-first-week convention, and
// quarters as 3-month groups. It is an explicit value rather than ambient
// state so tests can pin the location.
type Calendar struct {
	Loc *time.Location
}

// DefaultCalendar buckets in UTC.
func DefaultCalendar() Calendar {
	return Calendar{Loc: time.UTC}
}

func (c Calendar) location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// BucketStart truncates t to the start of its bucket for the given interval.
func (c Calendar) BucketStart(t time.Time, iv schema.Interval) time.Time {
	t = t.In(c.location())
	y, m, d := t.Date()
	switch iv {
	case schema.WeekInterval:
		// Monday-first: back up to the most recent Monday.
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return time.Date(y, m, d-(wd-1), 0, 0, 0, 0, c.location())
	case schema.MonthInterval:
		return time.Date(y, m, 1, 0, 0, 0, 0, c.location())
	case schema.QuarterInterval:
		qm := time.Month(((int(m)-1)/3)*3 + 1)
		return time.Date(y, qm, 1, 0, 0, 0, 0, c.location())
	case schema.YearInterval:
		return time.Date(y, 1, 1, 0, 0, 0, 0, c.location())
	default: // day
		return time.Date(y, m, d, 0, 0, 0, 0, c.location())
	}
}

// Label formats the calendar bucket containing t for display.
func (c Calendar) Label(t time.Time, iv schema.Interval) string {
	t = t.In(c.location())
	switch iv {
	case schema.WeekInterval:
		// ISOWeek applies the minimum-4-days rule, so the year may differ
		// from the civil year at the January boundary.
		y, w := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case schema.MonthInterval:
		return t.Format("2006-01")
	case schema.QuarterInterval:
		q := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%d-Q%d", t.Year(), q)
	case schema.YearInterval:
		return t.Format("2006")
	default: // day
		return t.Format("2006-01-02")
	}
}
