// Package slots generates the candidate start times for one professional's
// calendar day and decides whether intervals collide with existing bookings.
package slots

import "time"

// Slot is one bookable start time. End is Start plus the service duration.
type Slot struct {
	Start  time.Time
	End    time.Time
	IsPeak bool
}

// Interval is a half-open busy window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Peak window: weekdays 18:00-20:00 local time. Fixed, not configurable.
const (
	peakStartHour = 18
	peakEndHour   = 20
)

// IsPeak reports whether t falls in the peak-demand window
// (Monday-Friday, local hour in [18,20)).
func IsPeak(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return t.Hour() >= peakStartHour && t.Hour() < peakEndHour
}

// Overlaps reports whether [start, end) intersects any busy interval.
// Half-open intervals: [a,b) overlaps [c,d) iff a < d && c < b.
func Overlaps(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

// Generate returns the free slots for the calendar day of `day`, stepping
// from the business-open minute in fixed increments. A candidate is included
// only if it starts strictly before the close minute; the close boundary is
// exclusive. Candidates at or before `now` and candidates overlapping a busy
// interval are dropped. The result is ascending by start time.
func Generate(day time.Time, openMinute, closeMinute int, duration, step time.Duration, busy []Interval, now time.Time) []Slot {
	if duration <= 0 || step <= 0 || closeMinute <= openMinute {
		return nil
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	open := midnight.Add(time.Duration(openMinute) * time.Minute)
	close := midnight.Add(time.Duration(closeMinute) * time.Minute)

	var out []Slot
	for t := open; t.Before(close); t = t.Add(step) {
		if !t.After(now) {
			continue
		}
		end := t.Add(duration)
		if Overlaps(t, end, busy) {
			continue
		}
		out = append(out, Slot{Start: t, End: end, IsPeak: IsPeak(t)})
	}
	return out
}
