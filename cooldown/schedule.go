package cooldown

import "time"

// Calendar presets reset at midnight in UTC+8 regardless of host timezone:
// the configured windows are Beijing-calendar day/week/month resets.
var beijing = time.FixedZone("UTC+8", 8*60*60)

// hoursGrace is added to hour-count rules so a backend is not retried at the
// exact instant its upstream window rolls over.
const hoursGrace = 3 * time.Minute

// NextUnblock computes when a backend becomes eligible again after a
// rate-limit signal, given its configured rule, the record's existing
// unblock time (nil if none), and the current time.
//
// Preset windows are monotonic: the result is strictly after
// max(now, existing), so repeated rate-limit signals inside one window never
// shorten an active cooldown. Hour- and day-count rules are measured from now
// directly and ignore the existing unblock time.
func NextUnblock(rule Rule, existing *time.Time, now time.Time) time.Time {
	floor := now
	if existing != nil && existing.After(floor) {
		floor = *existing
	}

	switch rule.Kind {
	case KindHours:
		n := rule.Hours
		if n <= 0 {
			n = 1
		}
		return now.Add(time.Duration(n)*time.Hour + hoursGrace)
	case KindDays:
		n := rule.Days
		if n <= 0 {
			n = 1
		}
		return now.Add(time.Duration(n) * 24 * time.Hour)
	case KindPreset:
		switch rule.Preset {
		case PresetWeek:
			return nextWeekStart(floor)
		case PresetMonth:
			return nextMonthStart(floor)
		}
		return nextDayStart(floor)
	default:
		return nextDayStart(floor)
	}
}

// nextDayStart returns the first UTC+8 midnight strictly after t. When t is
// itself exactly a midnight boundary, the following midnight is returned.
func nextDayStart(t time.Time) time.Time {
	d := t.In(beijing)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, beijing).AddDate(0, 0, 1)
}

// nextWeekStart returns the first UTC+8 Monday midnight strictly after t.
func nextWeekStart(t time.Time) time.Time {
	m := nextDayStart(t)
	for m.In(beijing).Weekday() != time.Monday {
		m = m.AddDate(0, 0, 1)
	}
	return m
}

// nextMonthStart returns the first first-of-month UTC+8 midnight strictly
// after t.
func nextMonthStart(t time.Time) time.Time {
	m := nextDayStart(t)
	if m.In(beijing).Day() == 1 {
		return m
	}
	d := m.In(beijing)
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, beijing).AddDate(0, 1, 0)
}
