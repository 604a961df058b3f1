package schedule

import (
	"fmt"
	"time"

	"github.com/acme/broadcast-dispatch/internal/domain"
	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

// IsInWindow reports whether t falls inside one of the window's allowed
// rules. A nil or disabled window always allows.
func IsInWindow(w *domain.TimeWindow, t time.Time) bool {
	if w == nil || !w.Enabled {
		return true
	}

	minuteOfDay := t.Hour()*60 + t.Minute()
	weekday := t.Weekday()

	for _, rule := range w.Rules {
		if rule.EndMinute <= rule.StartMinute {
			// rule spans midnight
			nextDay := time.Weekday((int(rule.DayOfWeek) + 1) % 7)
			if rule.DayOfWeek == weekday && minuteOfDay >= rule.StartMinute {
				return true
			}
			if nextDay == weekday && minuteOfDay < rule.EndMinute {
				return true
			}
			continue
		}

		if rule.DayOfWeek != weekday {
			continue
		}

		if minuteOfDay >= rule.StartMinute && minuteOfDay < rule.EndMinute {
			return true
		}
	}

	return false
}

// NextWindowStart returns the smallest instant at or after t for which
// IsInWindow is true. The scan advances at most one week: an enabled
// window with no rules can never be satisfied and is rejected instead of
// looped on.
func NextWindowStart(w *domain.TimeWindow, t time.Time) (time.Time, error) {
	if w == nil || !w.Enabled {
		return t, nil
	}
	if len(w.Rules) == 0 {
		return time.Time{}, fmt.Errorf("%w: time window %q has no rules", apperrors.ErrValidation, w.Name)
	}
	if IsInWindow(w, t) {
		return t, nil
	}

	for day := 0; day <= 7; day++ {
		date := t.AddDate(0, 0, day)
		var earliest time.Time
		for _, rule := range w.Rules {
			if rule.DayOfWeek != date.Weekday() {
				continue
			}
			start := time.Date(date.Year(), date.Month(), date.Day(),
				rule.StartMinute/60, rule.StartMinute%60, 0, 0, t.Location())
			if start.Before(t) {
				continue
			}
			if earliest.IsZero() || start.Before(earliest) {
				earliest = start
			}
		}
		if !earliest.IsZero() {
			return earliest, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: time window %q never opens", apperrors.ErrValidation, w.Name)
}
