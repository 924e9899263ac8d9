// Package briefing materializes per-user reports: it decides when a
// briefing is due in its own timezone and turns the top-scored items
// since the previous run into a report.
package briefing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/briefmill/briefmill/internal/models"
)

// Due reports whether the briefing should run at the given instant.
// All comparisons happen in the briefing's own timezone: the local
// delivery time must have passed today, the previous run must be from
// an earlier local day, and a weekly briefing must be on its configured
// weekday. An unknown timezone or a malformed local time is an error;
// the scheduler logs it and skips the briefing.
func Due(b models.Briefing, now time.Time) (bool, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return false, fmt.Errorf("load timezone %q: %w", b.Timezone, err)
	}

	hour, minute, err := parseLocalTime(b.LocalTime)
	if err != nil {
		return false, err
	}

	userNow := now.In(loc)

	if b.Frequency == models.FrequencyWeekly {
		weekday, ok := b.Weekday()
		if !ok {
			return false, fmt.Errorf("weekly briefing without a valid day of week: %q", b.DayOfWeek)
		}
		if userNow.Weekday() != weekday {
			return false, nil
		}
	}

	scheduled := time.Date(userNow.Year(), userNow.Month(), userNow.Day(), hour, minute, 0, 0, loc)
	if userNow.Before(scheduled) {
		return false, nil
	}

	if RanToday(b, now) {
		return false, nil
	}

	return true, nil
}

// RanToday reports whether the briefing's previous run happened on the
// current local day. The manual trigger uses it too, so one report per
// briefing per local day holds no matter how a run starts. An unknown
// timezone falls back to UTC rather than letting the check pass.
func RanToday(b models.Briefing, now time.Time) bool {
	if b.LastExecutedAt == nil {
		return false
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		loc = time.UTC
	}
	userNow := now.In(loc)
	return !b.LastExecutedAt.In(loc).Before(startOfDay(userNow))
}

// SinceWindow returns the lower bound for item selection: the previous
// run when there was one, otherwise one schedule period before the
// start of the user's current day.
func SinceWindow(b models.Briefing, now time.Time) time.Time {
	if b.LastExecutedAt != nil {
		return *b.LastExecutedAt
	}

	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		loc = time.UTC
	}
	start := startOfDay(now.In(loc))

	period := 24 * time.Hour
	if b.Frequency == models.FrequencyWeekly {
		period = 7 * 24 * time.Hour
	}
	return start.Add(-period)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseLocalTime(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed local time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed local time %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("malformed local time %q", s)
	}
	return hour, minute, nil
}
