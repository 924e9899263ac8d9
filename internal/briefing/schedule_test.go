package briefing

import (
	"testing"
	"time"

	"github.com/briefmill/briefmill/internal/models"
)

func dailyBriefing(tz, localTime string) models.Briefing {
	return models.Briefing{
		ID:        "b1",
		UserID:    "u1",
		Frequency: models.FrequencyDaily,
		LocalTime: localTime,
		Timezone:  tz,
		Status:    models.BriefingStatusActive,
	}
}

func TestDueDaily(t *testing.T) {
	b := dailyBriefing("America/New_York", "07:00")

	// 13:00 UTC is 08:00 EST on a March weekday: past delivery time.
	now := time.Date(2026, 3, 3, 13, 0, 0, 0, time.UTC)
	due, err := Due(b, now)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	if !due {
		t.Error("Due() = false, want true after local delivery time")
	}

	// 10:00 UTC is 05:00 EST: before delivery time.
	early := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	due, err = Due(b, early)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	if due {
		t.Error("Due() = true, want false before local delivery time")
	}
}

func TestDueSkipsWhenAlreadyRanToday(t *testing.T) {
	b := dailyBriefing("America/New_York", "07:00")
	ranToday := time.Date(2026, 3, 3, 12, 15, 0, 0, time.UTC) // 07:15 EST
	b.LastExecutedAt = &ranToday

	now := time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC)
	due, err := Due(b, now)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	if due {
		t.Error("Due() = true, want false when the run already happened today")
	}

	// The previous local day does not count.
	ranYesterday := time.Date(2026, 3, 2, 12, 15, 0, 0, time.UTC)
	b.LastExecutedAt = &ranYesterday
	due, err = Due(b, now)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	if !due {
		t.Error("Due() = false, want true when the last run was yesterday")
	}
}

func TestRanToday(t *testing.T) {
	b := dailyBriefing("America/New_York", "07:00")
	now := time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC) // 15:00 EST

	if RanToday(b, now) {
		t.Error("RanToday() = true, want false with no previous run")
	}

	ranToday := time.Date(2026, 3, 3, 12, 15, 0, 0, time.UTC) // 07:15 EST
	b.LastExecutedAt = &ranToday
	if !RanToday(b, now) {
		t.Error("RanToday() = false, want true for a run earlier today")
	}

	ranYesterday := time.Date(2026, 3, 2, 12, 15, 0, 0, time.UTC)
	b.LastExecutedAt = &ranYesterday
	if RanToday(b, now) {
		t.Error("RanToday() = true, want false for yesterday's run")
	}

	// 03:00 UTC on the 4th is still the evening of the 3rd in New York.
	lateLocal := time.Date(2026, 3, 4, 3, 0, 0, 0, time.UTC)
	b.LastExecutedAt = &ranToday
	if !RanToday(b, lateLocal) {
		t.Error("RanToday() = false, want true while the local day continues")
	}

	// An unusable timezone falls back to UTC instead of letting the
	// check pass.
	b.Timezone = "Mars/Olympus"
	if !RanToday(b, now) {
		t.Error("RanToday() = false, want true under the UTC fallback")
	}
}

func TestDueWeekly(t *testing.T) {
	b := dailyBriefing("UTC", "08:00")
	b.Frequency = models.FrequencyWeekly
	b.DayOfWeek = "TUESDAY"

	tuesday := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	due, err := Due(b, tuesday)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	if !due {
		t.Error("Due() = false, want true on the configured weekday")
	}

	wednesday := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	due, err = Due(b, wednesday)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	if due {
		t.Error("Due() = true, want false on another weekday")
	}
}

func TestDueWeeklyWithoutWeekdayIsError(t *testing.T) {
	b := dailyBriefing("UTC", "08:00")
	b.Frequency = models.FrequencyWeekly
	b.DayOfWeek = ""

	if _, err := Due(b, time.Now()); err == nil {
		t.Error("Due() error = nil, want error for weekly briefing without weekday")
	}
}

func TestDueRejectsBadSchedule(t *testing.T) {
	bad := dailyBriefing("Mars/Olympus", "08:00")
	if _, err := Due(bad, time.Now()); err == nil {
		t.Error("Due() error = nil, want error for unknown timezone")
	}

	for _, localTime := range []string{"", "8", "25:00", "08:99", "noon"} {
		b := dailyBriefing("UTC", localTime)
		if _, err := Due(b, time.Now()); err == nil {
			t.Errorf("Due() error = nil for local time %q, want error", localTime)
		}
	}
}

func TestSinceWindow(t *testing.T) {
	now := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)

	b := dailyBriefing("UTC", "08:00")
	last := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	b.LastExecutedAt = &last
	if got := SinceWindow(b, now); !got.Equal(last) {
		t.Errorf("SinceWindow() = %v, want previous run %v", got, last)
	}

	// No previous run: one period before the start of the current day.
	b.LastExecutedAt = nil
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if got := SinceWindow(b, now); !got.Equal(want) {
		t.Errorf("SinceWindow() = %v, want %v", got, want)
	}

	b.Frequency = models.FrequencyWeekly
	want = time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC)
	if got := SinceWindow(b, now); !got.Equal(want) {
		t.Errorf("SinceWindow() weekly = %v, want %v", got, want)
	}
}
