package schedule

import (
	"testing"
	"time"

	"github.com/acme/broadcast-dispatch/internal/domain"
)

func businessWeekWindow() *domain.TimeWindow {
	rules := make([]domain.WindowRule, 0, 5)
	for day := time.Monday; day <= time.Friday; day++ {
		rules = append(rules, domain.WindowRule{DayOfWeek: day, StartMinute: 9 * 60, EndMinute: 18 * 60})
	}
	return &domain.TimeWindow{Name: "business hours", Enabled: true, Rules: rules}
}

func TestIsInWindow(t *testing.T) {
	window := businessWeekWindow()

	mondayMorning := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !IsInWindow(window, mondayMorning) {
		t.Fatalf("expected %v to be inside the window", mondayMorning)
	}

	mondayNight := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	if IsInWindow(window, mondayNight) {
		t.Fatalf("expected %v to be outside the window", mondayNight)
	}

	saturday := time.Date(2024, 1, 6, 10, 0, 0, 0, time.UTC)
	if IsInWindow(window, saturday) {
		t.Fatalf("expected %v to be outside the window (weekend)", saturday)
	}
}

func TestIsInWindowDisabledAlwaysAllows(t *testing.T) {
	window := &domain.TimeWindow{Enabled: false}
	anyTime := time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC)
	if !IsInWindow(window, anyTime) {
		t.Fatal("disabled window must always allow")
	}
	if !IsInWindow(nil, anyTime) {
		t.Fatal("nil window must always allow")
	}
}

func TestIsInWindowSpanningMidnight(t *testing.T) {
	window := &domain.TimeWindow{
		Enabled: true,
		Rules:   []domain.WindowRule{{DayOfWeek: time.Monday, StartMinute: 22 * 60, EndMinute: 2 * 60}},
	}

	night := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	if !IsInWindow(window, night) {
		t.Fatalf("expected %v inside cross-midnight rule", night)
	}

	earlyTuesday := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)
	if !IsInWindow(window, earlyTuesday) {
		t.Fatalf("expected %v inside cross-midnight rule", earlyTuesday)
	}

	tuesdayNoon := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	if IsInWindow(window, tuesdayNoon) {
		t.Fatalf("expected %v outside cross-midnight rule", tuesdayNoon)
	}
}

func TestNextWindowStartSameDay(t *testing.T) {
	window := businessWeekWindow()

	mondayDawn := time.Date(2024, 1, 1, 7, 30, 0, 0, time.UTC)
	next, err := NextWindowStart(window, mondayDawn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next start = %v, want %v", next, want)
	}
}

func TestNextWindowStartInsideReturnsInput(t *testing.T) {
	window := businessWeekWindow()

	inside := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	next, err := NextWindowStart(window, inside)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(inside) {
		t.Fatalf("in-window instant must be returned unchanged, got %v", next)
	}
}

func TestNextWindowStartWrapsAroundWeek(t *testing.T) {
	window := &domain.TimeWindow{
		Enabled: true,
		Rules:   []domain.WindowRule{{DayOfWeek: time.Monday, StartMinute: 9 * 60, EndMinute: 10 * 60}},
	}

	// Tuesday 08:00: the only opening left is next Monday, six days out.
	tuesday := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	next, err := NextWindowStart(window, tuesday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next start = %v, want %v", next, want)
	}
}

func TestNextWindowStartRejectsEmptyRules(t *testing.T) {
	window := &domain.TimeWindow{Name: "empty", Enabled: true}
	if _, err := NextWindowStart(window, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expected configuration error for window without rules")
	}
}
