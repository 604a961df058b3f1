package schedule

import (
	"testing"
	"time"

	"github.com/acme/broadcast-dispatch/internal/domain"
)

func TestDetectNoWindowMeansNoConflicts(t *testing.T) {
	items := makeItems(makeInstances(1), 5, domain.SendingModeSingle)
	in := Input{
		Items:  items,
		Mode:   domain.SendingModeSingle,
		Delay:  30 * time.Second,
		Now:    time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC),
		Policy: PolicyReschedule,
	}

	summary, err := Detect(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalMessages != 5 || summary.MessagesOutOfWindow != 0 {
		t.Fatalf("summary = %+v, want 5 total and 0 out of window", summary)
	}
}

func TestDetectCountsAndFirstOffender(t *testing.T) {
	window := businessWeekWindow()
	items := makeItems(makeInstances(1), 4, domain.SendingModeSingle)
	now := time.Date(2024, 1, 1, 17, 50, 0, 0, time.UTC)

	in := Input{
		Items:  items,
		Mode:   domain.SendingModeSingle,
		Delay:  4 * time.Minute,
		Now:    now,
		Window: window,
		Policy: PolicyReschedule,
	}

	summary, err := Detect(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalMessages != 4 {
		t.Fatalf("total = %d, want 4", summary.TotalMessages)
	}
	if summary.MessagesOutOfWindow != 2 {
		t.Fatalf("out of window = %d, want 2", summary.MessagesOutOfWindow)
	}

	wantFirst := time.Date(2024, 1, 1, 18, 2, 0, 0, time.UTC)
	if !summary.FirstOutOfWindowTime.Equal(wantFirst) {
		t.Fatalf("first offender = %v, want %v", summary.FirstOutOfWindowTime, wantFirst)
	}

	wantNext := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	if !summary.NextWindowTime.Equal(wantNext) {
		t.Fatalf("next window = %v, want %v", summary.NextWindowTime, wantNext)
	}
}

func TestDetectMatchesExceptionCommit(t *testing.T) {
	window := businessWeekWindow()
	items := makeItems(makeInstances(2), 3, domain.SendingModeSeparate)
	now := time.Date(2024, 1, 1, 17, 55, 0, 0, time.UTC)

	in := Input{
		Items:  items,
		Mode:   domain.SendingModeSeparate,
		Delay:  3 * time.Minute,
		Now:    now,
		Window: window,
		Policy: PolicyReschedule,
	}

	summary, err := Detect(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	committed := in
	committed.Policy = PolicyException
	placed, err := Build(committed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tagged := 0
	for _, p := range placed {
		if p.ExceptionNote != "" {
			tagged++
		}
	}
	if tagged != summary.MessagesOutOfWindow {
		t.Fatalf("dry run counted %d, exception commit tagged %d", summary.MessagesOutOfWindow, tagged)
	}
}
