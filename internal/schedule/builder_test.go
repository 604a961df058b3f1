package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
)

func makeItems(instances []uuid.UUID, perInstance int, mode domain.SendingMode) []Item {
	var items []Item
	switch mode {
	case domain.SendingModeSeparate:
		for _, instanceID := range instances {
			for i := 0; i < perInstance; i++ {
				items = append(items, Item{ID: uuid.New(), InstanceID: instanceID})
			}
		}
	default:
		for i := 0; i < perInstance; i++ {
			items = append(items, Item{ID: uuid.New(), InstanceID: instances[i%len(instances)]})
		}
	}
	return items
}

func TestBuildTimestampsStrictlyIncreasePerQueue(t *testing.T) {
	instances := makeInstances(2)
	items := makeItems(instances, 5, domain.SendingModeSeparate)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	placed, err := Build(Input{
		Items:  items,
		Mode:   domain.SendingModeSeparate,
		Delay:  30 * time.Second,
		Now:    now,
		Policy: PolicyReschedule,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(placed) != len(items) {
		t.Fatalf("placed %d items, want %d", len(placed), len(items))
	}

	last := make(map[uuid.UUID]time.Time)
	for _, p := range placed {
		if prev, ok := last[p.InstanceID]; ok && !p.ScheduledFor.After(prev) {
			t.Fatalf("instance %s: %v not after %v", p.InstanceID, p.ScheduledFor, prev)
		}
		last[p.InstanceID] = p.ScheduledFor
	}
}

func TestBuildSeparateQueuesShareTheAnchor(t *testing.T) {
	instances := makeInstances(3)
	items := makeItems(instances, 2, domain.SendingModeSeparate)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	delay := 45 * time.Second

	placed, err := Build(Input{Items: items, Mode: domain.SendingModeSeparate, Delay: delay, Now: now, Policy: PolicyReschedule})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := make(map[uuid.UUID]time.Time)
	for _, p := range placed {
		if _, ok := first[p.InstanceID]; !ok {
			first[p.InstanceID] = p.ScheduledFor
		}
	}
	for instanceID, ts := range first {
		if !ts.Equal(now.Add(delay)) {
			t.Fatalf("instance %s first message at %v, want %v", instanceID, ts, now.Add(delay))
		}
	}
}

func TestBuildReschedulePushesIntoWindow(t *testing.T) {
	window := businessWeekWindow()
	instances := makeInstances(1)
	items := makeItems(instances, 4, domain.SendingModeSingle)

	// Ten minutes before close: only a few steps fit before the push.
	now := time.Date(2024, 1, 1, 17, 50, 0, 0, time.UTC)

	placed, err := Build(Input{
		Items:  items,
		Mode:   domain.SendingModeSingle,
		Delay:  4 * time.Minute,
		Now:    now,
		Window: window,
		Policy: PolicyReschedule,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, p := range placed {
		if !IsInWindow(window, p.ScheduledFor) {
			t.Fatalf("item %d scheduled at %v, outside the window", i, p.ScheduledFor)
		}
		if p.ExceptionNote != "" {
			t.Fatalf("item %d unexpectedly tagged with exception note", i)
		}
	}

	// The third candidate (18:02) falls past close and lands on Tuesday 09:04.
	want := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	if placed[2].ScheduledFor.Before(want) {
		t.Fatalf("item 2 scheduled at %v, want at or after %v", placed[2].ScheduledFor, want)
	}
}

func TestBuildExceptionKeepsTimestampsAndTags(t *testing.T) {
	window := businessWeekWindow()
	instances := makeInstances(1)
	items := makeItems(instances, 4, domain.SendingModeSingle)
	now := time.Date(2024, 1, 1, 17, 50, 0, 0, time.UTC)
	delay := 4 * time.Minute

	placed, err := Build(Input{
		Items:  items,
		Mode:   domain.SendingModeSingle,
		Delay:  delay,
		Now:    now,
		Window: window,
		Policy: PolicyException,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cursor := now
	tagged := 0
	for i, p := range placed {
		want := cursor.Add(delay)
		if !p.ScheduledFor.Equal(want) {
			t.Fatalf("item %d scheduled at %v, want %v (no pushes under exception)", i, p.ScheduledFor, want)
		}
		cursor = want
		if p.ExceptionNote != "" {
			tagged++
		}
	}
	if tagged != 2 {
		t.Fatalf("tagged %d items, want 2 (candidates past 18:00)", tagged)
	}
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	items := makeItems(makeInstances(1), 1, domain.SendingModeSingle)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	if _, err := Build(Input{Items: items, Delay: 30 * time.Second, Now: now, Policy: Policy("retry")}); err == nil {
		t.Fatal("expected error for unknown policy")
	}
	if _, err := Build(Input{Items: items, Delay: 0, Now: now, Policy: PolicyReschedule}); err == nil {
		t.Fatal("expected error for non-positive delay")
	}
}
