package schedule

import (
	"testing"
	"time"
)

func TestRepresentativeDelayIsArithmeticMean(t *testing.T) {
	delay, err := RepresentativeDelay(20, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delay != 30*time.Second {
		t.Fatalf("delay = %v, want 30s", delay)
	}

	delay, err = RepresentativeDelay(15, 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delay != 15*time.Second {
		t.Fatalf("delay = %v, want 15s", delay)
	}
}

func TestRepresentativeDelayRejectsBadBounds(t *testing.T) {
	if _, err := RepresentativeDelay(5, 40); err == nil {
		t.Fatal("expected error for min below the floor")
	}
	if _, err := RepresentativeDelay(60, 30); err == nil {
		t.Fatal("expected error for min greater than max")
	}
}
