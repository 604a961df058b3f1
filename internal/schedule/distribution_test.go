package schedule

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
)

func makeContacts(n int) []Contact {
	contacts := make([]Contact, 0, n)
	for i := 0; i < n; i++ {
		contacts = append(contacts, Contact{Phone: fmt.Sprintf("+1555000%04d", i), Name: fmt.Sprintf("contact-%d", i)})
	}
	return contacts
}

func makeInstances(n int) []uuid.UUID {
	instances := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		instances = append(instances, uuid.New())
	}
	return instances
}

func TestPlanSingleAssignsEverythingToFirstInstance(t *testing.T) {
	contacts := makeContacts(4)
	instances := makeInstances(2)

	plan, err := Plan(contacts, instances, domain.SendingModeSingle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 4 {
		t.Fatalf("plan length = %d, want 4", len(plan))
	}
	for i, a := range plan {
		if a.InstanceID != instances[0] {
			t.Fatalf("pair %d assigned to %s, want first instance", i, a.InstanceID)
		}
		if a.Contact != contacts[i] || a.Index != i {
			t.Fatalf("pair %d does not preserve contact order", i)
		}
	}
}

func TestPlanRotateBalancesRemainderToEarliestInstances(t *testing.T) {
	contacts := makeContacts(10)
	instances := makeInstances(3)

	plan, err := Plan(contacts, instances, domain.SendingModeRotate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := make(map[uuid.UUID]int)
	for _, a := range plan {
		counts[a.InstanceID]++
	}
	if counts[instances[0]] != 4 || counts[instances[1]] != 3 || counts[instances[2]] != 3 {
		t.Fatalf("rotate distribution = %d/%d/%d, want 4/3/3",
			counts[instances[0]], counts[instances[1]], counts[instances[2]])
	}
}

func TestPlanSeparateFansOutFullListPerInstance(t *testing.T) {
	contacts := makeContacts(3)
	instances := makeInstances(2)

	plan, err := Plan(contacts, instances, domain.SendingModeSeparate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 6 {
		t.Fatalf("plan length = %d, want 6", len(plan))
	}

	// Instance-major groups, original contact order inside each group.
	for g, instanceID := range instances {
		for i := 0; i < 3; i++ {
			a := plan[g*3+i]
			if a.InstanceID != instanceID {
				t.Fatalf("pair %d assigned to %s, want instance %d", g*3+i, a.InstanceID, g)
			}
			if a.Contact != contacts[i] || a.Index != i {
				t.Fatalf("pair %d does not preserve contact order", g*3+i)
			}
		}
	}
}

func TestPlanIsIdempotent(t *testing.T) {
	contacts := makeContacts(7)
	instances := makeInstances(3)

	for _, mode := range []domain.SendingMode{domain.SendingModeSingle, domain.SendingModeRotate, domain.SendingModeSeparate} {
		first, err := Plan(contacts, instances, mode)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", mode, err)
		}
		second, err := Plan(contacts, instances, mode)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", mode, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("%s: planning the same input twice produced different pair lists", mode)
		}
	}
}

func TestPlanRejectsBadInput(t *testing.T) {
	if _, err := Plan(makeContacts(2), nil, domain.SendingModeSingle); err == nil {
		t.Fatal("expected error for empty instance list")
	}
	if _, err := Plan(makeContacts(2), makeInstances(1), domain.SendingMode("broadcast")); err == nil {
		t.Fatal("expected error for unknown sending mode")
	}
}
