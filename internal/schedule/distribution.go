package schedule

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

// Contact is one validated recipient handed over by the contact pipeline.
type Contact struct {
	Phone string
	Name  string
}

// Assignment pairs a contact with the instance that will send to it.
// Index is the contact's position in the planner input, kept so callers
// can join planner output back to per-contact payloads without inferring
// the mapping from output shape.
type Assignment struct {
	Contact    Contact
	InstanceID uuid.UUID
	Index      int
}

// Plan maps contacts onto instances according to the sending mode.
// Output ordering is a pure function of input ordering: within each
// instance group the original contact order is preserved, so planning the
// same input twice yields an identical pair list.
func Plan(contacts []Contact, instances []uuid.UUID, mode domain.SendingMode) ([]Assignment, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: at least one sending instance is required", apperrors.ErrValidation)
	}

	switch mode {
	case domain.SendingModeSingle:
		out := make([]Assignment, 0, len(contacts))
		for i, c := range contacts {
			out = append(out, Assignment{Contact: c, InstanceID: instances[0], Index: i})
		}
		return out, nil

	case domain.SendingModeRotate:
		out := make([]Assignment, 0, len(contacts))
		for i, c := range contacts {
			out = append(out, Assignment{Contact: c, InstanceID: instances[i%len(instances)], Index: i})
		}
		return out, nil

	case domain.SendingModeSeparate:
		out := make([]Assignment, 0, len(contacts)*len(instances))
		for _, instanceID := range instances {
			for i, c := range contacts {
				out = append(out, Assignment{Contact: c, InstanceID: instanceID, Index: i})
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown sending mode %q", apperrors.ErrValidation, mode)
	}
}
