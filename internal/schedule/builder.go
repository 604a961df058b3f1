package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

// Policy selects how the builder treats candidates that fall outside the
// active window.
type Policy string

const (
	// PolicyReschedule pushes out-of-window candidates to the next window opening.
	PolicyReschedule Policy = "reschedule"
	// PolicyException keeps out-of-window timestamps and tags the item.
	PolicyException Policy = "exception"
	// PolicyEdit runs the reschedule walk after the caller replaced the
	// campaign's delay bounds.
	PolicyEdit Policy = "edit"
)

// Valid reports whether the policy is one of the known values.
func (p Policy) Valid() bool {
	switch p {
	case PolicyReschedule, PolicyException, PolicyEdit:
		return true
	}
	return false
}

// ExceptionNote marks an item deliberately scheduled outside the window.
const ExceptionNote = "sent with exception to the sending window"

// Item is one message to place on the timeline.
type Item struct {
	ID         uuid.UUID
	InstanceID uuid.UUID
}

// Placed is an Item with its computed scheduled_for timestamp.
type Placed struct {
	ID            uuid.UUID
	InstanceID    uuid.UUID
	ScheduledFor  time.Time
	ExceptionNote string
}

// Input carries everything a schedule computation depends on. Now is
// explicit so a dry run and the commit that follows it agree bit for bit.
type Input struct {
	Items  []Item
	Mode   domain.SendingMode
	Delay  time.Duration
	Now    time.Time
	Window *domain.TimeWindow
	Policy Policy
}

// Build computes scheduled_for for every item. In single and rotate modes
// all items form one queue; in separate mode each instance walks its own
// queue anchored at the same Now. Within one queue timestamps are strictly
// increasing: every step adds at least Delay, more when pushed to the next
// window opening.
func Build(in Input) ([]Placed, error) {
	if !in.Policy.Valid() {
		return nil, fmt.Errorf("%w: unknown conflict policy %q", apperrors.ErrValidation, in.Policy)
	}
	if in.Delay <= 0 {
		return nil, fmt.Errorf("%w: scheduling delay must be positive", apperrors.ErrValidation)
	}

	out := make([]Placed, 0, len(in.Items))
	for _, queue := range splitQueues(in.Items, in.Mode) {
		placed, err := walkQueue(queue, in)
		if err != nil {
			return nil, err
		}
		out = append(out, placed...)
	}
	return out, nil
}

// queueState is the accumulator threaded through one queue walk.
type queueState struct {
	cursor time.Time
	placed []Placed
}

func walkQueue(items []Item, in Input) ([]Placed, error) {
	state := queueState{cursor: in.Now, placed: make([]Placed, 0, len(items))}
	for _, item := range items {
		next, err := placeItem(state, item, in)
		if err != nil {
			return nil, err
		}
		state = next
	}
	return state.placed, nil
}

// placeItem is the reducer for a single step: compute the candidate from
// the cursor, resolve it against the window per policy, emit it and
// advance the cursor to the emitted timestamp.
func placeItem(state queueState, item Item, in Input) (queueState, error) {
	candidate := state.cursor.Add(in.Delay)
	placed := Placed{ID: item.ID, InstanceID: item.InstanceID, ScheduledFor: candidate}

	if windowActive(in.Window) && !IsInWindow(in.Window, candidate) {
		if in.Policy == PolicyException {
			placed.ExceptionNote = ExceptionNote
		} else {
			pushed, err := NextWindowStart(in.Window, candidate)
			if err != nil {
				return queueState{}, err
			}
			placed.ScheduledFor = pushed
		}
	}

	state.cursor = placed.ScheduledFor
	state.placed = append(state.placed, placed)
	return state, nil
}

// splitQueues groups items into independently-timed queues. Grouping
// preserves first-seen instance order and input order within a group.
func splitQueues(items []Item, mode domain.SendingMode) [][]Item {
	if mode != domain.SendingModeSeparate {
		return [][]Item{items}
	}

	var order []uuid.UUID
	byInstance := make(map[uuid.UUID][]Item)
	for _, item := range items {
		if _, seen := byInstance[item.InstanceID]; !seen {
			order = append(order, item.InstanceID)
		}
		byInstance[item.InstanceID] = append(byInstance[item.InstanceID], item)
	}

	queues := make([][]Item, 0, len(order))
	for _, id := range order {
		queues = append(queues, byInstance[id])
	}
	return queues
}

func windowActive(w *domain.TimeWindow) bool {
	return w != nil && w.Enabled
}
