package schedule

import (
	"fmt"
	"time"

	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

// MinDelayFloor is the smallest configurable per-message delay in seconds.
const MinDelayFloor = 10

// RepresentativeDelay converts the configured delay range into the single
// deterministic increment used for every scheduling step. The arithmetic
// mean replaces per-message random sampling so the preview an operator
// commits to matches the committed schedule exactly.
func RepresentativeDelay(minSeconds, maxSeconds int) (time.Duration, error) {
	if minSeconds < MinDelayFloor {
		return 0, fmt.Errorf("%w: min delay %ds is below the %ds floor", apperrors.ErrValidation, minSeconds, MinDelayFloor)
	}
	if minSeconds > maxSeconds {
		return 0, fmt.Errorf("%w: min delay %ds exceeds max delay %ds", apperrors.ErrValidation, minSeconds, maxSeconds)
	}
	return time.Duration(minSeconds+maxSeconds) * time.Second / 2, nil
}
