package schedule

import "time"

// Summary reports what a schedule commit would do to the active window,
// computed before anything is persisted.
type Summary struct {
	TotalMessages        int
	MessagesOutOfWindow  int
	FirstOutOfWindowTime time.Time
	NextWindowTime       time.Time
}

// Detect dry-runs the builder walk and counts the candidates that would
// land outside the active window. Candidates are evaluated along the
// un-pushed cursor chain, so the count equals the number of items an
// exception-policy commit of the same input would tag, and
// FirstOutOfWindowTime is the first raw candidate under either policy.
func Detect(in Input) (Summary, error) {
	summary := Summary{TotalMessages: len(in.Items)}
	if !windowActive(in.Window) {
		return summary, nil
	}

	probe := in
	probe.Policy = PolicyException
	placed, err := Build(probe)
	if err != nil {
		return Summary{}, err
	}

	for _, p := range placed {
		if p.ExceptionNote == "" {
			continue
		}
		summary.MessagesOutOfWindow++
		if summary.FirstOutOfWindowTime.IsZero() || p.ScheduledFor.Before(summary.FirstOutOfWindowTime) {
			summary.FirstOutOfWindowTime = p.ScheduledFor
		}
	}

	if summary.MessagesOutOfWindow > 0 {
		next, err := NextWindowStart(in.Window, summary.FirstOutOfWindowTime)
		if err != nil {
			return Summary{}, err
		}
		summary.NextWindowTime = next
	}

	return summary, nil
}
