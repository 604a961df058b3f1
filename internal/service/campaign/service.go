package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
	"github.com/acme/broadcast-dispatch/internal/repository"
	"github.com/acme/broadcast-dispatch/internal/schedule"
	"github.com/acme/broadcast-dispatch/internal/service/common"
	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

// Service orchestrates campaign lifecycle operations: creation, schedule
// preview, the start transition that commits the schedule, and the
// pause/resume/cancel/complete transitions.
type Service struct {
	campaigns   repository.CampaignRepository
	windows     repository.TimeWindowRepository
	instances   repository.InstanceRepository
	items       repository.QueueItemRepository
	stats       repository.StatisticsRepository
	deliveryLog repository.DeliveryLogStore
	clock       schedule.Clock
	batchSize   int
	batchPause  time.Duration
}

// NewService constructs a campaign service.
func NewService(
	campaigns repository.CampaignRepository,
	windows repository.TimeWindowRepository,
	instances repository.InstanceRepository,
	items repository.QueueItemRepository,
	stats repository.StatisticsRepository,
	deliveryLog repository.DeliveryLogStore,
	clock schedule.Clock,
	batchSize int,
	batchPause time.Duration,
) *Service {
	if clock == nil {
		clock = schedule.SystemClock()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Service{
		campaigns:   campaigns,
		windows:     windows,
		instances:   instances,
		items:       items,
		stats:       stats,
		deliveryLog: deliveryLog,
		clock:       clock,
		batchSize:   batchSize,
		batchPause:  batchPause,
	}
}

// ContactInput is one recipient with its rendered message body.
type ContactInput struct {
	Phone string
	Name  string
	Body  string
}

// CreateCampaignInput captures campaign creation parameters.
type CreateCampaignInput struct {
	OrganizationID  uuid.UUID
	Name            string
	SendingMode     domain.SendingMode
	MinDelaySeconds int
	MaxDelaySeconds int
	InstanceIDs     []uuid.UUID
	Contacts        []ContactInput
}

// StartInput captures the start transition parameters. Policy decides what
// happens to messages that would land outside the sending window; the delay
// overrides apply only under the edit policy.
type StartInput struct {
	CampaignID      uuid.UUID
	Policy          schedule.Policy
	MinDelaySeconds *int
	MaxDelaySeconds *int
}

// PartialScheduleError reports a schedule commit that persisted some
// batches but not all. The campaign stays in draft so the operator can
// retry the start.
type PartialScheduleError struct {
	Failed int
	Total  int
	Err    error
}

func (e *PartialScheduleError) Error() string {
	return fmt.Sprintf("schedule commit incomplete: %d of %d messages not persisted: %v", e.Failed, e.Total, e.Err)
}

func (e *PartialScheduleError) Unwrap() error {
	return e.Err
}

// Create provisions a draft campaign and materializes its queue: contacts
// are planned onto instances immediately, one pending queue item per
// assignment, so Start only has to compute timestamps.
func (s *Service) Create(ctx context.Context, input CreateCampaignInput) (*domain.Campaign, error) {
	if err := s.validateCreateInput(input); err != nil {
		return nil, err
	}

	if _, err := schedule.RepresentativeDelay(input.MinDelaySeconds, input.MaxDelaySeconds); err != nil {
		return nil, err
	}

	instanceIDs, err := s.resolveInstances(ctx, input)
	if err != nil {
		return nil, err
	}

	contacts := make([]schedule.Contact, 0, len(input.Contacts))
	for _, c := range input.Contacts {
		contacts = append(contacts, schedule.Contact{Phone: c.Phone, Name: c.Name})
	}

	assignments, err := schedule.Plan(contacts, instanceIDs, input.SendingMode)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	campaign := &domain.Campaign{
		ID:              uuid.New(),
		OrganizationID:  input.OrganizationID,
		Name:            input.Name,
		SendingMode:     input.SendingMode,
		MinDelaySeconds: input.MinDelaySeconds,
		MaxDelaySeconds: input.MaxDelaySeconds,
		Status:          domain.CampaignStatusDraft,
		TotalContacts:   len(input.Contacts),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("campaign service: create campaign: %w", err)
	}

	items := make([]domain.QueueItem, 0, len(assignments))
	for pos, a := range assignments {
		items = append(items, domain.QueueItem{
			ID:         uuid.New(),
			CampaignID: campaign.ID,
			InstanceID: a.InstanceID,
			Position:   pos,
			Phone:      a.Contact.Phone,
			Name:       a.Contact.Name,
			Body:       input.Contacts[a.Index].Body,
			Status:     domain.QueueItemStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err := s.items.BulkInsert(ctx, campaign.ID, items); err != nil {
		return nil, fmt.Errorf("campaign service: store queue items: %w", err)
	}

	if err := s.stats.Ensure(ctx, campaign.ID); err != nil {
		return nil, fmt.Errorf("campaign service: ensure stats: %w", err)
	}
	if err := s.stats.ApplyDelta(ctx, campaign.ID, repository.StatsDelta{TotalDelta: int64(len(items))}); err != nil {
		return nil, fmt.Errorf("campaign service: seed stats: %w", err)
	}

	return campaign, nil
}

// Preview dry-runs the schedule for a draft campaign against the current
// clock and the organization's active window. Nothing is persisted.
func (s *Service) Preview(ctx context.Context, id uuid.UUID) (*schedule.Summary, error) {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in, err := s.scheduleInput(ctx, campaign, campaign.MinDelaySeconds, campaign.MaxDelaySeconds)
	if err != nil {
		return nil, err
	}

	summary, err := schedule.Detect(in)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Start commits the schedule and transitions the campaign to running.
//
// Under the reschedule and edit policies a start attempted while the
// window is closed fails with ErrWindowClosed; the exception policy
// bypasses that guard and tags out-of-window messages instead. The edit
// policy additionally replaces the campaign's delay bounds before the
// schedule is computed. On a partial persistence failure the campaign
// stays in draft and a PartialScheduleError is returned.
func (s *Service) Start(ctx context.Context, input StartInput) (*domain.Campaign, error) {
	if !input.Policy.Valid() {
		return nil, fmt.Errorf("%w: unknown conflict policy %q", apperrors.ErrValidation, input.Policy)
	}

	campaign, err := s.campaigns.Get(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignStatusDraft {
		return nil, fmt.Errorf("%w: cannot start campaign in status %s", apperrors.ErrInvalidTransition, campaign.Status)
	}

	minDelay, maxDelay := campaign.MinDelaySeconds, campaign.MaxDelaySeconds
	if input.Policy == schedule.PolicyEdit {
		if input.MinDelaySeconds == nil || input.MaxDelaySeconds == nil {
			return nil, fmt.Errorf("%w: edit policy requires new delay bounds", apperrors.ErrValidation)
		}
		minDelay, maxDelay = *input.MinDelaySeconds, *input.MaxDelaySeconds
	}

	in, err := s.scheduleInput(ctx, campaign, minDelay, maxDelay)
	if err != nil {
		return nil, err
	}
	in.Policy = input.Policy

	if input.Policy != schedule.PolicyException && windowBlocks(in.Window, in.Now) {
		next, nerr := schedule.NextWindowStart(in.Window, in.Now)
		if nerr != nil {
			return nil, nerr
		}
		return nil, fmt.Errorf("%w: window opens at %s", apperrors.ErrWindowClosed, next.Format(time.RFC3339))
	}

	placed, err := schedule.Build(in)
	if err != nil {
		return nil, err
	}

	if err := s.commitSchedule(ctx, campaign.ID, placed); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	campaign.Status = domain.CampaignStatusRunning
	campaign.StartedAt = &now
	campaign.MinDelaySeconds = minDelay
	campaign.MaxDelaySeconds = maxDelay
	campaign.UpdatedAt = now
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("campaign service: mark running: %w", err)
	}

	if err := s.stats.ApplyDelta(ctx, campaign.ID, repository.StatsDelta{ScheduledDelta: int64(len(placed))}); err != nil {
		return nil, fmt.Errorf("campaign service: count scheduled: %w", err)
	}

	return campaign, nil
}

// commitSchedule persists placements in bounded batches. Each batch is
// atomic; a failed batch counts whole toward the partial error.
func (s *Service) commitSchedule(ctx context.Context, campaignID uuid.UUID, placed []schedule.Placed) error {
	updates := make([]repository.ScheduleUpdate, 0, len(placed))
	for _, p := range placed {
		updates = append(updates, repository.ScheduleUpdate{
			ItemID:        p.ID,
			ScheduledFor:  p.ScheduledFor,
			ExceptionNote: p.ExceptionNote,
		})
	}

	failed := 0
	var lastErr error
	for start := 0; start < len(updates); start += s.batchSize {
		end := start + s.batchSize
		if end > len(updates) {
			end = len(updates)
		}
		batch := updates[start:end]

		if err := s.items.ApplySchedule(ctx, campaignID, batch); err != nil {
			failed += len(batch)
			lastErr = err
			continue
		}

		if s.batchPause > 0 && end < len(updates) {
			select {
			case <-ctx.Done():
				failed += len(updates) - end
				lastErr = ctx.Err()
				return &PartialScheduleError{Failed: failed, Total: len(updates), Err: lastErr}
			case <-time.After(s.batchPause):
			}
		}
	}

	if failed > 0 {
		return &PartialScheduleError{Failed: failed, Total: len(updates), Err: lastErr}
	}
	return nil
}

// Pause suspends a running campaign.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.CampaignStatusRunning, domain.CampaignStatusPaused, false)
}

// Resume returns a paused campaign to running.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.CampaignStatusPaused, domain.CampaignStatusRunning, false)
}

// Complete marks a running campaign as finished. The status worker drives
// this once no deliverable items remain.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.CampaignStatusRunning, domain.CampaignStatusCompleted, true)
}

// Cancel stops a campaign permanently. The campaign row is flipped before
// the queue rows so a dispatcher racing this call sees the cancelled
// status and refuses to hand out more work.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	switch campaign.Status {
	case domain.CampaignStatusDraft, domain.CampaignStatusRunning, domain.CampaignStatusPaused:
	default:
		return fmt.Errorf("%w: cannot cancel campaign in status %s", apperrors.ErrInvalidTransition, campaign.Status)
	}

	now := s.clock.Now()
	campaign.Status = domain.CampaignStatusCancelled
	campaign.CompletedAt = &now
	campaign.UpdatedAt = now
	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return fmt.Errorf("campaign service: mark cancelled: %w", err)
	}

	cancelled, err := s.items.CancelRemaining(ctx, id)
	if err != nil {
		return fmt.Errorf("campaign service: cancel queue items: %w", err)
	}
	if cancelled > 0 {
		if err := s.stats.ApplyDelta(ctx, id, repository.StatsDelta{CancelledDelta: cancelled}); err != nil {
			return fmt.Errorf("campaign service: count cancelled: %w", err)
		}
	}
	return nil
}

// Get retrieves a campaign with its delivery counters populated.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats.Get(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return campaign, nil
		}
		return nil, fmt.Errorf("campaign service: load stats: %w", err)
	}
	campaign.SentCount = stats.SentMessages
	campaign.FailedCount = stats.FailedMessages
	return campaign, nil
}

// List returns an organization's campaigns after the given cursor.
func (s *Service) List(ctx context.Context, organizationID uuid.UUID, afterID *uuid.UUID, limit int) ([]*domain.Campaign, error) {
	return s.campaigns.List(ctx, organizationID, afterID, limit)
}

// Stats retrieves aggregated delivery counters.
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*domain.CampaignStats, error) {
	return s.stats.Get(ctx, id)
}

// Items lists a campaign's queue items, optionally filtered by status.
func (s *Service) Items(ctx context.Context, id uuid.UUID, limit int, status string) ([]domain.QueueItem, error) {
	if _, err := s.campaigns.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.items.ListByCampaign(ctx, id, limit, status)
}

// Deliveries pages through a campaign's delivery attempt history.
func (s *Service) Deliveries(ctx context.Context, id uuid.UUID, limit int, pageToken string) ([]domain.DeliveryAttempt, string, error) {
	if _, err := s.campaigns.Get(ctx, id); err != nil {
		return nil, "", err
	}
	state, err := common.DecodePageToken(pageToken)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	attempts, next, err := s.deliveryLog.ListByCampaign(ctx, id, limit, state)
	if err != nil {
		return nil, "", err
	}
	return attempts, common.EncodePageToken(next), nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus, stampCompleted bool) error {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != from {
		return fmt.Errorf("%w: cannot move campaign from %s to %s", apperrors.ErrInvalidTransition, campaign.Status, to)
	}
	now := s.clock.Now()
	campaign.Status = to
	campaign.UpdatedAt = now
	if stampCompleted {
		campaign.CompletedAt = &now
	}
	return s.campaigns.Update(ctx, campaign)
}

// scheduleInput assembles the builder input shared by Preview and Start:
// the stored pending items in position order, the representative delay and
// the organization's active window, all anchored at the current clock.
func (s *Service) scheduleInput(ctx context.Context, campaign *domain.Campaign, minDelay, maxDelay int) (schedule.Input, error) {
	delay, err := schedule.RepresentativeDelay(minDelay, maxDelay)
	if err != nil {
		return schedule.Input{}, err
	}

	pending, err := s.items.ListPending(ctx, campaign.ID)
	if err != nil {
		return schedule.Input{}, fmt.Errorf("campaign service: list pending items: %w", err)
	}
	if len(pending) == 0 {
		return schedule.Input{}, fmt.Errorf("%w: campaign has no pending messages", apperrors.ErrValidation)
	}

	items := make([]schedule.Item, 0, len(pending))
	for _, it := range pending {
		items = append(items, schedule.Item{ID: it.ID, InstanceID: it.InstanceID})
	}

	window, err := s.windows.GetActive(ctx, campaign.OrganizationID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return schedule.Input{}, fmt.Errorf("campaign service: load window: %w", err)
	}

	return schedule.Input{
		Items:  items,
		Mode:   campaign.SendingMode,
		Delay:  delay,
		Now:    s.clock.Now(),
		Window: window,
		Policy: schedule.PolicyReschedule,
	}, nil
}

func (s *Service) resolveInstances(ctx context.Context, input CreateCampaignInput) ([]uuid.UUID, error) {
	if len(input.InstanceIDs) > 0 {
		for _, id := range input.InstanceIDs {
			instance, err := s.instances.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("campaign service: resolve instance %s: %w", id, err)
			}
			if instance.OrganizationID != input.OrganizationID {
				return nil, fmt.Errorf("%w: instance %s belongs to another organization", apperrors.ErrValidation, id)
			}
			if !instance.Enabled {
				return nil, fmt.Errorf("%w: instance %s is disabled", apperrors.ErrValidation, id)
			}
		}
		return input.InstanceIDs, nil
	}

	all, err := s.instances.ListByOrganization(ctx, input.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("campaign service: list instances: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(all))
	for _, instance := range all {
		if instance.Enabled {
			ids = append(ids, instance.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: organization has no enabled instances", apperrors.ErrValidation)
	}
	return ids, nil
}

func (s *Service) validateCreateInput(input CreateCampaignInput) error {
	if input.Name == "" {
		return fmt.Errorf("%w: campaign name is required", apperrors.ErrValidation)
	}
	if input.OrganizationID == uuid.Nil {
		return fmt.Errorf("%w: organization id is required", apperrors.ErrValidation)
	}
	if !input.SendingMode.Valid() {
		return fmt.Errorf("%w: unknown sending mode %q", apperrors.ErrValidation, input.SendingMode)
	}
	if len(input.Contacts) == 0 {
		return fmt.Errorf("%w: at least one contact is required", apperrors.ErrValidation)
	}
	for i, c := range input.Contacts {
		if c.Phone == "" {
			return fmt.Errorf("%w: contact %d has no phone number", apperrors.ErrValidation, i)
		}
		if c.Body == "" {
			return fmt.Errorf("%w: contact %d has no message body", apperrors.ErrValidation, i)
		}
	}
	return nil
}

func windowBlocks(w *domain.TimeWindow, now time.Time) bool {
	return w != nil && w.Enabled && !schedule.IsInWindow(w, now)
}
