package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
	apperrors "github.com/acme/broadcast-dispatch/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// CampaignRepository manages campaign metadata persistence.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	Update(ctx context.Context, campaign *domain.Campaign) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	List(ctx context.Context, organizationID uuid.UUID, afterID *uuid.UUID, limit int) ([]*domain.Campaign, error)
	ListByStatus(ctx context.Context, status domain.CampaignStatus, limit int) ([]*domain.Campaign, error)
}

// TimeWindowRepository manages organization sending windows.
type TimeWindowRepository interface {
	// GetActive returns the enabled window for the organization, or
	// ErrNotFound when none is active.
	GetActive(ctx context.Context, organizationID uuid.UUID) (*domain.TimeWindow, error)
	Replace(ctx context.Context, window *domain.TimeWindow) error
}

// InstanceRepository stores outbound messaging instances.
type InstanceRepository interface {
	Create(ctx context.Context, instance *domain.Instance) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Instance, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*domain.Instance, error)
}

// QueueItemRepository stores per-message queue items.
type QueueItemRepository interface {
	BulkInsert(ctx context.Context, campaignID uuid.UUID, items []domain.QueueItem) error
	ListPending(ctx context.Context, campaignID uuid.UUID) ([]domain.QueueItem, error)
	// ApplySchedule commits one bounded batch of scheduled_for assignments
	// atomically: either the whole batch lands or none of it does.
	ApplySchedule(ctx context.Context, campaignID uuid.UUID, updates []ScheduleUpdate) error
	NextDue(ctx context.Context, campaignID uuid.UUID, now time.Time, limit int) ([]domain.QueueItem, error)
	MarkDispatched(ctx context.Context, campaignID uuid.UUID, itemIDs []uuid.UUID, at time.Time) error
	ResetDispatched(ctx context.Context, campaignID uuid.UUID, itemIDs []uuid.UUID) error
	// SetStatus moves a scheduled item to a terminal state; items already
	// sent, failed or cancelled are left untouched.
	SetStatus(ctx context.Context, itemID uuid.UUID, status domain.QueueItemStatus, lastError *string) error
	// CancelRemaining flips every pending and scheduled item to cancelled
	// and reports how many rows were affected.
	CancelRemaining(ctx context.Context, campaignID uuid.UUID) (int64, error)
	CountRemaining(ctx context.Context, campaignID uuid.UUID) (int64, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, status string) ([]domain.QueueItem, error)
}

// StatisticsRepository keeps aggregate campaign counters.
type StatisticsRepository interface {
	Ensure(ctx context.Context, campaignID uuid.UUID) error
	Get(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignStats, error)
	ApplyDelta(ctx context.Context, campaignID uuid.UUID, delta StatsDelta) error
}

// DeliveryLogStore persists send attempt records.
type DeliveryLogStore interface {
	Append(ctx context.Context, attempt domain.DeliveryAttempt) error
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, pagingState []byte) ([]domain.DeliveryAttempt, []byte, error)
}

// ScheduleUpdate assigns one queue item its computed send time.
type ScheduleUpdate struct {
	ItemID        uuid.UUID
	ScheduledFor  time.Time
	ExceptionNote string
}

// StatsDelta captures atomic counter increments.
type StatsDelta struct {
	TotalDelta     int64
	ScheduledDelta int64
	SentDelta      int64
	FailedDelta    int64
	CancelledDelta int64
	RetriesDelta   int64
}
