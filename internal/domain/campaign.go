package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates lifecycle states of a broadcast campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCancelled CampaignStatus = "cancelled"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// QueueItemStatus enumerates lifecycle stages for an individual outbound message.
type QueueItemStatus string

const (
	QueueItemStatusPending   QueueItemStatus = "pending"
	QueueItemStatusScheduled QueueItemStatus = "scheduled"
	QueueItemStatusSent      QueueItemStatus = "sent"
	QueueItemStatusFailed    QueueItemStatus = "failed"
	QueueItemStatusCancelled QueueItemStatus = "cancelled"
)

// SendingMode determines how contacts are mapped onto sending instances.
// It is persisted on the campaign so the schedule walk never has to infer
// the mode from queue-item counts after the fact.
type SendingMode string

const (
	// SendingModeSingle assigns every contact to the first instance.
	SendingModeSingle SendingMode = "single"
	// SendingModeRotate distributes contacts round-robin across instances.
	SendingModeRotate SendingMode = "rotate"
	// SendingModeSeparate sends the entire contact list through every instance.
	SendingModeSeparate SendingMode = "separate"
)

// Valid reports whether the mode is one of the known values.
func (m SendingMode) Valid() bool {
	switch m {
	case SendingModeSingle, SendingModeRotate, SendingModeSeparate:
		return true
	}
	return false
}

// Campaign models a broadcast campaign definition.
// SentCount and FailedCount mirror the statistics counters and are
// populated on read; they are never written through this struct.
type Campaign struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	Name            string
	SendingMode     SendingMode
	MinDelaySeconds int
	MaxDelaySeconds int
	Status          CampaignStatus
	TotalContacts   int
	SentCount       int64
	FailedCount     int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// QueueItem represents one outbound message within a campaign, bound to a
// single sending instance. Position preserves planner output order so the
// schedule walk is reproducible across restarts.
type QueueItem struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	InstanceID    uuid.UUID
	Position      int
	Phone         string
	Name          string
	Body          string
	Status        QueueItemStatus
	ScheduledFor  *time.Time
	ExceptionNote string
	DispatchedAt  *time.Time
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TimeWindow is a recurring allowed-sending schedule for an organization.
// At most one window is active (enabled) per organization at a time.
type TimeWindow struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Enabled        bool
	Rules          []WindowRule
}

// WindowRule captures one allowed weekday and time-of-day range, stored as
// minutes from midnight. EndMinute <= StartMinute means the range spans
// midnight into the following day.
type WindowRule struct {
	DayOfWeek   time.Weekday
	StartMinute int
	EndMinute   int
}

// Instance identifies one outbound messaging connection capable of sending.
type Instance struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Label          string
	Enabled        bool
	CreatedAt      time.Time
}

// CampaignStats aggregates campaign delivery counters.
type CampaignStats struct {
	TotalMessages     int64
	ScheduledMessages int64
	SentMessages      int64
	FailedMessages    int64
	CancelledMessages int64
	RetriesAttempted  int64
}

// DeliveryAttempt captures one send attempt for observability.
type DeliveryAttempt struct {
	ID         uuid.UUID
	ItemID     uuid.UUID
	CampaignID uuid.UUID
	InstanceID uuid.UUID
	Phone      string
	Attempt    int
	Status     QueueItemStatus
	Error      string
	Duration   time.Duration
	OccurredAt time.Time
}
