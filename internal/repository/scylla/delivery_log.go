package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/broadcast-dispatch/internal/domain"
)

// DeliveryLogStore persists send attempt records in Scylla, partitioned by
// campaign and day so a campaign's history can be paged cheaply.
type DeliveryLogStore struct {
	session *gocql.Session
}

// NewDeliveryLogStore creates a new delivery log store.
func NewDeliveryLogStore(session *gocql.Session) *DeliveryLogStore {
	return &DeliveryLogStore{session: session}
}

// Append inserts one delivery attempt record.
func (s *DeliveryLogStore) Append(ctx context.Context, attempt domain.DeliveryAttempt) error {
	bucket := bucketDate(attempt.OccurredAt)
	durationMs := int64(attempt.Duration / time.Millisecond)

	if err := s.session.Query(`INSERT INTO delivery_attempts_by_campaign
		(campaign_id, bucket, occurred_at, attempt_id, item_id, instance_id, phone, attempt, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.CampaignID.String(), bucket, attempt.OccurredAt, attempt.ID.String(),
		attempt.ItemID.String(), attempt.InstanceID.String(), attempt.Phone,
		attempt.Attempt, string(attempt.Status), attempt.Error, durationMs,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delivery log: insert attempt: %w", err)
	}
	return nil
}

// ListByCampaign pages through a campaign's delivery attempts.
func (s *DeliveryLogStore) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, pagingState []byte) ([]domain.DeliveryAttempt, []byte, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.session.Query(`SELECT bucket, occurred_at, attempt_id, item_id, instance_id, phone, attempt, status, error, duration_ms
		FROM delivery_attempts_by_campaign WHERE campaign_id = ?`, campaignID.String()).WithContext(ctx)
	query = query.PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	attempts := make([]domain.DeliveryAttempt, 0, limit)

	var (
		bucket      time.Time
		occurredAt  time.Time
		attemptID   string
		itemID      string
		instanceID  string
		phone       string
		attemptNum  int
		statusValue string
		errValue    string
		durationMs  int64
	)

	for iter.Scan(&bucket, &occurredAt, &attemptID, &itemID, &instanceID, &phone, &attemptNum, &statusValue, &errValue, &durationMs) {
		record, err := parseAttempt(campaignID, attemptID, itemID, instanceID)
		if err != nil {
			continue
		}
		record.Phone = phone
		record.Attempt = attemptNum
		record.Status = domain.QueueItemStatus(statusValue)
		record.Error = errValue
		record.Duration = time.Duration(durationMs) * time.Millisecond
		record.OccurredAt = occurredAt
		attempts = append(attempts, record)
	}

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("delivery log: iter close: %w", err)
	}

	return attempts, iter.PageState(), nil
}

func parseAttempt(campaignID uuid.UUID, attemptID, itemID, instanceID string) (domain.DeliveryAttempt, error) {
	id, err := uuid.Parse(attemptID)
	if err != nil {
		return domain.DeliveryAttempt{}, err
	}
	item, err := uuid.Parse(itemID)
	if err != nil {
		return domain.DeliveryAttempt{}, err
	}
	instance, err := uuid.Parse(instanceID)
	if err != nil {
		return domain.DeliveryAttempt{}, err
	}
	return domain.DeliveryAttempt{ID: id, ItemID: item, CampaignID: campaignID, InstanceID: instance}, nil
}

func bucketDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
