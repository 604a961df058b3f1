package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/broadcast-dispatch/internal/domain"
	"github.com/acme/broadcast-dispatch/internal/repository"
)

// StatisticsRepository implements repository.StatisticsRepository.
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository builds the repository.
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// Ensure ensures a counter row exists for the campaign.
func (r *StatisticsRepository) Ensure(ctx context.Context, campaignID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO campaign_statistics (campaign_id)
		VALUES ($1) ON CONFLICT (campaign_id) DO NOTHING`, campaignID)
	if err != nil {
		return fmt.Errorf("campaign stats: ensure: %w", err)
	}
	return nil
}

// Get retrieves statistics.
func (r *StatisticsRepository) Get(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignStats, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT total_messages, scheduled_messages, sent_messages,
		failed_messages, cancelled_messages, retries_attempted
		FROM campaign_statistics WHERE campaign_id = $1`, campaignID)

	var record struct {
		Total     int64 `db:"total_messages"`
		Scheduled int64 `db:"scheduled_messages"`
		Sent      int64 `db:"sent_messages"`
		Failed    int64 `db:"failed_messages"`
		Cancelled int64 `db:"cancelled_messages"`
		Retries   int64 `db:"retries_attempted"`
	}
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("campaign stats: get: %w", err)
	}

	return &domain.CampaignStats{
		TotalMessages:     record.Total,
		ScheduledMessages: record.Scheduled,
		SentMessages:      record.Sent,
		FailedMessages:    record.Failed,
		CancelledMessages: record.Cancelled,
		RetriesAttempted:  record.Retries,
	}, nil
}

// ApplyDelta applies counter deltas atomically.
func (r *StatisticsRepository) ApplyDelta(ctx context.Context, campaignID uuid.UUID, delta repository.StatsDelta) error {
	_, err := r.db.ExecContext(ctx, `UPDATE campaign_statistics SET
		total_messages = total_messages + $2,
		scheduled_messages = scheduled_messages + $3,
		sent_messages = sent_messages + $4,
		failed_messages = failed_messages + $5,
		cancelled_messages = cancelled_messages + $6,
		retries_attempted = retries_attempted + $7,
		updated_at = NOW()
	WHERE campaign_id = $1`,
		campaignID,
		delta.TotalDelta,
		delta.ScheduledDelta,
		delta.SentDelta,
		delta.FailedDelta,
		delta.CancelledDelta,
		delta.RetriesDelta,
	)
	if err != nil {
		return fmt.Errorf("campaign stats: apply delta: %w", err)
	}
	return nil
}
