package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/broadcast-dispatch/internal/domain"
	"github.com/acme/broadcast-dispatch/internal/repository"
)

// QueueItemRepository persists campaign queue items.
type QueueItemRepository struct {
	db *sqlx.DB
}

// NewQueueItemRepository constructs the repository.
func NewQueueItemRepository(db *sqlx.DB) *QueueItemRepository {
	return &QueueItemRepository{db: db}
}

const queueItemColumns = `id, campaign_id, instance_id, position, phone, name, body, status,
	scheduled_for, exception_note, dispatched_at, last_error, created_at, updated_at`

// BulkInsert inserts a batch of queue items.
func (r *QueueItemRepository) BulkInsert(ctx context.Context, campaignID uuid.UUID, items []domain.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `INSERT INTO campaign_queue_items (
		id, campaign_id, instance_id, position, phone, name, body, status,
		scheduled_for, exception_note, dispatched_at, last_error, created_at, updated_at
	) VALUES (
		:id, :campaign_id, :instance_id, :position, :phone, :name, :body, :status,
		:scheduled_for, :exception_note, :dispatched_at, :last_error, :created_at, :updated_at
	) ON CONFLICT (id) DO NOTHING`

	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]any{
			"id":             item.ID,
			"campaign_id":    campaignID,
			"instance_id":    item.InstanceID,
			"position":       item.Position,
			"phone":          item.Phone,
			"name":           item.Name,
			"body":           item.Body,
			"status":         item.Status,
			"scheduled_for":  item.ScheduledFor,
			"exception_note": item.ExceptionNote,
			"dispatched_at":  item.DispatchedAt,
			"last_error":     item.LastError,
			"created_at":     item.CreatedAt,
			"updated_at":     item.CreatedAt,
		})
	}

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("queue items: bulk insert: %w", err)
	}
	return nil
}

// ListPending returns the campaign's pending items in planner order.
func (r *QueueItemRepository) ListPending(ctx context.Context, campaignID uuid.UUID) ([]domain.QueueItem, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+queueItemColumns+`
		FROM campaign_queue_items
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY position ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("queue items: list pending: %w", err)
	}
	defer rows.Close()

	return scanQueueItems(rows)
}

// ApplySchedule commits one bounded batch of schedule assignments in a
// single transaction. Only pending and scheduled rows are touched, so
// re-applying the same batch is harmless.
func (r *QueueItemRepository) ApplySchedule(ctx context.Context, campaignID uuid.UUID, updates []repository.ScheduleUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `UPDATE campaign_queue_items
			SET status = 'scheduled', scheduled_for = $1, exception_note = $2, updated_at = NOW()
			WHERE id = $3 AND campaign_id = $4 AND status IN ('pending', 'scheduled')`)
		if err != nil {
			return fmt.Errorf("queue items: prepare schedule update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			if _, err := stmt.ExecContext(ctx, u.ScheduledFor, u.ExceptionNote, u.ItemID, campaignID); err != nil {
				return fmt.Errorf("queue items: apply schedule: %w", err)
			}
		}
		return nil
	})
}

// NextDue fetches scheduled items whose send time has arrived and which
// have not yet been handed to the dispatch pipeline.
func (r *QueueItemRepository) NextDue(ctx context.Context, campaignID uuid.UUID, now time.Time, limit int) ([]domain.QueueItem, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryxContext(ctx, `SELECT `+queueItemColumns+`
		FROM campaign_queue_items
		WHERE campaign_id = $1 AND status = 'scheduled' AND scheduled_for <= $2 AND dispatched_at IS NULL
		ORDER BY scheduled_for ASC
		LIMIT $3`, campaignID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("queue items: next due: %w", err)
	}
	defer rows.Close()

	return scanQueueItems(rows)
}

// MarkDispatched stamps the dispatch time on the given items.
func (r *QueueItemRepository) MarkDispatched(ctx context.Context, campaignID uuid.UUID, itemIDs []uuid.UUID, at time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE campaign_queue_items SET dispatched_at = $1, updated_at = NOW()
		WHERE campaign_id = $2 AND id = ANY($3)`, at, campaignID, itemIDs); err != nil {
		return fmt.Errorf("queue items: mark dispatched: %w", err)
	}
	return nil
}

// ResetDispatched clears the dispatch stamp so the items become due again.
func (r *QueueItemRepository) ResetDispatched(ctx context.Context, campaignID uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE campaign_queue_items SET dispatched_at = NULL, updated_at = NOW()
		WHERE campaign_id = $1 AND id = ANY($2)`, campaignID, itemIDs); err != nil {
		return fmt.Errorf("queue items: reset dispatched: %w", err)
	}
	return nil
}

// SetStatus moves a scheduled item to a terminal state. Rows that already
// reached a terminal state are left untouched.
func (r *QueueItemRepository) SetStatus(ctx context.Context, itemID uuid.UUID, status domain.QueueItemStatus, lastError *string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE campaign_queue_items
		SET status = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'scheduled'`, status, lastError, itemID); err != nil {
		return fmt.Errorf("queue items: set status: %w", err)
	}
	return nil
}

// CancelRemaining flips every pending and scheduled item to cancelled.
func (r *QueueItemRepository) CancelRemaining(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE campaign_queue_items
		SET status = 'cancelled', updated_at = NOW()
		WHERE campaign_id = $1 AND status IN ('pending', 'scheduled')`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("queue items: cancel remaining: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("queue items: rows affected: %w", err)
	}
	return n, nil
}

// CountRemaining counts items that have not reached a terminal state.
func (r *QueueItemRepository) CountRemaining(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM campaign_queue_items
		WHERE campaign_id = $1 AND status IN ('pending', 'scheduled')`, campaignID); err != nil {
		return 0, fmt.Errorf("queue items: count remaining: %w", err)
	}
	return count, nil
}

// ListByCampaign lists items filtered by status.
func (r *QueueItemRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit int, status string) ([]domain.QueueItem, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + queueItemColumns + ` FROM campaign_queue_items WHERE campaign_id = $1`
	args := []any{campaignID}
	if status != "" {
		query += ` AND status = $2 ORDER BY position ASC LIMIT $3`
		args = append(args, status, limit)
	} else {
		query += ` ORDER BY position ASC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue items: list: %w", err)
	}
	defer rows.Close()

	return scanQueueItems(rows)
}

type queueItemRecord struct {
	ID            uuid.UUID      `db:"id"`
	CampaignID    uuid.UUID      `db:"campaign_id"`
	InstanceID    uuid.UUID      `db:"instance_id"`
	Position      int            `db:"position"`
	Phone         string         `db:"phone"`
	Name          string         `db:"name"`
	Body          string         `db:"body"`
	Status        string         `db:"status"`
	ScheduledFor  sql.NullTime   `db:"scheduled_for"`
	ExceptionNote sql.NullString `db:"exception_note"`
	DispatchedAt  sql.NullTime   `db:"dispatched_at"`
	LastError     sql.NullString `db:"last_error"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func scanQueueItems(rows *sqlx.Rows) ([]domain.QueueItem, error) {
	var results []domain.QueueItem
	for rows.Next() {
		var record queueItemRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("queue items: scan: %w", err)
		}
		results = append(results, record.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue items: rows err: %w", err)
	}
	return results, nil
}

func (r queueItemRecord) toDomain() domain.QueueItem {
	item := domain.QueueItem{
		ID:            r.ID,
		CampaignID:    r.CampaignID,
		InstanceID:    r.InstanceID,
		Position:      r.Position,
		Phone:         r.Phone,
		Name:          r.Name,
		Body:          r.Body,
		Status:        domain.QueueItemStatus(r.Status),
		ExceptionNote: r.ExceptionNote.String,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ScheduledFor.Valid {
		t := r.ScheduledFor.Time
		item.ScheduledFor = &t
	}
	if r.DispatchedAt.Valid {
		t := r.DispatchedAt.Time
		item.DispatchedAt = &t
	}
	if r.LastError.Valid {
		s := r.LastError.String
		item.LastError = &s
	}
	return item
}
