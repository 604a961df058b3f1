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

// TimeWindowRepository persists organization sending windows.
type TimeWindowRepository struct {
	db *sqlx.DB
}

// NewTimeWindowRepository creates a new repository.
func NewTimeWindowRepository(db *sqlx.DB) *TimeWindowRepository {
	return &TimeWindowRepository{db: db}
}

// GetActive returns the enabled sending window for an organization with its
// rules loaded, or ErrNotFound when the organization has no active window.
func (r *TimeWindowRepository) GetActive(ctx context.Context, organizationID uuid.UUID) (*domain.TimeWindow, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT id, organization_id, name, enabled
		FROM time_windows WHERE organization_id = $1 AND enabled = TRUE
		ORDER BY updated_at DESC LIMIT 1`, organizationID)

	var record struct {
		ID             uuid.UUID `db:"id"`
		OrganizationID uuid.UUID `db:"organization_id"`
		Name           string    `db:"name"`
		Enabled        bool      `db:"enabled"`
	}
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("time windows: get active: %w", err)
	}

	rules, err := r.listRules(ctx, record.ID)
	if err != nil {
		return nil, err
	}

	return &domain.TimeWindow{
		ID:             record.ID,
		OrganizationID: record.OrganizationID,
		Name:           record.Name,
		Enabled:        record.Enabled,
		Rules:          rules,
	}, nil
}

// Replace swaps the organization's window and rules for the given one.
// Any previously active window for the organization is disabled so at most
// one stays active.
func (r *TimeWindowRepository) Replace(ctx context.Context, window *domain.TimeWindow) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if window.Enabled {
			if _, err := tx.ExecContext(ctx, `UPDATE time_windows SET enabled = FALSE, updated_at = NOW()
				WHERE organization_id = $1 AND id <> $2`, window.OrganizationID, window.ID); err != nil {
				return fmt.Errorf("time windows: disable previous: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO time_windows (id, organization_id, name, enabled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE SET name = $3, enabled = $4, updated_at = NOW()`,
			window.ID, window.OrganizationID, window.Name, window.Enabled); err != nil {
			return fmt.Errorf("time windows: upsert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM time_window_rules WHERE window_id = $1`, window.ID); err != nil {
			return fmt.Errorf("time windows: delete rules: %w", err)
		}

		if len(window.Rules) == 0 {
			return nil
		}

		stmt, err := tx.PreparexContext(ctx, `INSERT INTO time_window_rules (window_id, day_of_week, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)`)
		if err != nil {
			return fmt.Errorf("time windows: prepare rule insert: %w", err)
		}
		defer stmt.Close()

		for _, rule := range window.Rules {
			if _, err := stmt.ExecContext(ctx, window.ID, int(rule.DayOfWeek), rule.StartMinute, rule.EndMinute); err != nil {
				return fmt.Errorf("time windows: insert rule: %w", err)
			}
		}
		return nil
	})
}

func (r *TimeWindowRepository) listRules(ctx context.Context, windowID uuid.UUID) ([]domain.WindowRule, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT day_of_week, start_minute, end_minute
		FROM time_window_rules WHERE window_id = $1 ORDER BY day_of_week, start_minute`, windowID)
	if err != nil {
		return nil, fmt.Errorf("time windows: query rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.WindowRule
	for rows.Next() {
		var row struct {
			Day      int `db:"day_of_week"`
			StartMin int `db:"start_minute"`
			EndMin   int `db:"end_minute"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("time windows: scan rule: %w", err)
		}
		rules = append(rules, domain.WindowRule{
			DayOfWeek:   time.Weekday(row.Day),
			StartMinute: row.StartMin,
			EndMinute:   row.EndMin,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("time windows: rows err: %w", err)
	}
	return rules, nil
}
