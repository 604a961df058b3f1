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

// InstanceRepository persists outbound messaging instances.
type InstanceRepository struct {
	db *sqlx.DB
}

// NewInstanceRepository constructs the repository.
func NewInstanceRepository(db *sqlx.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// Create inserts a new instance.
func (r *InstanceRepository) Create(ctx context.Context, instance *domain.Instance) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO instances (id, organization_id, label, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		instance.ID, instance.OrganizationID, instance.Label, instance.Enabled, instance.CreatedAt)
	if err != nil {
		return fmt.Errorf("instance repo: insert: %w", err)
	}
	return nil
}

// Get fetches an instance by id.
func (r *InstanceRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Instance, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT id, organization_id, label, enabled, created_at
		FROM instances WHERE id = $1`, id)

	var record instanceRecord
	if err := row.StructScan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("instance repo: get: %w", err)
	}

	instance := record.toDomain()
	return &instance, nil
}

// ListByOrganization lists an organization's instances.
func (r *InstanceRepository) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*domain.Instance, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, organization_id, label, enabled, created_at
		FROM instances WHERE organization_id = $1 ORDER BY created_at ASC`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("instance repo: list: %w", err)
	}
	defer rows.Close()

	var results []*domain.Instance
	for rows.Next() {
		var record instanceRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("instance repo: scan: %w", err)
		}
		instance := record.toDomain()
		results = append(results, &instance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("instance repo: rows err: %w", err)
	}
	return results, nil
}

type instanceRecord struct {
	ID             uuid.UUID    `db:"id"`
	OrganizationID uuid.UUID    `db:"organization_id"`
	Label          string       `db:"label"`
	Enabled        bool         `db:"enabled"`
	CreatedAt      sql.NullTime `db:"created_at"`
}

func (r instanceRecord) toDomain() domain.Instance {
	instance := domain.Instance{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Label:          r.Label,
		Enabled:        r.Enabled,
	}
	if r.CreatedAt.Valid {
		instance.CreatedAt = r.CreatedAt.Time
	}
	return instance
}
