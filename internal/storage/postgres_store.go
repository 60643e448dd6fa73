package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"badge-studio/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps templates in the badge_templates table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects and pings the database.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

const templateColumns = `id, tenant_id, event_id, name, description, participant_type,
	is_double_sided, badges_per_page, page_orientation, front_config, back_config,
	version, created_at, updated_at`

func scanTemplate(row pgx.Row) (*models.BadgeTemplate, error) {
	var t models.BadgeTemplate
	var front []byte
	var back []byte
	err := row.Scan(&t.ID, &t.TenantID, &t.EventID, &t.Name, &t.Description, &t.ParticipantType,
		&t.IsDoubleSided, &t.BadgesPerPage, &t.PageOrientation, &front, &back,
		&t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(front, &t.FrontConfig); err != nil {
		return nil, fmt.Errorf("decode front_config of template %d: %w", t.ID, err)
	}
	if len(back) > 0 {
		var cfg models.BadgeConfig
		if err := json.Unmarshal(back, &cfg); err != nil {
			return nil, fmt.Errorf("decode back_config of template %d: %w", t.ID, err)
		}
		t.BackConfig = &cfg
	}
	return &t, nil
}

func encodeConfigs(p models.TemplatePayload) (front, back []byte, err error) {
	front, err = json.Marshal(p.FrontConfig)
	if err != nil {
		return nil, nil, err
	}
	if p.IsDoubleSided && p.BackConfig != nil {
		back, err = json.Marshal(p.BackConfig)
		if err != nil {
			return nil, nil, err
		}
	}
	return front, back, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID, eventID int) ([]models.BadgeTemplate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+templateColumns+` FROM badge_templates WHERE tenant_id = $1 AND event_id = $2 ORDER BY id`,
		tenantID, eventID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := []models.BadgeTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, eventID, id int) (*models.BadgeTemplate, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM badge_templates WHERE id = $1 AND tenant_id = $2 AND event_id = $3`,
		id, tenantID, eventID)
	return scanTemplate(row)
}

func (s *PostgresStore) Create(ctx context.Context, tenantID, eventID int, p models.TemplatePayload) (*models.BadgeTemplate, error) {
	front, back, err := encodeConfigs(p)
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	row := s.db.QueryRow(ctx,
		`INSERT INTO badge_templates (tenant_id, event_id, name, description, participant_type,
			is_double_sided, badges_per_page, page_orientation, front_config, back_config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+templateColumns,
		tenantID, eventID, p.Name, p.Description, p.ParticipantType,
		p.IsDoubleSided, p.BadgesPerPage, p.PageOrientation, front, back)
	return scanTemplate(row)
}

func (s *PostgresStore) Update(ctx context.Context, tenantID, eventID, id int, p models.TemplatePayload) (*models.BadgeTemplate, error) {
	front, back, err := encodeConfigs(p)
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	row := s.db.QueryRow(ctx,
		`UPDATE badge_templates SET name = $5, description = $6, participant_type = $7,
			is_double_sided = $8, badges_per_page = $9, page_orientation = $10,
			front_config = $11, back_config = $12, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND event_id = $3 AND version = $4
		 RETURNING `+templateColumns,
		id, tenantID, eventID, p.Version, p.Name, p.Description, p.ParticipantType,
		p.IsDoubleSided, p.BadgesPerPage, p.PageOrientation, front, back)
	t, err := scanTemplate(row)
	if errors.Is(err, ErrNotFound) {
		current, getErr := s.Get(ctx, tenantID, eventID, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: template %d is at version %d, got %d", ErrVersionConflict, id, current.Version, p.Version)
	}
	return t, err
}

func (s *PostgresStore) Delete(ctx context.Context, tenantID, eventID, id int) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM badge_templates WHERE id = $1 AND tenant_id = $2 AND event_id = $3`,
		id, tenantID, eventID)
	if err != nil {
		return fmt.Errorf("delete template %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
