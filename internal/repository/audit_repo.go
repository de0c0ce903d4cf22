package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// AuditRepository is the append-only log of attempted generations.
type AuditRepository interface {
	Insert(ctx context.Context, ev *model.GenerationAuditEvent) error
	ListRecent(ctx context.Context, limit int) ([]model.GenerationAuditEvent, error)
}

type auditRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewAuditRepo creates a new AuditRepository.
func NewAuditRepo(pool *pgxpool.Pool, logger zerolog.Logger) AuditRepository {
	return &auditRepo{pool: pool, logger: logger}
}

func (r *auditRepo) Insert(ctx context.Context, ev *model.GenerationAuditEvent) error {
	const q = `
        INSERT INTO style_generations (user_id, kind, preset, shade, length, request_id, output_mime_type, storage_path)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `
	err := r.pool.QueryRow(ctx, q,
		ev.UserID, string(ev.Kind), ev.Preset, ev.Shade, ev.Length, ev.RequestID, ev.OutputMimeType, ev.StoragePath,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording generation event for user %s: %w", ev.UserID, err)
	}
	return nil
}

func (r *auditRepo) ListRecent(ctx context.Context, limit int) ([]model.GenerationAuditEvent, error) {
	const q = `
        SELECT id, user_id, kind, preset, shade, length, request_id, output_mime_type, storage_path, created_at
        FROM style_generations
        ORDER BY created_at DESC
        LIMIT $1
    `
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent generations: %w", err)
	}
	defer rows.Close()

	var events []model.GenerationAuditEvent
	for rows.Next() {
		var ev model.GenerationAuditEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.UserID, &kind, &ev.Preset, &ev.Shade, &ev.Length, &ev.RequestID, &ev.OutputMimeType, &ev.StoragePath, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning generation event: %w", err)
		}
		ev.Kind = model.Budget(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating generation events: %w", err)
	}
	return events, nil
}
