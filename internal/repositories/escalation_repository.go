package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"randomcoffee/internal/dbx"
	"randomcoffee/internal/models"
)

// EscalationRepository is append-only.
type EscalationRepository interface {
	Create(ctx context.Context, e *models.EscalationEvent) error
}

type escalationRepository struct {
	db dbx.DBTX
}

func NewEscalationRepository(db dbx.DBTX) EscalationRepository {
	return &escalationRepository{db: db}
}

func (r *escalationRepository) Create(ctx context.Context, e *models.EscalationEvent) error {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("escalation payload: %w", err)
	}
	const q = `
		INSERT INTO escalation_events (actor, action, payload, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, q, e.Actor, e.Action, string(b), e.CreatedAt.UTC()).Scan(&e.ID); err != nil {
		return fmt.Errorf("escalation create: %w", err)
	}
	return nil
}
