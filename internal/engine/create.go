package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/store"
)

// CreateRequest registers a single concentrator outside the batch intake
// flow, e.g. a unit delivered on its own.
type CreateRequest struct {
	Serial   string `json:"serial"`
	Model    string `json:"model,omitempty"`
	Operator string `json:"operator"`
	Location string `json:"location,omitempty"`
	BatchRef string `json:"batch_ref,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Create registers one concentrator. Units landing directly at the warehouse
// start in stock; anywhere else they are still in delivery. Restricted to
// administrators and managers.
func Create(ctx context.Context, db *sql.DB, actor *model.User, req CreateRequest) (*Result, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleManager {
		return nil, fmt.Errorf("%w: role %s cannot register concentrators", model.ErrForbidden, actor.Role)
	}
	if req.Serial == "" || req.Operator == "" {
		return nil, fmt.Errorf("%w: serial and operator required", model.ErrInvalidArgument)
	}

	existing, err := store.GetConcentrator(ctx, db, req.Serial)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: concentrator %s already exists", model.ErrConflict, req.Serial)
	}

	state := model.StateInDelivery
	if req.Location == model.LocationWarehouse {
		state = model.StateInStock
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", model.ErrUnavailable, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	c := &model.Concentrator{
		Serial:         req.Serial,
		Model:          req.Model,
		Operator:       req.Operator,
		State:          state,
		Location:       req.Location,
		BatchRef:       req.BatchRef,
		Comment:        req.Comment,
		StateChangedAt: &now,
	}
	if req.Location != "" {
		c.AssignedAt = &now
	}
	if err := store.CreateConcentratorTx(ctx, tx, c); err != nil {
		return nil, err
	}

	event := &model.AuditEvent{
		Action:      model.ActionReception,
		OccurredAt:  now,
		NewState:    state,
		NewLocation: req.Location,
		Comment:     req.Comment,
		UserID:      actor.ID,
		Serial:      req.Serial,
		BatchRef:    req.BatchRef,
	}
	if err := store.AppendAuditEventTx(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing creation: %v", model.ErrUnavailable, err)
	}

	return &Result{Concentrator: c, Event: event}, nil
}
