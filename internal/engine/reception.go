package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/policy"
	"github.com/adurand/parcops/internal/store"
)

// ReceptionRequest describes a supplier batch intake.
type ReceptionRequest struct {
	BatchRef string `json:"batch_ref"`
	Operator string `json:"operator"`
	Model    string `json:"model,omitempty"`
	Quantity int    `json:"quantity"`
	Comment  string `json:"comment,omitempty"`
}

// ReceptionResult reports the serials created by a batch intake.
type ReceptionResult struct {
	BatchRef string   `json:"batch_ref"`
	Created  []string `json:"created"`
}

// Reception receives a supplier batch at the warehouse: one new concentrator
// and one audit event per unit, the batch row upserted alongside, all in a
// single transaction so a failed intake creates nothing.
func Reception(ctx context.Context, db *sql.DB, actor *model.User, req ReceptionRequest) (*ReceptionResult, error) {
	if !policy.CanPerform(actor, model.ActionReception) {
		return nil, fmt.Errorf("%w: role %s cannot receive batches", model.ErrForbidden, actor.Role)
	}
	if req.Quantity < MinReceptionQuantity || req.Quantity > MaxReceptionQuantity {
		return nil, fmt.Errorf("%w: quantity must be between %d and %d",
			model.ErrInvalidArgument, MinReceptionQuantity, MaxReceptionQuantity)
	}
	if req.BatchRef == "" || req.Operator == "" {
		return nil, fmt.Errorf("%w: batch reference and operator required", model.ErrInvalidArgument)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", model.ErrUnavailable, err)
	}
	defer tx.Rollback()

	if err := store.UpsertBatchTx(ctx, tx, req.BatchRef, req.Operator, req.Quantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	comment := req.Comment
	if comment == "" {
		comment = fmt.Sprintf("Batch %s received", req.BatchRef)
	}

	created := make([]string, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		serial, err := generateSerial(req.Operator, now)
		if err != nil {
			return nil, fmt.Errorf("generating serial: %w", err)
		}

		c := &model.Concentrator{
			Serial:         serial,
			Model:          req.Model,
			Operator:       req.Operator,
			State:          model.StateInStock,
			Location:       model.LocationWarehouse,
			BatchRef:       req.BatchRef,
			AssignedAt:     &now,
			StateChangedAt: &now,
		}
		if err := store.CreateConcentratorTx(ctx, tx, c); err != nil {
			return nil, err
		}

		event := &model.AuditEvent{
			Action:      model.ActionReception,
			OccurredAt:  now,
			PrevState:   model.StateInDelivery,
			NewState:    model.StateInStock,
			NewLocation: model.LocationWarehouse,
			Comment:     comment,
			UserID:      actor.ID,
			Serial:      serial,
			BatchRef:    req.BatchRef,
		}
		if err := store.AppendAuditEventTx(ctx, tx, event); err != nil {
			return nil, err
		}

		created = append(created, serial)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing reception: %v", model.ErrUnavailable, err)
	}

	return &ReceptionResult{BatchRef: req.BatchRef, Created: created}, nil
}

// generateSerial builds a unique serial number of the form
// CPL-<OPERATOR>-<YYYYMMDD>-<RANDOM>.
func generateSerial(operator string, now time.Time) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	prefix := strings.ToUpper(operator)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	return fmt.Sprintf("CPL-%s-%s-%s",
		prefix, now.Format("20060102"), strings.ToUpper(hex.EncodeToString(buf))), nil
}
