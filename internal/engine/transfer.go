package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/policy"
)

// TransferRequest moves warehouse stock to an operational base.
type TransferRequest struct {
	Destination string   `json:"destination"`
	Serials     []string `json:"serials"`
	Comment     string   `json:"comment,omitempty"`
}

// TransferItemError describes one serial that could not be transferred.
type TransferItemError struct {
	Serial string `json:"serial"`
	Reason string `json:"reason"`
}

// TransferResult reports best-effort batch semantics: successes next to
// per-item failures.
type TransferResult struct {
	Destination string              `json:"destination"`
	Transferred []string            `json:"transferred"`
	Errors      []TransferItemError `json:"errors,omitempty"`
}

// Transfer moves concentrators from the warehouse to a destination base. Each
// serial is validated and committed independently; a failure on one item
// never aborts the others.
func Transfer(ctx context.Context, db *sql.DB, actor *model.User, req TransferRequest) (*TransferResult, error) {
	if !policy.CanPerform(actor, model.ActionTransfer) {
		return nil, fmt.Errorf("%w: role %s cannot transfer stock", model.ErrForbidden, actor.Role)
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("%w: destination base required", model.ErrInvalidArgument)
	}
	if len(req.Serials) == 0 {
		return nil, fmt.Errorf("%w: no serials given", model.ErrInvalidArgument)
	}

	result := &TransferResult{Destination: req.Destination}
	for _, serial := range req.Serials {
		if err := transferOne(ctx, db, actor, serial, req); err != nil {
			result.Errors = append(result.Errors, TransferItemError{
				Serial: serial,
				Reason: err.Error(),
			})
			continue
		}
		result.Transferred = append(result.Transferred, serial)
	}
	return result, nil
}

func transferOne(ctx context.Context, db *sql.DB, actor *model.User, serial string, req TransferRequest) error {
	comment := req.Comment
	if comment == "" {
		comment = fmt.Sprintf("Transfer to %s", req.Destination)
	}

	_, err := mutate(ctx, db, actor, serial, func(now time.Time, c *model.Concentrator) (*model.AuditEvent, error) {
		if c.Location != model.LocationWarehouse {
			return nil, fmt.Errorf("%w: concentrator %s is not at the warehouse (location %q)",
				model.ErrInvalidState, serial, c.Location)
		}

		// State is deliberately unchanged; only the affectation moves.
		c.Location = req.Destination
		return &model.AuditEvent{
			Action:  model.ActionTransfer,
			Comment: comment,
		}, nil
	})
	return err
}
