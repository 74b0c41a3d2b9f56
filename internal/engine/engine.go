// Package engine owns the concentrator lifecycle rules. Every accepted action
// mutates the concentrator row and appends exactly one audit event in the same
// transaction; a rejected action leaves both untouched.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/policy"
	"github.com/adurand/parcops/internal/store"
)

// Reception quantity bounds per call.
const (
	MinReceptionQuantity = 1
	MaxReceptionQuantity = 50
)

// ActionRequest is a single-unit action submission.
type ActionRequest struct {
	Serial   string       `json:"serial"`
	Action   model.Action `json:"action"`
	Location string       `json:"location,omitempty"`
	SiteID   *int64       `json:"site_id,omitempty"`
	Comment  string       `json:"comment,omitempty"`
	Scanned  bool         `json:"scanned,omitempty"`
}

// Result is the outcome of one accepted action.
type Result struct {
	Concentrator *model.Concentrator `json:"concentrator"`
	Event        *model.AuditEvent   `json:"event"`
}

// Apply executes a single-unit action: pose, depose or scrap. Batch intake,
// transfers, lab tests and manual updates have dedicated entry points.
func Apply(ctx context.Context, db *sql.DB, actor *model.User, req ActionRequest) (*Result, error) {
	if !model.ValidAction(req.Action) {
		return nil, fmt.Errorf("%w: unknown action %q", model.ErrInvalidArgument, req.Action)
	}
	if !policy.CanPerform(actor, req.Action) {
		return nil, fmt.Errorf("%w: role %s cannot perform %s", model.ErrForbidden, actor.Role, req.Action)
	}

	switch req.Action {
	case model.ActionPose:
		return pose(ctx, db, actor, req)
	case model.ActionDepose:
		return depose(ctx, db, actor, req)
	case model.ActionScrap:
		return scrap(ctx, db, actor, req)
	default:
		return nil, fmt.Errorf("%w: action %s has a dedicated endpoint", model.ErrInvalidArgument, req.Action)
	}
}

func pose(ctx context.Context, db *sql.DB, actor *model.User, req ActionRequest) (*Result, error) {
	// Installs land at the caller's assigned base. Admins have no base, so
	// they must name the destination explicitly.
	dest := actor.Base
	if dest == "" {
		dest = req.Location
	}
	if dest == "" {
		return nil, fmt.Errorf("%w: no destination base for pose", model.ErrInvalidArgument)
	}

	return mutate(ctx, db, actor, req.Serial, func(now time.Time, c *model.Concentrator) (*model.AuditEvent, error) {
		c.State = model.StateInstalled
		c.Location = dest
		c.Faulty = false
		c.InstalledAt = &now
		if req.SiteID != nil {
			c.SiteID = req.SiteID
		}
		return &model.AuditEvent{
			Action:  model.ActionPose,
			Comment: req.Comment,
			Scanned: req.Scanned,
			SiteID:  req.SiteID,
		}, nil
	})
}

func depose(ctx context.Context, db *sql.DB, actor *model.User, req ActionRequest) (*Result, error) {
	return mutate(ctx, db, actor, req.Serial, func(now time.Time, c *model.Concentrator) (*model.AuditEvent, error) {
		// Removed units always route through the lab for inspection.
		c.State = model.StateInStock
		c.Location = model.LocationLab
		c.Faulty = false
		return &model.AuditEvent{
			Action:  model.ActionDepose,
			Comment: req.Comment,
			Scanned: req.Scanned,
		}, nil
	})
}

func scrap(ctx context.Context, db *sql.DB, actor *model.User, req ActionRequest) (*Result, error) {
	return mutate(ctx, db, actor, req.Serial, func(now time.Time, c *model.Concentrator) (*model.AuditEvent, error) {
		c.State = model.StateScrapped
		c.Location = model.LocationScrap
		c.Faulty = true
		return &model.AuditEvent{
			Action:  model.ActionScrap,
			Comment: req.Comment,
			Scanned: req.Scanned,
		}, nil
	})
}

// LabTest records the outcome of a lab inspection. Repairable units return to
// warehouse stock; condemned units are scrapped and flagged faulty.
func LabTest(ctx context.Context, db *sql.DB, actor *model.User, serial, result, comment string) (*Result, error) {
	if !policy.CanPerform(actor, model.ActionLabTest) {
		return nil, fmt.Errorf("%w: role %s cannot record lab tests", model.ErrForbidden, actor.Role)
	}
	if result != model.LabResultRepairable && result != model.LabResultFaulty {
		return nil, fmt.Errorf("%w: unknown lab result %q", model.ErrInvalidArgument, result)
	}

	return mutate(ctx, db, actor, serial, func(now time.Time, c *model.Concentrator) (*model.AuditEvent, error) {
		if c.Location != model.LocationLab {
			return nil, fmt.Errorf("%w: concentrator %s is not at the lab (location %q)",
				model.ErrInvalidState, serial, c.Location)
		}

		event := &model.AuditEvent{
			Comment: strings.TrimSpace(fmt.Sprintf("Lab test: %s. %s", strings.ToUpper(result), comment)),
		}
		if result == model.LabResultRepairable {
			c.State = model.StateInStock
			c.Location = model.LocationWarehouse
			c.Faulty = false
			event.Action = model.ActionLabTest
		} else {
			c.State = model.StateScrapped
			c.Location = model.LocationScrap
			c.Faulty = true
			event.Action = model.ActionScrap
		}
		return event, nil
	})
}

// mutate runs one read-modify-write unit of work: load the row in a
// transaction, let apply rewrite it, persist via compare-and-set and append
// the paired audit event. Either everything commits or nothing does.
func mutate(ctx context.Context, db *sql.DB, actor *model.User, serial string,
	apply func(now time.Time, c *model.Concentrator) (*model.AuditEvent, error)) (*Result, error) {

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %v", model.ErrUnavailable, err)
	}
	defer tx.Rollback()

	c, err := store.GetConcentratorTx(ctx, tx, serial)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: concentrator %s", model.ErrNotFound, serial)
	}

	prevState := c.State
	prevLocation := c.Location

	now := time.Now().UTC()
	event, err := apply(now, c)
	if err != nil {
		return nil, err
	}

	c.StateChangedAt = &now
	if c.Location != prevLocation {
		c.AssignedAt = &now
	}
	if event.Comment != "" {
		c.Comment = event.Comment
	}

	if err := store.UpdateConcentratorTx(ctx, tx, c); err != nil {
		return nil, err
	}

	event.PrevState = prevState
	event.NewState = c.State
	event.PrevLocation = prevLocation
	event.NewLocation = c.Location
	event.UserID = actor.ID
	event.Serial = c.Serial
	event.OccurredAt = now
	if err := store.AppendAuditEventTx(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing action: %v", model.ErrUnavailable, err)
	}

	return &Result{Concentrator: c, Event: event}, nil
}
