package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/policy"
)

// UpdateRequest enumerates the mutable concentrator fields. Only fields the
// caller explicitly set (non-nil) are applied; everything else is left alone.
type UpdateRequest struct {
	Model    *string      `json:"model,omitempty"`
	Operator *string      `json:"operator,omitempty"`
	State    *model.State `json:"state,omitempty"`
	Location *string      `json:"location,omitempty"`
	SiteID   *int64       `json:"site_id,omitempty"`
	BatchRef *string      `json:"batch_ref,omitempty"`
	Comment  *string      `json:"comment,omitempty"`
}

// ManualUpdate applies an explicit partial update, recorded as a
// manual_update audit event capturing the before and after values.
func ManualUpdate(ctx context.Context, db *sql.DB, actor *model.User, serial string, req UpdateRequest) (*Result, error) {
	if !policy.CanPerform(actor, model.ActionManualUpdate) {
		return nil, fmt.Errorf("%w: role %s cannot update concentrators", model.ErrForbidden, actor.Role)
	}
	if req.State != nil && !model.ValidState(*req.State) {
		return nil, fmt.Errorf("%w: unknown state %q", model.ErrInvalidArgument, *req.State)
	}

	return mutate(ctx, db, actor, serial, func(now time.Time, c *model.Concentrator) (*model.AuditEvent, error) {
		if req.Model != nil {
			c.Model = *req.Model
		}
		if req.Operator != nil {
			c.Operator = *req.Operator
		}
		if req.State != nil {
			c.State = *req.State
		}
		if req.Location != nil {
			c.Location = *req.Location
		}
		if req.SiteID != nil {
			c.SiteID = req.SiteID
		}
		if req.BatchRef != nil {
			c.BatchRef = *req.BatchRef
		}
		if req.Comment != nil {
			c.Comment = *req.Comment
		}

		// The fault flag tracks the scrapped state, never the other way
		// around.
		c.Faulty = c.State == model.StateScrapped

		event := &model.AuditEvent{Action: model.ActionManualUpdate}
		if req.Comment != nil {
			event.Comment = *req.Comment
		}
		return event, nil
	})
}
