package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/adurand/parcops/internal/model"
)

// The audit trail is append-only: this file deliberately exposes no update or
// delete operation.

// AuditFilter narrows audit event queries. Zero values mean "no filter".
type AuditFilter struct {
	Serial string
	UserID int64
	Action model.Action
}

const auditColumns = `id, action, occurred_at, prev_state, new_state,
	prev_location, new_location, comment, scanned, user_id, serial, batch_ref, site_id`

// AppendAuditEventTx appends an audit event inside the transaction that
// carries the matching concentrator mutation. The id is assigned by the
// database; the timestamp is assigned here if absent.
func AppendAuditEventTx(ctx context.Context, tx *sql.Tx, e *model.AuditEvent) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO audit_events (action, occurred_at, prev_state, new_state, prev_location, new_location,
		     comment, scanned, user_id, serial, batch_ref, site_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Action, e.OccurredAt, nullString(string(e.PrevState)), nullString(string(e.NewState)),
		nullString(e.PrevLocation), nullString(e.NewLocation),
		nullString(e.Comment), e.Scanned, e.UserID, nullString(e.Serial),
		nullString(e.BatchRef), e.SiteID,
	)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting audit event id: %w", err)
	}
	e.ID = id
	return nil
}

func scanAuditEvent(row rowScanner) (*model.AuditEvent, error) {
	e := &model.AuditEvent{}
	var prevState, newState, prevLoc, newLoc, comment, serial, batchRef sql.NullString
	err := row.Scan(&e.ID, &e.Action, &e.OccurredAt, &prevState, &newState,
		&prevLoc, &newLoc, &comment, &e.Scanned, &e.UserID, &serial, &batchRef, &e.SiteID)
	if err != nil {
		return nil, err
	}
	e.PrevState = model.State(prevState.String)
	e.NewState = model.State(newState.String)
	e.PrevLocation = prevLoc.String
	e.NewLocation = newLoc.String
	e.Comment = comment.String
	e.Serial = serial.String
	e.BatchRef = batchRef.String
	return e, nil
}

// ListAuditBySerial returns all audit events for one concentrator. With
// newestFirst the order suits display; otherwise events come back in
// insertion order, the order used to replay history.
func ListAuditBySerial(ctx context.Context, db *sql.DB, serial string, newestFirst bool) ([]model.AuditEvent, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_events WHERE serial = ? ORDER BY id `+order,
		serial,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	return collectAuditEvents(rows)
}

// ListRecentAudit returns the most recent audit events, newest first. A
// non-empty base restricts the feed to events whose new location is that base.
func ListRecentAudit(ctx context.Context, db *sql.DB, limit int, base string) ([]model.AuditEvent, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_events`
	var args []any
	if base != "" {
		query += ` WHERE new_location = ?`
		args = append(args, base)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing recent audit events: %w", err)
	}
	defer rows.Close()

	return collectAuditEvents(rows)
}

// QueryAuditEvents returns a page of audit events matching the filter, newest
// first, along with the total match count.
func QueryAuditEvents(ctx context.Context, db *sql.DB, filter AuditFilter, page, limit int) ([]model.AuditEvent, int, error) {
	var conds []string
	var args []any
	if filter.Serial != "" {
		conds = append(conds, "serial = ?")
		args = append(args, filter.Serial)
	}
	if filter.UserID > 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, filter.Action)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_events`+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting audit events: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_events`+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	events, err := collectAuditEvents(rows)
	return events, total, err
}

// CountAuditSince returns the number of audit events recorded at or after a
// cutoff timestamp, optionally restricted to one base (matched against the
// event's new location).
func CountAuditSince(ctx context.Context, db *sql.DB, cutoff time.Time, base string) (int, error) {
	query := `SELECT COUNT(*) FROM audit_events WHERE occurred_at >= ?`
	args := []any{cutoff}
	if base != "" {
		query += ` AND new_location = ?`
		args = append(args, base)
	}

	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit events: %w", err)
	}
	return n, nil
}

func collectAuditEvents(rows *sql.Rows) ([]model.AuditEvent, error) {
	var events []model.AuditEvent
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
