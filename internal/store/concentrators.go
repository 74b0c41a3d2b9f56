package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/adurand/parcops/internal/model"
)

// ConcentratorFilter narrows concentrator queries. Zero values mean "no
// filter". Base is the access-scope filter and is applied on top of the
// caller-supplied filters.
type ConcentratorFilter struct {
	Search   string
	State    model.State
	Location string
	Operator string
	Base     string
}

const concentratorColumns = `serial, model, operator, state, location, faulty,
	installed_at, assigned_at, state_changed_at, comment, photo_mime,
	batch_ref, site_id, order_id, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConcentrator(row rowScanner) (*model.Concentrator, error) {
	c := &model.Concentrator{}
	var mdl, location, comment, photoMime, batchRef sql.NullString
	err := row.Scan(&c.Serial, &mdl, &c.Operator, &c.State, &location, &c.Faulty,
		&c.InstalledAt, &c.AssignedAt, &c.StateChangedAt, &comment, &photoMime,
		&batchRef, &c.SiteID, &c.OrderID, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Model = mdl.String
	c.Location = location.String
	c.Comment = comment.String
	c.PhotoMime = photoMime.String
	c.BatchRef = batchRef.String
	return c, nil
}

// GetConcentrator returns a concentrator by serial number.
func GetConcentrator(ctx context.Context, db *sql.DB, serial string) (*model.Concentrator, error) {
	c, err := scanConcentrator(db.QueryRowContext(ctx,
		`SELECT `+concentratorColumns+` FROM concentrators WHERE serial = ?`, serial,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting concentrator: %w", err)
	}
	return c, nil
}

// GetConcentratorTx returns a concentrator by serial inside a transaction, so
// that the engine's read-modify-write sees a consistent row.
func GetConcentratorTx(ctx context.Context, tx *sql.Tx, serial string) (*model.Concentrator, error) {
	c, err := scanConcentrator(tx.QueryRowContext(ctx,
		`SELECT `+concentratorColumns+` FROM concentrators WHERE serial = ?`, serial,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting concentrator: %w", err)
	}
	return c, nil
}

// CreateConcentratorTx inserts a new concentrator row.
func CreateConcentratorTx(ctx context.Context, tx *sql.Tx, c *model.Concentrator) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO concentrators (serial, model, operator, state, location, faulty,
		     installed_at, assigned_at, state_changed_at, comment, batch_ref, site_id, order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Serial, nullString(c.Model), c.Operator, c.State, nullString(c.Location), c.Faulty,
		c.InstalledAt, c.AssignedAt, c.StateChangedAt, nullString(c.Comment),
		nullString(c.BatchRef), c.SiteID, c.OrderID,
	)
	if err != nil {
		return fmt.Errorf("creating concentrator: %w", err)
	}
	return nil
}

// UpdateConcentratorTx writes back a mutated concentrator row. The update is
// a compare-and-set on the version column: if the row was modified since the
// caller read it, no row matches and model.ErrConflict is returned.
func UpdateConcentratorTx(ctx context.Context, tx *sql.Tx, c *model.Concentrator) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE concentrators
		 SET model = ?, operator = ?, state = ?, location = ?, faulty = ?,
		     installed_at = ?, assigned_at = ?, state_changed_at = ?, comment = ?,
		     batch_ref = ?, site_id = ?, order_id = ?,
		     version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE serial = ? AND version = ?`,
		nullString(c.Model), c.Operator, c.State, nullString(c.Location), c.Faulty,
		c.InstalledAt, c.AssignedAt, c.StateChangedAt, nullString(c.Comment),
		nullString(c.BatchRef), c.SiteID, c.OrderID,
		c.Serial, c.Version,
	)
	if err != nil {
		return fmt.Errorf("updating concentrator: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating concentrator: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("concentrator %s modified concurrently: %w", c.Serial, model.ErrConflict)
	}
	c.Version++
	return nil
}

// QueryConcentrators returns a page of concentrators matching the filter,
// newest state change first, along with the total match count.
func QueryConcentrators(ctx context.Context, db *sql.DB, filter ConcentratorFilter, page, limit int) ([]model.Concentrator, int, error) {
	where, args := concentratorWhere(filter)

	var total int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM concentrators`+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting concentrators: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := db.QueryContext(ctx,
		`SELECT `+concentratorColumns+` FROM concentrators`+where+
			` ORDER BY state_changed_at DESC, serial LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing concentrators: %w", err)
	}
	defer rows.Close()

	var items []model.Concentrator
	for rows.Next() {
		c, err := scanConcentrator(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning concentrator: %w", err)
		}
		items = append(items, *c)
	}
	return items, total, rows.Err()
}

// CountConcentratorsBy returns match counts grouped by a column. Only a fixed
// set of columns is accepted so filters can never smuggle in SQL.
func CountConcentratorsBy(ctx context.Context, db *sql.DB, column string, filter ConcentratorFilter) (map[string]int, error) {
	switch column {
	case "state", "location", "operator":
	default:
		return nil, fmt.Errorf("%w: cannot group by %q", model.ErrInvalidArgument, column)
	}

	where, args := concentratorWhere(filter)
	rows, err := db.QueryContext(ctx,
		`SELECT COALESCE(`+column+`, ''), COUNT(*) FROM concentrators`+where+
			` GROUP BY `+column, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("counting concentrators by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func concentratorWhere(filter ConcentratorFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Base != "" {
		conds = append(conds, "location = ?")
		args = append(args, filter.Base)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conds = append(conds, "(serial LIKE ? OR batch_ref LIKE ? OR operator LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if filter.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, filter.State)
	}
	if filter.Location != "" {
		conds = append(conds, "location = ?")
		args = append(args, filter.Location)
	}
	if filter.Operator != "" {
		conds = append(conds, "operator = ?")
		args = append(args, filter.Operator)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SetConcentratorPhoto stores a concentrator's photo data.
func SetConcentratorPhoto(ctx context.Context, db *sql.DB, serial string, photo []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE concentrators SET photo = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE serial = ?`,
		photo, mime, serial,
	)
	if err != nil {
		return fmt.Errorf("setting concentrator photo: %w", err)
	}
	return nil
}

// GetConcentratorPhoto returns a concentrator's photo data and MIME type.
func GetConcentratorPhoto(ctx context.Context, db *sql.DB, serial string) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM concentrators WHERE serial = ?`, serial,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting concentrator photo: %w", err)
	}
	return photo, mime.String, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
