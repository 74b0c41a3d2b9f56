package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adurand/parcops/internal/model"
)

const siteColumns = `id, code, name, location, base, latitude, longitude, created_at`

func scanSite(row rowScanner) (*model.Site, error) {
	s := &model.Site{}
	var name, location, base sql.NullString
	err := row.Scan(&s.ID, &s.Code, &name, &location, &base, &s.Latitude, &s.Longitude, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Name = name.String
	s.Location = location.String
	s.Base = base.String
	return s, nil
}

// CreateSite creates a new installation site.
func CreateSite(ctx context.Context, db *sql.DB, s *model.Site) (*model.Site, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO sites (code, name, location, base, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.Code, nullString(s.Name), nullString(s.Location), nullString(s.Base),
		s.Latitude, s.Longitude,
	)
	if err != nil {
		return nil, fmt.Errorf("creating site: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting site id: %w", err)
	}

	return GetSite(ctx, db, id)
}

// GetSite returns a site by ID.
func GetSite(ctx context.Context, db *sql.DB, id int64) (*model.Site, error) {
	s, err := scanSite(db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting site: %w", err)
	}
	return s, nil
}

// ListSites returns all sites, optionally filtered by base.
func ListSites(ctx context.Context, db *sql.DB, base string) ([]model.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites`
	var args []any
	if base != "" {
		query += ` WHERE base = ?`
		args = append(args, base)
	}
	query += ` ORDER BY code`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		sites = append(sites, *s)
	}
	return sites, rows.Err()
}

// CountSitesByBase returns site counts grouped by base.
func CountSitesByBase(ctx context.Context, db *sql.DB) (map[string]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT COALESCE(base, ''), COUNT(*) FROM sites GROUP BY base`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting sites by base: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var base string
		var n int
		if err := rows.Scan(&base, &n); err != nil {
			return nil, fmt.Errorf("scanning site count: %w", err)
		}
		counts[base] = n
	}
	return counts, rows.Err()
}
