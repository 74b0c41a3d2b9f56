// Package stats derives read-only rollups from the repository. It applies no
// business rules; visibility scoping comes from the policy package and is
// applied before counting, so a restricted caller can never observe global
// totals.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/policy"
	"github.com/adurand/parcops/internal/store"
)

// Overview is the dashboard summary. Reference-data totals are only included
// for unrestricted callers.
type Overview struct {
	Total            int            `json:"total"`
	ByState          map[string]int `json:"by_state"`
	InStockWarehouse int            `json:"in_stock_warehouse"`
	InStockBases     int            `json:"in_stock_bases"`
	ActionsToday     int            `json:"actions_today"`
	TotalSites       int            `json:"total_sites,omitempty"`
	TotalBatches     int            `json:"total_batches,omitempty"`
	TotalUsers       int            `json:"total_users,omitempty"`
}

// GetOverview aggregates fleet counts scoped to the caller.
func GetOverview(ctx context.Context, db *sql.DB, caller *model.User) (*Overview, error) {
	base := policy.Filter(caller)
	scoped := store.ConcentratorFilter{Base: base}

	byState, err := store.CountConcentratorsBy(ctx, db, "state", scoped)
	if err != nil {
		return nil, err
	}

	o := &Overview{ByState: byState}
	for _, n := range byState {
		o.Total += n
	}

	stockByLocation, err := store.CountConcentratorsBy(ctx, db, "location",
		store.ConcentratorFilter{Base: base, State: model.StateInStock})
	if err != nil {
		return nil, err
	}
	for location, n := range stockByLocation {
		switch location {
		case model.LocationWarehouse:
			o.InStockWarehouse += n
		case model.LocationLab, model.LocationScrap, "":
			// Lab and scrap stock is neither warehouse nor base stock.
		default:
			o.InStockBases += n
		}
	}

	// "Today" is the calendar day boundary in UTC.
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	o.ActionsToday, err = store.CountAuditSince(ctx, db, midnight, base)
	if err != nil {
		return nil, err
	}

	if policy.ScopeFor(caller).Unrestricted {
		for table, dst := range map[string]*int{
			"sites":   &o.TotalSites,
			"batches": &o.TotalBatches,
			"users":   &o.TotalUsers,
		} {
			n, err := store.CountRows(ctx, db, table)
			if err != nil {
				return nil, err
			}
			*dst = n
		}
	}

	return o, nil
}

// BaseStock is the per-base breakdown row.
type BaseStock struct {
	Base       string         `json:"base"`
	Total      int            `json:"total"`
	ByState    map[string]int `json:"by_state"`
	Percentage float64        `json:"percentage"`
}

// StocksByBase breaks the fleet down per location, with each base's share of
// the scoped total.
func StocksByBase(ctx context.Context, db *sql.DB, caller *model.User) ([]BaseStock, error) {
	base := policy.Filter(caller)
	scoped := store.ConcentratorFilter{Base: base}

	totals, err := store.CountConcentratorsBy(ctx, db, "location", scoped)
	if err != nil {
		return nil, err
	}

	perState := make(map[model.State]map[string]int)
	for _, state := range []model.State{
		model.StateInDelivery, model.StateInStock, model.StateInstalled,
		model.StateReturnedToManufacturer, model.StateScrapped,
	} {
		counts, err := store.CountConcentratorsBy(ctx, db, "location",
			store.ConcentratorFilter{Base: base, State: state})
		if err != nil {
			return nil, err
		}
		perState[state] = counts
	}

	grandTotal := 0
	for _, n := range totals {
		grandTotal += n
	}

	var stocks []BaseStock
	for location, total := range totals {
		if location == "" {
			continue
		}
		row := BaseStock{
			Base:    location,
			Total:   total,
			ByState: make(map[string]int),
		}
		for state, counts := range perState {
			if n := counts[location]; n > 0 {
				row.ByState[string(state)] = n
			}
		}
		if grandTotal > 0 {
			row.Percentage = math.Round(float64(total)/float64(grandTotal)*1000) / 10
		}
		stocks = append(stocks, row)
	}
	return stocks, nil
}

// OperatorStock is the per-carrier breakdown row.
type OperatorStock struct {
	Operator  string `json:"operator"`
	Total     int    `json:"total"`
	InStock   int    `json:"in_stock"`
	Installed int    `json:"installed"`
	Scrapped  int    `json:"scrapped"`
}

// ByOperator breaks the fleet down per carrier.
func ByOperator(ctx context.Context, db *sql.DB, caller *model.User) ([]OperatorStock, error) {
	base := policy.Filter(caller)

	totals, err := store.CountConcentratorsBy(ctx, db, "operator", store.ConcentratorFilter{Base: base})
	if err != nil {
		return nil, err
	}
	inStock, err := store.CountConcentratorsBy(ctx, db, "operator",
		store.ConcentratorFilter{Base: base, State: model.StateInStock})
	if err != nil {
		return nil, err
	}
	installed, err := store.CountConcentratorsBy(ctx, db, "operator",
		store.ConcentratorFilter{Base: base, State: model.StateInstalled})
	if err != nil {
		return nil, err
	}
	scrapped, err := store.CountConcentratorsBy(ctx, db, "operator",
		store.ConcentratorFilter{Base: base, State: model.StateScrapped})
	if err != nil {
		return nil, err
	}

	var operators []OperatorStock
	for operator, total := range totals {
		operators = append(operators, OperatorStock{
			Operator:  operator,
			Total:     total,
			InStock:   inStock[operator],
			Installed: installed[operator],
			Scrapped:  scrapped[operator],
		})
	}
	return operators, nil
}

// RecentActions returns the latest audit events visible to the caller,
// enriched with actor display info. A missing actor degrades to "unknown"
// instead of failing the feed.
func RecentActions(ctx context.Context, db *sql.DB, caller *model.User, limit int) ([]model.AuditEvent, error) {
	events, err := store.ListRecentAudit(ctx, db, limit, policy.Filter(caller))
	if err != nil {
		return nil, err
	}

	users := make(map[int64]*model.User)
	for i := range events {
		u, ok := users[events[i].UserID]
		if !ok {
			u, err = store.GetUser(ctx, db, events[i].UserID)
			if err != nil {
				return nil, err
			}
			users[events[i].UserID] = u
		}
		if u == nil {
			events[i].UserName = "unknown"
			continue
		}
		events[i].UserName = fmt.Sprintf("%s %s", u.FirstName, u.LastName)
		events[i].UserRole = u.Role
	}
	return events, nil
}
