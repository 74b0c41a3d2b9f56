package stats

import (
	"context"
	"database/sql"
	"testing"

	"github.com/adurand/parcops/internal/db"
	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/store"
)

func seed(t *testing.T, database *sql.DB, serial, operator string, state model.State, location string) {
	t.Helper()
	ctx := context.Background()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	err = store.CreateConcentratorTx(ctx, tx, &model.Concentrator{
		Serial:   serial,
		Operator: operator,
		State:    state,
		Location: location,
	})
	if err != nil {
		t.Fatalf("seeding %s: %v", serial, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func seedFleet(t *testing.T, database *sql.DB) {
	seed(t, database, "CPL-1", "Orange", model.StateInStock, model.LocationWarehouse)
	seed(t, database, "CPL-2", "Orange", model.StateInStock, model.LocationWarehouse)
	seed(t, database, "CPL-3", "Orange", model.StateInStock, "BO Nord")
	seed(t, database, "CPL-4", "SFR", model.StateInstalled, "BO Nord")
	seed(t, database, "CPL-5", "SFR", model.StateInstalled, "BO Sud")
	seed(t, database, "CPL-6", "SFR", model.StateScrapped, model.LocationScrap)
}

func TestGetOverviewUnrestricted(t *testing.T) {
	database := db.NewTestDB(t)
	seedFleet(t, database)
	admin := &model.User{ID: 1, Role: model.RoleAdmin}

	o, err := GetOverview(context.Background(), database, admin)
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}
	if o.Total != 6 {
		t.Errorf("expected total 6, got %d", o.Total)
	}
	if o.ByState["in_stock"] != 3 || o.ByState["installed"] != 2 || o.ByState["scrapped"] != 1 {
		t.Errorf("unexpected state counts: %v", o.ByState)
	}
	if o.InStockWarehouse != 2 {
		t.Errorf("expected 2 in warehouse stock, got %d", o.InStockWarehouse)
	}
	if o.InStockBases != 1 {
		t.Errorf("expected 1 in base stock, got %d", o.InStockBases)
	}
}

func TestGetOverviewScopedToBase(t *testing.T) {
	database := db.NewTestDB(t)
	seedFleet(t, database)
	agent := &model.User{ID: 2, Role: model.RoleFieldAgent, Base: "BO Nord"}

	o, err := GetOverview(context.Background(), database, agent)
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}

	// Only the two BO Nord units are visible; nothing from BO Sud or the
	// warehouse may leak into the counts.
	if o.Total != 2 {
		t.Errorf("expected scoped total 2, got %d", o.Total)
	}
	if o.ByState["in_stock"] != 1 || o.ByState["installed"] != 1 {
		t.Errorf("unexpected scoped state counts: %v", o.ByState)
	}
	if o.TotalSites != 0 || o.TotalBatches != 0 || o.TotalUsers != 0 {
		t.Errorf("reference totals must be withheld from restricted callers: %+v", o)
	}
}

func TestStocksByBase(t *testing.T) {
	database := db.NewTestDB(t)
	seedFleet(t, database)
	admin := &model.User{ID: 1, Role: model.RoleAdmin}

	stocks, err := StocksByBase(context.Background(), database, admin)
	if err != nil {
		t.Fatalf("StocksByBase: %v", err)
	}

	byBase := make(map[string]BaseStock)
	for _, s := range stocks {
		byBase[s.Base] = s
	}

	nord, ok := byBase["BO Nord"]
	if !ok {
		t.Fatal("BO Nord missing from breakdown")
	}
	if nord.Total != 2 {
		t.Errorf("BO Nord total: expected 2, got %d", nord.Total)
	}
	if nord.ByState["in_stock"] != 1 || nord.ByState["installed"] != 1 {
		t.Errorf("BO Nord state breakdown: %v", nord.ByState)
	}
	// 2 of 6 units, to one decimal place.
	if nord.Percentage != 33.3 {
		t.Errorf("BO Nord percentage: expected 33.3, got %v", nord.Percentage)
	}
}

func TestStocksByBaseScoped(t *testing.T) {
	database := db.NewTestDB(t)
	seedFleet(t, database)
	agent := &model.User{ID: 2, Role: model.RoleFieldAgent, Base: "BO Nord"}

	stocks, err := StocksByBase(context.Background(), database, agent)
	if err != nil {
		t.Fatalf("StocksByBase: %v", err)
	}
	for _, s := range stocks {
		if s.Base != "BO Nord" {
			t.Errorf("restricted caller saw base %q", s.Base)
		}
	}
}

func TestByOperator(t *testing.T) {
	database := db.NewTestDB(t)
	seedFleet(t, database)
	admin := &model.User{ID: 1, Role: model.RoleAdmin}

	operators, err := ByOperator(context.Background(), database, admin)
	if err != nil {
		t.Fatalf("ByOperator: %v", err)
	}

	byName := make(map[string]OperatorStock)
	for _, o := range operators {
		byName[o.Operator] = o
	}

	orange := byName["Orange"]
	if orange.Total != 3 || orange.InStock != 3 || orange.Installed != 0 {
		t.Errorf("Orange breakdown: %+v", orange)
	}
	sfr := byName["SFR"]
	if sfr.Total != 3 || sfr.Installed != 2 || sfr.Scrapped != 1 {
		t.Errorf("SFR breakdown: %+v", sfr)
	}
}

func TestRecentActionsEnrichment(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	actor, err := store.CreateUser(ctx, database, &model.User{
		FirstName:    "Nadia",
		LastName:     "Benali",
		Email:        "nadia@example.com",
		PasswordHash: "not-a-real-hash",
		Role:         model.RoleWarehouse,
		Base:         "BO Nord",
		Active:       true,
	})
	if err != nil {
		t.Fatal(err)
	}

	seed(t, database, "CPL-R", "Orange", model.StateInStock, model.LocationWarehouse)

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	event := model.AuditEvent{
		Action: model.ActionReception, Serial: "CPL-R", NewState: model.StateInStock,
		NewLocation: model.LocationWarehouse, UserID: actor.ID,
	}
	if err := store.AppendAuditEventTx(ctx, tx, &event); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	// Simulate an event whose actor row is gone, e.g. imported history.
	if _, err := database.Exec(`PRAGMA foreign_keys=OFF`); err != nil {
		t.Fatal(err)
	}
	_, err = database.Exec(
		`INSERT INTO audit_events (action, new_state, new_location, user_id, serial)
		 VALUES ('transfer', 'in_stock', 'BO Nord', 999, 'CPL-R')`,
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := database.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		t.Fatal(err)
	}

	admin := &model.User{ID: actor.ID, Role: model.RoleAdmin}
	recent, err := RecentActions(ctx, database, admin, 10)
	if err != nil {
		t.Fatalf("RecentActions: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}

	for _, e := range recent {
		switch e.UserID {
		case actor.ID:
			if e.UserName != "Nadia Benali" {
				t.Errorf("expected enriched name, got %q", e.UserName)
			}
		case 999:
			if e.UserName != "unknown" {
				t.Errorf("missing actor must degrade to unknown, got %q", e.UserName)
			}
		}
	}
}
