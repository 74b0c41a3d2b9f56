package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/adurand/parcops/internal/db"
	"github.com/adurand/parcops/internal/model"
	"github.com/adurand/parcops/internal/store"
)

var userSeq int

func testUser(t *testing.T, database *sql.DB, role model.Role, base string) *model.User {
	t.Helper()
	userSeq++
	user, err := store.CreateUser(context.Background(), database, &model.User{
		FirstName:    "Test",
		LastName:     fmt.Sprintf("User%d", userSeq),
		Email:        fmt.Sprintf("user%d@example.com", userSeq),
		PasswordHash: "not-a-real-hash",
		Role:         role,
		Base:         base,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}

func seedConcentrator(t *testing.T, database *sql.DB, serial string, state model.State, location string) {
	t.Helper()
	ctx := context.Background()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	err = store.CreateConcentratorTx(ctx, tx, &model.Concentrator{
		Serial:   serial,
		Operator: "Orange",
		State:    state,
		Location: location,
	})
	if err != nil {
		t.Fatalf("seeding concentrator %s: %v", serial, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestReceptionCreatesUnits(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	actor := testUser(t, database, model.RoleWarehouse, "BO Nord")

	result, err := Reception(ctx, database, actor, ReceptionRequest{
		BatchRef: "LOT-2026-001",
		Operator: "Orange",
		Model:    "CPL-G3",
		Quantity: 10,
	})
	if err != nil {
		t.Fatalf("Reception: %v", err)
	}
	if len(result.Created) != 10 {
		t.Fatalf("expected 10 serials, got %d", len(result.Created))
	}

	for _, serial := range result.Created {
		c, err := store.GetConcentrator(ctx, database, serial)
		if err != nil {
			t.Fatal(err)
		}
		if c == nil {
			t.Fatalf("concentrator %s not found", serial)
		}
		if c.State != model.StateInStock {
			t.Errorf("%s: expected state in_stock, got %s", serial, c.State)
		}
		if c.Location != model.LocationWarehouse {
			t.Errorf("%s: expected warehouse location, got %q", serial, c.Location)
		}
		if c.BatchRef != "LOT-2026-001" {
			t.Errorf("%s: expected batch ref, got %q", serial, c.BatchRef)
		}

		events, err := store.ListAuditBySerial(ctx, database, serial, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 1 {
			t.Fatalf("%s: expected 1 audit event, got %d", serial, len(events))
		}
		if events[0].Action != model.ActionReception {
			t.Errorf("%s: expected reception event, got %s", serial, events[0].Action)
		}
	}

	batch, err := store.GetBatch(ctx, database, "LOT-2026-001")
	if err != nil {
		t.Fatal(err)
	}
	if batch == nil {
		t.Fatal("batch row not created")
	}
	if batch.UnitCount != 10 {
		t.Errorf("expected batch unit count 10, got %d", batch.UnitCount)
	}
}

func TestReceptionQuantityBounds(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	actor := testUser(t, database, model.RoleWarehouse, "BO Nord")

	for _, quantity := range []int{0, 51} {
		_, err := Reception(ctx, database, actor, ReceptionRequest{
			BatchRef: "LOT-2026-002",
			Operator: "Orange",
			Quantity: quantity,
		})
		if !errors.Is(err, model.ErrInvalidArgument) {
			t.Errorf("quantity %d: expected invalid argument, got %v", quantity, err)
		}
	}

	n, err := store.CountRows(ctx, database, "concentrators")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rejected receptions must create nothing, found %d rows", n)
	}
}

func TestReceptionForbiddenForFieldAgents(t *testing.T) {
	database := db.NewTestDB(t)
	actor := testUser(t, database, model.RoleFieldAgent, "BO Nord")

	_, err := Reception(context.Background(), database, actor, ReceptionRequest{
		BatchRef: "LOT-2026-003",
		Operator: "Orange",
		Quantity: 5,
	})
	if !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestTransferPartialSuccess(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	actor := testUser(t, database, model.RoleWarehouse, "")

	seedConcentrator(t, database, "CPL-A", model.StateInStock, model.LocationWarehouse)
	seedConcentrator(t, database, "CPL-B", model.StateInStock, model.LocationWarehouse)
	seedConcentrator(t, database, "CPL-C", model.StateInstalled, "BO Sud")

	result, err := Transfer(ctx, database, actor, TransferRequest{
		Destination: "BO Nord",
		Serials:     []string{"CPL-A", "CPL-B", "CPL-C"},
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(result.Transferred) != 2 {
		t.Fatalf("expected 2 transferred, got %d", len(result.Transferred))
	}
	if len(result.Errors) != 1 || result.Errors[0].Serial != "CPL-C" {
		t.Fatalf("expected one failure for CPL-C, got %+v", result.Errors)
	}

	for _, serial := range []string{"CPL-A", "CPL-B"} {
		c, err := store.GetConcentrator(ctx, database, serial)
		if err != nil {
			t.Fatal(err)
		}
		if c.Location != "BO Nord" {
			t.Errorf("%s: expected location BO Nord, got %q", serial, c.Location)
		}
		if c.State != model.StateInStock {
			t.Errorf("%s: transfer must not change state, got %s", serial, c.State)
		}
	}

	// The failed item must be untouched, with no audit event recorded.
	c, err := store.GetConcentrator(ctx, database, "CPL-C")
	if err != nil {
		t.Fatal(err)
	}
	if c.Location != "BO Sud" || c.State != model.StateInstalled {
		t.Errorf("failed item was modified: %s at %q", c.State, c.Location)
	}
	events, err := store.ListAuditBySerial(ctx, database, "CPL-C", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("failed item must not gain audit events, got %d", len(events))
	}
}

func TestPoseDeposeScrapLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	agent := testUser(t, database, model.RoleFieldAgent, "BO Nord")

	seedConcentrator(t, database, "CPL-LIFE", model.StateInStock, "BO Nord")

	result, err := Apply(ctx, database, agent, ActionRequest{
		Serial: "CPL-LIFE",
		Action: model.ActionPose,
	})
	if err != nil {
		t.Fatalf("pose: %v", err)
	}
	c := result.Concentrator
	if c.State != model.StateInstalled || c.Location != "BO Nord" {
		t.Fatalf("after pose: %s at %q", c.State, c.Location)
	}
	if c.InstalledAt == nil {
		t.Error("pose must set the installation timestamp")
	}
	if c.Faulty {
		t.Error("posed unit must not be faulty")
	}

	result, err = Apply(ctx, database, agent, ActionRequest{
		Serial: "CPL-LIFE",
		Action: model.ActionDepose,
	})
	if err != nil {
		t.Fatalf("depose: %v", err)
	}
	c = result.Concentrator
	if c.State != model.StateInStock || c.Location != model.LocationLab {
		t.Fatalf("deposed unit must route to the lab, got %s at %q", c.State, c.Location)
	}

	result, err = Apply(ctx, database, agent, ActionRequest{
		Serial: "CPL-LIFE",
		Action: model.ActionScrap,
	})
	if err != nil {
		t.Fatalf("scrap: %v", err)
	}
	c = result.Concentrator
	if c.State != model.StateScrapped || c.Location != model.LocationScrap {
		t.Fatalf("after scrap: %s at %q", c.State, c.Location)
	}
	if !c.Faulty {
		t.Error("scrapped unit must be faulty")
	}

	// Replaying the audit trail in insertion order must land on the same
	// state and location as the materialized row.
	events, err := store.ListAuditBySerial(ctx, database, "CPL-LIFE", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}

	var state model.State
	var location string
	for _, e := range events {
		if e.NewState != "" {
			state = e.NewState
		}
		if e.NewLocation != "" {
			location = e.NewLocation
		}
	}
	if state != c.State || location != c.Location {
		t.Errorf("audit replay gives %s at %q, row says %s at %q",
			state, location, c.State, c.Location)
	}
}

func TestPoseWithoutDestination(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := testUser(t, database, model.RoleAdmin, "")

	seedConcentrator(t, database, "CPL-POSE", model.StateInStock, model.LocationWarehouse)

	_, err := Apply(ctx, database, admin, ActionRequest{
		Serial: "CPL-POSE",
		Action: model.ActionPose,
	})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("baseless pose without location: expected invalid argument, got %v", err)
	}

	result, err := Apply(ctx, database, admin, ActionRequest{
		Serial:   "CPL-POSE",
		Action:   model.ActionPose,
		Location: "BO Sud",
	})
	if err != nil {
		t.Fatalf("pose with explicit location: %v", err)
	}
	if result.Concentrator.Location != "BO Sud" {
		t.Errorf("expected BO Sud, got %q", result.Concentrator.Location)
	}
}

func TestLabTestOutcomes(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tech := testUser(t, database, model.RoleLab, "")

	seedConcentrator(t, database, "CPL-OK", model.StateInStock, model.LocationLab)
	seedConcentrator(t, database, "CPL-DEAD", model.StateInStock, model.LocationLab)

	result, err := LabTest(ctx, database, tech, "CPL-OK", model.LabResultRepairable, "filters replaced")
	if err != nil {
		t.Fatalf("repairable lab test: %v", err)
	}
	c := result.Concentrator
	if c.State != model.StateInStock || c.Location != model.LocationWarehouse {
		t.Errorf("repairable unit must return to warehouse stock, got %s at %q", c.State, c.Location)
	}
	if c.Faulty {
		t.Error("repairable unit must not be faulty")
	}
	if result.Event.Action != model.ActionLabTest {
		t.Errorf("expected lab_test event, got %s", result.Event.Action)
	}

	result, err = LabTest(ctx, database, tech, "CPL-DEAD", model.LabResultFaulty, "")
	if err != nil {
		t.Fatalf("condemning lab test: %v", err)
	}
	c = result.Concentrator
	if c.State != model.StateScrapped || c.Location != model.LocationScrap {
		t.Errorf("condemned unit must be scrapped, got %s at %q", c.State, c.Location)
	}
	if !c.Faulty {
		t.Error("condemned unit must be faulty")
	}
	if result.Event.Action != model.ActionScrap {
		t.Errorf("condemnation records a scrap event, got %s", result.Event.Action)
	}
}

func TestLabTestRequiresLabLocation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	tech := testUser(t, database, model.RoleLab, "")

	seedConcentrator(t, database, "CPL-WH", model.StateInStock, model.LocationWarehouse)

	_, err := LabTest(ctx, database, tech, "CPL-WH", model.LabResultRepairable, "")
	if !errors.Is(err, model.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	// The rejection must leave the row and the audit trail untouched.
	c, err := store.GetConcentrator(ctx, database, "CPL-WH")
	if err != nil {
		t.Fatal(err)
	}
	if c.State != model.StateInStock || c.Location != model.LocationWarehouse {
		t.Errorf("rejected lab test modified the row: %s at %q", c.State, c.Location)
	}
	events, err := store.ListAuditBySerial(ctx, database, "CPL-WH", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("rejected lab test appended %d audit events", len(events))
	}
}

func TestLabTestUnknownResult(t *testing.T) {
	database := db.NewTestDB(t)
	tech := testUser(t, database, model.RoleLab, "")

	_, err := LabTest(context.Background(), database, tech, "CPL-X", "maybe", "")
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestManualUpdatePartialFields(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	admin := testUser(t, database, model.RoleAdmin, "")

	seedConcentrator(t, database, "CPL-UPD", model.StateInStock, model.LocationWarehouse)

	operator := "SFR"
	result, err := ManualUpdate(ctx, database, admin, "CPL-UPD", UpdateRequest{
		Operator: &operator,
	})
	if err != nil {
		t.Fatalf("ManualUpdate: %v", err)
	}
	c := result.Concentrator
	if c.Operator != "SFR" {
		t.Errorf("expected operator SFR, got %q", c.Operator)
	}
	if c.State != model.StateInStock || c.Location != model.LocationWarehouse {
		t.Errorf("untouched fields changed: %s at %q", c.State, c.Location)
	}
	if result.Event.Action != model.ActionManualUpdate {
		t.Errorf("expected manual_update event, got %s", result.Event.Action)
	}

	// Forcing the scrapped state must flip the fault flag with it.
	scrapped := model.StateScrapped
	result, err = ManualUpdate(ctx, database, admin, "CPL-UPD", UpdateRequest{
		State: &scrapped,
	})
	if err != nil {
		t.Fatalf("ManualUpdate to scrapped: %v", err)
	}
	if !result.Concentrator.Faulty {
		t.Error("scrapped state must imply faulty")
	}
}

func TestManualUpdateUnknownState(t *testing.T) {
	database := db.NewTestDB(t)
	admin := testUser(t, database, model.RoleAdmin, "")

	bogus := model.State("lost")
	_, err := ManualUpdate(context.Background(), database, admin, "CPL-X", UpdateRequest{
		State: &bogus,
	})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestApplyUnknownAction(t *testing.T) {
	database := db.NewTestDB(t)
	admin := testUser(t, database, model.RoleAdmin, "")

	_, err := Apply(context.Background(), database, admin, ActionRequest{
		Serial: "CPL-X",
		Action: "explode",
	})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestApplyMissingConcentrator(t *testing.T) {
	database := db.NewTestDB(t)
	admin := testUser(t, database, model.RoleAdmin, "")

	_, err := Apply(context.Background(), database, admin, ActionRequest{
		Serial:   "CPL-GHOST",
		Action:   model.ActionPose,
		Location: "BO Nord",
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateDuplicateSerial(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	manager := testUser(t, database, model.RoleManager, "BO Nord")

	req := CreateRequest{
		Serial:   "CPL-DUP",
		Operator: "Orange",
		Location: model.LocationWarehouse,
	}
	result, err := Create(ctx, database, manager, req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Concentrator.State != model.StateInStock {
		t.Errorf("warehouse creation must start in stock, got %s", result.Concentrator.State)
	}

	_, err = Create(ctx, database, manager, req)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateRoleRestricted(t *testing.T) {
	database := db.NewTestDB(t)
	worker := testUser(t, database, model.RoleWarehouse, "BO Nord")

	_, err := Create(context.Background(), database, worker, CreateRequest{
		Serial:   "CPL-NEW",
		Operator: "Orange",
	})
	if !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateOffWarehouseStartsInDelivery(t *testing.T) {
	database := db.NewTestDB(t)
	admin := testUser(t, database, model.RoleAdmin, "")

	result, err := Create(context.Background(), database, admin, CreateRequest{
		Serial:   "CPL-DIRECT",
		Operator: "Bouygues",
		Location: "BO Sud",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Concentrator.State != model.StateInDelivery {
		t.Errorf("expected in_delivery, got %s", result.Concentrator.State)
	}
}
