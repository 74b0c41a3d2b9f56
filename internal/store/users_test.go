package store

import (
	"context"
	"testing"

	"github.com/adurand/parcops/internal/db"
	"github.com/adurand/parcops/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, &model.User{
		FirstName:    "Karim",
		LastName:     "Haddad",
		Email:        "karim@example.com",
		PasswordHash: "hash",
		Role:         model.RoleFieldAgent,
		Base:         "BO Nord",
		Phone:        "+33600000000",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := GetUserByEmail(ctx, database, "karim@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("GetUserByEmail: %+v", got)
	}
	if got.Role != model.RoleFieldAgent || got.Base != "BO Nord" {
		t.Errorf("unexpected fields: %+v", got)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	u := &model.User{
		FirstName: "A", LastName: "B", Email: "dup@example.com",
		PasswordHash: "hash", Role: model.RoleLab, Base: "BO Nord", Active: true,
	}
	if _, err := CreateUser(ctx, database, u); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateUser(ctx, database, u); err == nil {
		t.Fatal("expected duplicate email to fail")
	}
}

func TestGetUserByEmailMissing(t *testing.T) {
	database := db.NewTestDB(t)

	user, err := GetUserByEmail(context.Background(), database, "ghost@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if user != nil {
		t.Fatalf("expected nil for missing email, got %+v", user)
	}
}

func TestUpdateAndDeactivateUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, &model.User{
		FirstName: "A", LastName: "B", Email: "move@example.com",
		PasswordHash: "hash", Role: model.RoleFieldAgent, Base: "BO Nord", Active: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := UpdateUser(ctx, database, user.ID, model.RoleManager, "BO Sud", "+33611111111", true); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != model.RoleManager || got.Base != "BO Sud" {
		t.Errorf("update not applied: %+v", got)
	}

	if err := DeactivateUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	got, err = GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("deactivation must keep the row")
	}
	if got.Active {
		t.Error("expected account to be inactive")
	}
}
