package model

import (
	"fmt"
	"time"
)

// User represents an operator account. Base is the operational base the user
// is assigned to; it is empty for administrators, meaning unrestricted.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Base         string    `json:"base,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role is a user's function, which together with the assigned base defines
// the user's access scope.
type Role string

// Roles.
const (
	RoleAdmin      Role = "admin"
	RoleWarehouse  Role = "warehouse"
	RoleLab        Role = "lab"
	RoleFieldAgent Role = "field_agent"
	RoleManager    Role = "manager"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleWarehouse, RoleLab, RoleFieldAgent, RoleManager:
		return true
	}
	return false
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidatePassword checks that a password meets the minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidArgument, MinPasswordLength)
	}
	return nil
}
