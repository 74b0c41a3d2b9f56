package model

import "time"

// Concentrator represents a single tracked device, keyed by its serial number.
type Concentrator struct {
	Serial         string     `json:"serial"`
	Model          string     `json:"model,omitempty"`
	Operator       string     `json:"operator"`
	State          State      `json:"state"`
	Location       string     `json:"location,omitempty"`
	Faulty         bool       `json:"faulty"`
	InstalledAt    *time.Time `json:"installed_at,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	StateChangedAt *time.Time `json:"state_changed_at,omitempty"`
	Comment        string     `json:"comment,omitempty"`
	PhotoMime      string     `json:"photo_mime,omitempty"`
	BatchRef       string     `json:"batch_ref,omitempty"`
	SiteID         *int64     `json:"site_id,omitempty"`
	OrderID        *int64     `json:"order_id,omitempty"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// State is the lifecycle state of a concentrator.
type State string

// Lifecycle states.
const (
	StateInDelivery             State = "in_delivery"
	StateInStock                State = "in_stock"
	StateInstalled              State = "installed"
	StateReturnedToManufacturer State = "returned_to_manufacturer"
	StateScrapped               State = "scrapped"
)

// ValidState reports whether s is a known lifecycle state.
func ValidState(s State) bool {
	switch s {
	case StateInDelivery, StateInStock, StateInstalled, StateReturnedToManufacturer, StateScrapped:
		return true
	}
	return false
}

// Fixed locations. Any other non-empty location is an operational base
// (e.g. "BO Nord").
const (
	LocationWarehouse = "Warehouse"
	LocationLab       = "Lab"
	LocationScrap     = "Scrap"
)
