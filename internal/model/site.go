package model

import "time"

// Site represents an electrical substation where a concentrator can be
// installed.
type Site struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name,omitempty"`
	Location  string    `json:"location,omitempty"`
	Base      string    `json:"base,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Batch represents a supplier shipment of concentrators received together.
type Batch struct {
	Ref        string     `json:"ref"`
	Operator   string     `json:"operator"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
	UnitCount  int        `json:"unit_count"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Batch statuses.
const (
	BatchStatusInDelivery = "in_delivery"
	BatchStatusReceived   = "received"
)
