package mosques

import "time"

// Status marks whether a mosque may receive new service requests.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Mosque is a registry entry referenced by service requests.
type Mosque struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	District  string    `json:"district,omitempty"`
	Capacity  int       `json:"capacity,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
