package models

import "time"

// Event types carried on the status feed channel.
const (
	EventPhonePaired = "phone_paired"
	EventPhoneStatus = "phone_status"
)

// StatusEvent is a single publication from the status feed. Events are
// ephemeral: they decorate a Phone for the lifetime of the subscription and
// are discarded when the link drops.
type StatusEvent struct {
	Type              string     `json:"type"`
	PhoneID           string     `json:"phone_id"`
	Status            Status     `json:"status,omitempty"`
	TotalConnections  int        `json:"total_connections,omitempty"`
	ActiveConnections int        `json:"active_connections,omitempty"`
	// RotationCode is the raw capability code (root, assistant, cmd, none).
	// Older phone agents publish a pre-formatted string instead; both are
	// normalized during reconciliation.
	RotationCode string     `json:"rotation,omitempty"`
	SimCountry   string     `json:"sim_country,omitempty"`
	SimCarrier   string     `json:"sim_carrier,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}
