package models

import "time"

// Status is the live connectivity state of a phone.
type Status string

const (
	StatusPending Status = "pending"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Phone is a paired Android proxy endpoint as stored by the upstream API.
type Phone struct {
	ID       string     `json:"id" db:"id"`
	Name     string     `json:"name" db:"name"`
	PairedAt *time.Time `json:"paired_at,omitempty" db:"paired_at"`
	ServerID string     `json:"server_id,omitempty" db:"server_id"`
	// FirstCredential is the summary credential shown in list views.
	FirstCredential  *Credential `json:"first_credential,omitempty"`
	SimCountry       string      `json:"sim_country,omitempty"`
	SimCarrier       string      `json:"sim_carrier,omitempty"`
	LogRetentionDays int         `json:"log_retention_days,omitempty"`
	// ActiveConnections is aggregated server-side and refreshed with the
	// regular REST poll, not the live feed.
	ActiveConnections int `json:"active_connections"`
}

// PhoneWithStatus is a Phone decorated with fields derived from the live
// status feed. Status is never empty: a phone with no observed live event is
// offline when paired and pending otherwise.
type PhoneWithStatus struct {
	Phone
	Status             Status     `json:"status"`
	LastSeen           *time.Time `json:"last_seen,omitempty"`
	RotationCapability string     `json:"rotation_capability,omitempty"`
	TotalConnections   int        `json:"total_connections"`
}

// RotationSettings configures how often a phone forces a new carrier IP.
type RotationSettings struct {
	Enabled            bool `json:"enabled"`
	IntervalMinutes    int  `json:"interval_minutes,omitempty"`
	RotateOnDisconnect bool `json:"rotate_on_disconnect,omitempty"`
}
