package models

import "time"

// ProxyServer is an upstream server hosting paired phones.
type ProxyServer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Host       string `json:"host"`
	PhoneCount int    `json:"phone_count"`
}

// TelemetrySample is one observation from the per-server telemetry poll.
// Samples are recorded locally so the console can chart traffic and uptime
// history that the upstream API only serves as point-in-time figures.
type TelemetrySample struct {
	ID                int64     `json:"id" db:"id"`
	ServerID          string    `json:"server_id" db:"server_id"`
	ActiveConnections int       `json:"active_connections" db:"active_connections"`
	TotalConnections  int64     `json:"total_connections" db:"total_connections"`
	BytesIn           int64     `json:"bytes_in" db:"bytes_in"`
	BytesOut          int64     `json:"bytes_out" db:"bytes_out"`
	OnlinePhones      int       `json:"online_phones" db:"online_phones"`
	SampledAt         time.Time `json:"sampled_at" db:"sampled_at"`
}
