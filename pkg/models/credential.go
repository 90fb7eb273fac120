package models

import "time"

// AuthMethod is how a credential authenticates proxy access.
type AuthMethod string

const (
	AuthMethodIP       AuthMethod = "ip"
	AuthMethodUserPass AuthMethod = "userpass"
)

// ProxyType selects which proxy protocols a credential grants.
type ProxyType string

const (
	ProxyTypeSocks5 ProxyType = "socks5"
	ProxyTypeHTTP   ProxyType = "http"
	ProxyTypeBoth   ProxyType = "both"
)

// Credential is an access rule bound to exactly one phone. Credentials are
// owned by their phone and deleted with it.
type Credential struct {
	ID        string     `json:"id"`
	PhoneID   string     `json:"phone_id"`
	Method    AuthMethod `json:"method"`
	ProxyType ProxyType  `json:"proxy_type"`
	Host      string     `json:"host"`
	Port      int        `json:"port"`
	// Username and Password are set for userpass credentials.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// AllowedIP is set for ip credentials.
	AllowedIP      string     `json:"allowed_ip,omitempty"`
	BandwidthCapMB *int64     `json:"bandwidth_cap_mb,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}
