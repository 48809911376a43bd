package domain

import (
	"encoding/json"
	"time"
)

// DNS statuses for pooled domains.
const (
	DNSStatusPending = "pending"
	DNSStatusActive  = "active"
	DNSStatusError   = "error"
)

// Domain is a pooled custom domain, independent of any project until linked.
type Domain struct {
	ID        string
	Name      string
	ZoneID    *string
	DNSStatus string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectDomain joins a project with a domain from the pool. At most one
// link per project carries IsPrimary. CanonicalDomain and DeploymentURL are
// plain strings because their columns are NOT NULL; empty means not yet set.
type ProjectDomain struct {
	ID              string
	ProjectID       string
	DomainID        string
	IsPrimary       bool
	CanonicalDomain string
	TrackingConfig  json.RawMessage
	DeploymentURL   string
	CreatedAt       time.Time
}

// LinkedDomain is a ProjectDomain joined with its pool entry, as read by the
// deploy and domain workflows.
type LinkedDomain struct {
	Link   ProjectDomain
	Domain Domain
}

// TrackingConfig holds analytics snippets injected into rendered pages.
type TrackingConfig struct {
	GAID          string `json:"ga_id,omitempty"`
	YMID          string `json:"ym_id,omitempty"`
	FBPixel       string `json:"fb_pixel,omitempty"`
	CustomScripts string `json:"custom_scripts,omitempty"`
}
