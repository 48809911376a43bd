package hosting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorDetail is one provider-reported error.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError carries the provider's error list for a failed call.
type APIError struct {
	Status int
	Errors []ErrorDetail
}

// Error joins all provider messages into one string.
func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("hosting api error: status %d", e.Status)
	}
	messages := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		messages = append(messages, item.Message)
	}
	return "hosting api error: " + strings.Join(messages, ", ")
}

// HasCode reports whether the provider returned the given error code.
func (e *APIError) HasCode(code int) bool {
	for _, item := range e.Errors {
		if item.Code == code {
			return true
		}
	}
	return false
}

// envelope is the provider's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []ErrorDetail   `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

// PagesProject is the provider-side identity for a deployed site.
type PagesProject struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Subdomain        string    `json:"subdomain"`
	ProductionBranch string    `json:"production_branch"`
	Domains          []string  `json:"domains"`
	CreatedOn        time.Time `json:"created_on"`
}

// Deployment is one uploaded file set live at a URL.
type Deployment struct {
	ID          string    `json:"id"`
	ShortID     string    `json:"short_id"`
	ProjectName string    `json:"project_name"`
	Environment string    `json:"environment"`
	URL         string    `json:"url"`
	CreatedOn   time.Time `json:"created_on"`
}

// CustomDomain is a provider-side domain attachment, independent of DNS.
type CustomDomain struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Zone is the provider's management unit for a registrable domain.
type Zone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// DNSRecord is a type/name/content triple within a zone.
type DNSRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
	TTL     int    `json:"ttl"`
}

// CreateRecordInput describes a DNS record to create. TTL 1 means automatic;
// Proxied defaults to true when unset.
type CreateRecordInput struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied *bool  `json:"proxied,omitempty"`
	TTL     int    `json:"ttl,omitempty"`
}

// CreateProjectInput describes a hosting project to create.
type CreateProjectInput struct {
	Name             string `json:"name"`
	ProductionBranch string `json:"production_branch"`
}
