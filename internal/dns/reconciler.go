package dns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/serjnsk/dl-network/internal/hosting"
)

// Provider error codes for "a record with that host already exists".
const (
	codeRecordAlreadyExists   = 81053
	codeIdenticalRecordExists = 81058
)

// ErrZoneNotFound means the domain is not managed by the provider account.
// It is operator-actionable and never retried automatically.
var ErrZoneNotFound = errors.New("dns zone not found")

// conflictTypes are the record types that may hold a hostname the CNAME needs.
var conflictTypes = map[string]bool{"CNAME": true, "A": true, "AAAA": true}

// ZoneAPI is the slice of the hosting client the reconciler needs.
type ZoneAPI interface {
	FindZoneByName(ctx context.Context, domainName string) (*hosting.Zone, error)
	ListDNSRecords(ctx context.Context, zoneID string) ([]hosting.DNSRecord, error)
	CreateDNSRecord(ctx context.Context, zoneID string, input hosting.CreateRecordInput) (*hosting.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error
}

// Result reports the record the reconciler converged on.
type Result struct {
	RecordID string
	ZoneID   string
}

// Status is a read-only comparison of the live CNAME against an expected target.
type Status struct {
	Active        bool
	CurrentTarget string
}

// Reconciler enforces the one-authoritative-record-per-hostname invariant the
// provider's proxy layer requires.
type Reconciler struct {
	api    ZoneAPI
	logger *slog.Logger
}

// New returns a Reconciler.
func New(api ZoneAPI, logger *slog.Logger) *Reconciler {
	return &Reconciler{api: api, logger: logger}
}

// EnsureCNAME makes exactly one proxied CNAME for domainName point at
// targetHost, replacing any conflicting A/AAAA/CNAME record. It is idempotent:
// repeat calls for the same (domain, target) succeed without side effects
// beyond the first, and a create race with a concurrent reconciliation is
// treated as success (last writer wins, no lock).
func (r *Reconciler) EnsureCNAME(ctx context.Context, domainName, targetHost string) (Result, error) {
	zone, err := r.api.FindZoneByName(ctx, domainName)
	if err != nil {
		return Result{}, fmt.Errorf("resolve zone for %s: %w", domainName, err)
	}
	if zone == nil {
		return Result{}, fmt.Errorf("%w for %s: add the domain to the provider account manually", ErrZoneNotFound, domainName)
	}

	records, err := r.api.ListDNSRecords(ctx, zone.ID)
	if err != nil {
		return Result{}, fmt.Errorf("list records in zone %s: %w", zone.ID, err)
	}

	var conflicts []hosting.DNSRecord
	for _, rec := range records {
		if rec.Name != domainName || !conflictTypes[rec.Type] {
			continue
		}
		if rec.Type == "CNAME" && rec.Content == targetHost {
			// Correct record already in place.
			return Result{RecordID: rec.ID, ZoneID: zone.ID}, nil
		}
		conflicts = append(conflicts, rec)
	}

	// Every record holding the hostname must go, or the create below fails
	// against the survivor. Deletion stays best effort per record: it may
	// already be gone.
	for _, rec := range conflicts {
		if err := r.api.DeleteDNSRecord(ctx, zone.ID, rec.ID); err != nil {
			r.logger.Warn("delete conflicting record failed", "domain", domainName, "record_id", rec.ID, "error", err)
		}
	}

	created, err := r.api.CreateDNSRecord(ctx, zone.ID, hosting.CreateRecordInput{
		Type:    "CNAME",
		Name:    domainName,
		Content: targetHost,
	})
	if err != nil {
		if isAlreadyExists(err) {
			// Lost a race with a concurrent reconciliation; the surviving
			// record is authoritative.
			r.logger.Info("cname create lost race, treating as success", "domain", domainName)
			return r.lookupExisting(ctx, zone.ID, domainName)
		}
		return Result{}, fmt.Errorf("create cname for %s: %w", domainName, err)
	}

	r.logger.Info("cname record ensured", "domain", domainName, "target", targetHost, "record_id", created.ID)
	return Result{RecordID: created.ID, ZoneID: zone.ID}, nil
}

// CheckStatus reports whether the live CNAME for domainName equals
// expectedTarget. It mutates nothing; any lookup failure reads as inactive.
func (r *Reconciler) CheckStatus(ctx context.Context, domainName, expectedTarget string) Status {
	zone, err := r.api.FindZoneByName(ctx, domainName)
	if err != nil || zone == nil {
		return Status{}
	}
	records, err := r.api.ListDNSRecords(ctx, zone.ID)
	if err != nil {
		return Status{}
	}
	for _, rec := range records {
		if rec.Type == "CNAME" && rec.Name == domainName {
			return Status{Active: rec.Content == expectedTarget, CurrentTarget: rec.Content}
		}
	}
	return Status{}
}

// RemoveCNAME deletes the CNAME for domainName if one exists. A missing zone
// or record means there is nothing to delete.
func (r *Reconciler) RemoveCNAME(ctx context.Context, domainName string) error {
	zone, err := r.api.FindZoneByName(ctx, domainName)
	if err != nil {
		return fmt.Errorf("resolve zone for %s: %w", domainName, err)
	}
	if zone == nil {
		return nil
	}
	records, err := r.api.ListDNSRecords(ctx, zone.ID)
	if err != nil {
		return fmt.Errorf("list records in zone %s: %w", zone.ID, err)
	}
	for _, rec := range records {
		if rec.Type == "CNAME" && rec.Name == domainName {
			if err := r.api.DeleteDNSRecord(ctx, zone.ID, rec.ID); err != nil {
				return fmt.Errorf("delete cname %s: %w", rec.ID, err)
			}
			r.logger.Info("cname record removed", "domain", domainName, "record_id", rec.ID)
			return nil
		}
	}
	return nil
}

// lookupExisting resolves the survivor of a create race. The race is benign
// only when the surviving record is a CNAME; anything else means the name is
// still held by a record we failed to clear, and the call must not report
// convergence.
func (r *Reconciler) lookupExisting(ctx context.Context, zoneID, domainName string) (Result, error) {
	records, err := r.api.ListDNSRecords(ctx, zoneID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup cname for %s after create conflict: %w", domainName, err)
	}
	for _, rec := range records {
		if rec.Type == "CNAME" && rec.Name == domainName {
			return Result{RecordID: rec.ID, ZoneID: zoneID}, nil
		}
	}
	return Result{}, fmt.Errorf("create cname for %s: name already taken and no cname exists at it", domainName)
}

func isAlreadyExists(err error) bool {
	var apiErr *hosting.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HasCode(codeRecordAlreadyExists) || apiErr.HasCode(codeIdenticalRecordExists) {
			return true
		}
		return strings.Contains(strings.ToLower(apiErr.Error()), "already exists")
	}
	return false
}
