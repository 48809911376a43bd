package dns

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/serjnsk/dl-network/internal/hosting"
)

type fakeZoneAPI struct {
	zone    *hosting.Zone
	zoneErr error

	records  []hosting.DNSRecord
	listErr  error
	nextID   int
	creates  int
	deletes  []string
	createFn func(input hosting.CreateRecordInput) (*hosting.DNSRecord, error)
}

func (f *fakeZoneAPI) FindZoneByName(ctx context.Context, domainName string) (*hosting.Zone, error) {
	return f.zone, f.zoneErr
}

func (f *fakeZoneAPI) ListDNSRecords(ctx context.Context, zoneID string) ([]hosting.DNSRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]hosting.DNSRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeZoneAPI) CreateDNSRecord(ctx context.Context, zoneID string, input hosting.CreateRecordInput) (*hosting.DNSRecord, error) {
	f.creates++
	if f.createFn != nil {
		return f.createFn(input)
	}
	f.nextID++
	record := hosting.DNSRecord{
		ID:      "rec-" + strconv.Itoa(f.nextID),
		Type:    input.Type,
		Name:    input.Name,
		Content: input.Content,
	}
	f.records = append(f.records, record)
	return &record, nil
}

func (f *fakeZoneAPI) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	f.deletes = append(f.deletes, recordID)
	kept := f.records[:0]
	for _, rec := range f.records {
		if rec.ID != recordID {
			kept = append(kept, rec)
		}
	}
	f.records = kept
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsureCNAMECreatesRecord(t *testing.T) {
	api := &fakeZoneAPI{zone: &hosting.Zone{ID: "zone-1", Name: "example.com"}}
	r := New(api, testLogger())

	result, err := r.EnsureCNAME(context.Background(), "www.example.com", "dl-acme.pages.dev")
	if err != nil {
		t.Fatalf("EnsureCNAME returned error: %v", err)
	}
	if result.RecordID == "" || result.ZoneID != "zone-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if api.creates != 1 {
		t.Fatalf("expected one create, got %d", api.creates)
	}
}

func TestEnsureCNAMEIsIdempotent(t *testing.T) {
	api := &fakeZoneAPI{zone: &hosting.Zone{ID: "zone-1", Name: "example.com"}}
	r := New(api, testLogger())

	first, err := r.EnsureCNAME(context.Background(), "www.example.com", "dl-acme.pages.dev")
	if err != nil {
		t.Fatalf("first EnsureCNAME returned error: %v", err)
	}
	second, err := r.EnsureCNAME(context.Background(), "www.example.com", "dl-acme.pages.dev")
	if err != nil {
		t.Fatalf("second EnsureCNAME returned error: %v", err)
	}

	if first.RecordID != second.RecordID {
		t.Fatalf("expected stable record id, got %q then %q", first.RecordID, second.RecordID)
	}
	if api.creates != 1 {
		t.Fatalf("expected exactly one create across both calls, got %d", api.creates)
	}
	if len(api.deletes) != 0 {
		t.Fatalf("expected no deletes, got %v", api.deletes)
	}
}

func TestEnsureCNAMEReplacesConflictingARecord(t *testing.T) {
	api := &fakeZoneAPI{
		zone: &hosting.Zone{ID: "zone-1", Name: "example.com"},
		records: []hosting.DNSRecord{
			{ID: "old-a", Type: "A", Name: "www.example.com", Content: "192.0.2.10"},
		},
	}
	r := New(api, testLogger())

	if _, err := r.EnsureCNAME(context.Background(), "www.example.com", "dl-acme.pages.dev"); err != nil {
		t.Fatalf("EnsureCNAME returned error: %v", err)
	}

	if len(api.deletes) != 1 || api.deletes[0] != "old-a" {
		t.Fatalf("expected the A record deleted, got %v", api.deletes)
	}
	var cnames int
	for _, rec := range api.records {
		if rec.Name == "www.example.com" {
			if rec.Type != "CNAME" {
				t.Fatalf("unexpected surviving record: %+v", rec)
			}
			cnames++
		}
	}
	if cnames != 1 {
		t.Fatalf("expected exactly one CNAME for the host, got %d", cnames)
	}
}

func TestEnsureCNAMEReplacesEveryConflictingRecord(t *testing.T) {
	api := &fakeZoneAPI{
		zone: &hosting.Zone{ID: "zone-1", Name: "example.com"},
		records: []hosting.DNSRecord{
			{ID: "a-1", Type: "A", Name: "www.example.com", Content: "192.0.2.10"},
			{ID: "a-2", Type: "A", Name: "www.example.com", Content: "192.0.2.11"},
			{ID: "txt", Type: "TXT", Name: "www.example.com", Content: "verification"},
		},
	}
	// The provider rejects a create while any record still holds the name.
	api.createFn = func(input hosting.CreateRecordInput) (*hosting.DNSRecord, error) {
		for _, rec := range api.records {
			if rec.Name == input.Name && conflictTypes[rec.Type] {
				return nil, &hosting.APIError{Status: 400, Errors: []hosting.ErrorDetail{{Code: 81053, Message: "record already exists"}}}
			}
		}
		api.nextID++
		record := hosting.DNSRecord{
			ID:      "rec-" + strconv.Itoa(api.nextID),
			Type:    input.Type,
			Name:    input.Name,
			Content: input.Content,
		}
		api.records = append(api.records, record)
		return &record, nil
	}
	r := New(api, testLogger())

	result, err := r.EnsureCNAME(context.Background(), "www.example.com", "dl-acme.pages.dev")
	if err != nil {
		t.Fatalf("EnsureCNAME returned error: %v", err)
	}
	if result.RecordID == "" {
		t.Fatalf("expected the created record id, got %+v", result)
	}
	if len(api.deletes) != 2 {
		t.Fatalf("expected both A records deleted, got %v", api.deletes)
	}
	var cnames, others int
	for _, rec := range api.records {
		if rec.Name != "www.example.com" || !conflictTypes[rec.Type] {
			continue
		}
		if rec.Type == "CNAME" {
			cnames++
		} else {
			others++
		}
	}
	if cnames != 1 || others != 0 {
		t.Fatalf("expected exactly one CNAME and no stale records, got %d/%d", cnames, others)
	}
}

func TestEnsureCNAMEFailsWhenNameTakenWithoutCNAME(t *testing.T) {
	api := &fakeZoneAPI{zone: &hosting.Zone{ID: "zone-1", Name: "example.com"}}
	api.createFn = func(input hosting.CreateRecordInput) (*hosting.DNSRecord, error) {
		// The name is still held by something that is not a CNAME.
		api.records = append(api.records, hosting.DNSRecord{ID: "a-keep", Type: "A", Name: "www.example.com", Content: "192.0.2.10"})
		return nil, &hosting.APIError{Status: 400, Errors: []hosting.ErrorDetail{{Code: 81053, Message: "record already exists"}}}
	}
	r := New(api, testLogger())

	if _, err := r.EnsureCNAME(context.Background(), "www.example.com", "dl-acme.pages.dev"); err == nil {
		t.Fatal("expected error when no cname exists after the create conflict")
	}
}

func TestEnsureCNAMEZoneNotFound(t *testing.T) {
	api := &fakeZoneAPI{}
	r := New(api, testLogger())

	_, err := r.EnsureCNAME(context.Background(), "www.unmanaged.com", "dl-acme.pages.dev")
	if !errors.Is(err, ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}
	if api.creates != 0 {
		t.Fatalf("expected no creates, got %d", api.creates)
	}
}

func TestEnsureCNAMESwallowsCreateRace(t *testing.T) {
	racedRecord := hosting.DNSRecord{ID: "winner", Type: "CNAME", Name: "www.example.com", Content: "dl-acme.pages.dev"}
	api := &fakeZoneAPI{zone: &hosting.Zone{ID: "zone-1", Name: "example.com"}}
	api.createFn = func(input hosting.CreateRecordInput) (*hosting.DNSRecord, error) {
		// Another reconciliation created the record between list and create.
		api.records = append(api.records, racedRecord)
		return nil, &hosting.APIError{Status: 400, Errors: []hosting.ErrorDetail{{Code: 81053, Message: "record already exists"}}}
	}
	r := New(api, testLogger())

	result, err := r.EnsureCNAME(context.Background(), "www.example.com", "dl-acme.pages.dev")
	if err != nil {
		t.Fatalf("expected race to read as success, got %v", err)
	}
	if result.RecordID != "winner" {
		t.Fatalf("expected the surviving record id, got %+v", result)
	}
}

func TestCheckStatusComparesTarget(t *testing.T) {
	api := &fakeZoneAPI{
		zone: &hosting.Zone{ID: "zone-1", Name: "example.com"},
		records: []hosting.DNSRecord{
			{ID: "r1", Type: "CNAME", Name: "www.example.com", Content: "dl-acme.pages.dev"},
		},
	}
	r := New(api, testLogger())

	status := r.CheckStatus(context.Background(), "www.example.com", "dl-acme.pages.dev")
	if !status.Active {
		t.Fatalf("expected active status, got %+v", status)
	}

	status = r.CheckStatus(context.Background(), "www.example.com", "dl-other.pages.dev")
	if status.Active {
		t.Fatalf("expected inactive status for mismatched target, got %+v", status)
	}
	if status.CurrentTarget != "dl-acme.pages.dev" {
		t.Fatalf("expected current target reported, got %q", status.CurrentTarget)
	}
}

func TestCheckStatusReadsLookupFailureAsInactive(t *testing.T) {
	api := &fakeZoneAPI{zoneErr: errors.New("upstream down")}
	r := New(api, testLogger())

	if status := r.CheckStatus(context.Background(), "www.example.com", "dl-acme.pages.dev"); status.Active {
		t.Fatalf("expected inactive on lookup failure, got %+v", status)
	}
}

func TestRemoveCNAMEMissingZoneIsNoop(t *testing.T) {
	api := &fakeZoneAPI{}
	r := New(api, testLogger())

	if err := r.RemoveCNAME(context.Background(), "www.unmanaged.com"); err != nil {
		t.Fatalf("expected nil for missing zone, got %v", err)
	}
}

func TestRemoveCNAMEDeletesRecord(t *testing.T) {
	api := &fakeZoneAPI{
		zone: &hosting.Zone{ID: "zone-1", Name: "example.com"},
		records: []hosting.DNSRecord{
			{ID: "r1", Type: "CNAME", Name: "www.example.com", Content: "dl-acme.pages.dev"},
			{ID: "r2", Type: "TXT", Name: "www.example.com", Content: "verification"},
		},
	}
	r := New(api, testLogger())

	if err := r.RemoveCNAME(context.Background(), "www.example.com"); err != nil {
		t.Fatalf("RemoveCNAME returned error: %v", err)
	}
	if len(api.deletes) != 1 || api.deletes[0] != "r1" {
		t.Fatalf("expected only the CNAME deleted, got %v", api.deletes)
	}
}
