package domains

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/serjnsk/dl-network/internal/dns"
	"github.com/serjnsk/dl-network/internal/domain"
	"github.com/serjnsk/dl-network/internal/hosting"
	"github.com/serjnsk/dl-network/internal/repository"
	"github.com/serjnsk/dl-network/pkg/config"
)

type fakeDomainRepo struct {
	domains      map[string]*domain.Domain
	createErr    error
	linkCount    int
	statusWrites map[string]string
	zoneWrites   map[string]string
	deleted      []string
}

func newFakeDomainRepo() *fakeDomainRepo {
	return &fakeDomainRepo{
		domains:      make(map[string]*domain.Domain),
		statusWrites: make(map[string]string),
		zoneWrites:   make(map[string]string),
	}
}

func (f *fakeDomainRepo) CreateDomain(ctx context.Context, d *domain.Domain) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.domains[d.ID] = d
	return nil
}

func (f *fakeDomainRepo) GetDomainByID(ctx context.Context, domainID string) (*domain.Domain, error) {
	d, ok := f.domains[domainID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (f *fakeDomainRepo) ListDomains(ctx context.Context) ([]domain.Domain, error) {
	out := make([]domain.Domain, 0, len(f.domains))
	for _, d := range f.domains {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDomainRepo) UpdateDNSStatus(ctx context.Context, domainID, status string) error {
	f.statusWrites[domainID] = status
	return nil
}

func (f *fakeDomainRepo) SetZoneID(ctx context.Context, domainID, zoneID string) error {
	f.zoneWrites[domainID] = zoneID
	return nil
}

func (f *fakeDomainRepo) DeleteDomain(ctx context.Context, domainID string) error {
	f.deleted = append(f.deleted, domainID)
	return nil
}

func (f *fakeDomainRepo) CountProjectLinks(ctx context.Context, domainID string) (int, error) {
	return f.linkCount, nil
}

type fakeLinkRepo struct {
	links    map[string]*domain.ProjectDomain
	linkErr  error
	primary  string
	urls     map[string]string
	tracking map[string][]byte
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{
		links:    make(map[string]*domain.ProjectDomain),
		urls:     make(map[string]string),
		tracking: make(map[string][]byte),
	}
}

func (f *fakeLinkRepo) LinkDomain(ctx context.Context, link *domain.ProjectDomain) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.links[link.ID] = link
	return nil
}

func (f *fakeLinkRepo) UnlinkDomain(ctx context.Context, linkID string) (string, error) {
	link, ok := f.links[linkID]
	if !ok {
		return "", repository.ErrNotFound
	}
	delete(f.links, linkID)
	return link.ProjectID, nil
}

func (f *fakeLinkRepo) GetLink(ctx context.Context, linkID string) (*domain.ProjectDomain, error) {
	link, ok := f.links[linkID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *link
	return &clone, nil
}

func (f *fakeLinkRepo) ListLinkedDomains(ctx context.Context, projectID string) ([]domain.LinkedDomain, error) {
	return nil, nil
}

func (f *fakeLinkRepo) SetPrimaryDomain(ctx context.Context, projectID, linkID string) error {
	if _, ok := f.links[linkID]; !ok {
		return repository.ErrNotFound
	}
	f.primary = linkID
	return nil
}

func (f *fakeLinkRepo) UpdateTrackingConfig(ctx context.Context, linkID string, cfg []byte) error {
	f.tracking[linkID] = cfg
	return nil
}

func (f *fakeLinkRepo) UpdateDeploymentURL(ctx context.Context, linkID, deploymentURL string) error {
	f.urls[linkID] = deploymentURL
	return nil
}

type fakeProjectRepo struct {
	project *domain.Project
}

func (f *fakeProjectRepo) CreateProject(ctx context.Context, project *domain.Project) error {
	return nil
}

func (f *fakeProjectRepo) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	if f.project == nil || f.project.ID != projectID {
		return nil, repository.ErrNotFound
	}
	clone := *f.project
	return &clone, nil
}

func (f *fakeProjectRepo) GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeProjectRepo) ListProjects(ctx context.Context) ([]domain.Project, error) { return nil, nil }

func (f *fakeProjectRepo) UpdateProject(ctx context.Context, project *domain.Project) error {
	return nil
}

func (f *fakeProjectRepo) UpdateProjectStatus(ctx context.Context, projectID, status string) error {
	return nil
}

func (f *fakeProjectRepo) SetProjectPublished(ctx context.Context, projectID, hostingProjectID string) error {
	return nil
}

func (f *fakeProjectRepo) UpdateGlobalCode(ctx context.Context, projectID, headCode, bodyCode string) error {
	return nil
}

func (f *fakeProjectRepo) DeleteProject(ctx context.Context, projectID string) error { return nil }

type fakeZoneAPI struct {
	zone    *hosting.Zone
	records []hosting.DNSRecord
}

func (f *fakeZoneAPI) FindZoneByName(ctx context.Context, domainName string) (*hosting.Zone, error) {
	return f.zone, nil
}

func (f *fakeZoneAPI) ListDNSRecords(ctx context.Context, zoneID string) ([]hosting.DNSRecord, error) {
	return f.records, nil
}

func (f *fakeZoneAPI) CreateDNSRecord(ctx context.Context, zoneID string, input hosting.CreateRecordInput) (*hosting.DNSRecord, error) {
	record := hosting.DNSRecord{ID: "rec-1", Type: input.Type, Name: input.Name, Content: input.Content}
	f.records = append(f.records, record)
	return &record, nil
}

func (f *fakeZoneAPI) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	return nil
}

type fakeProjectsAPI struct {
	attached  []string
	detached  []string
	attachErr error
}

func (f *fakeProjectsAPI) AddCustomDomain(ctx context.Context, projectName, domainName string) (*hosting.CustomDomain, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.attached = append(f.attached, projectName+"/"+domainName)
	return &hosting.CustomDomain{ID: "cd-1", Name: domainName}, nil
}

func (f *fakeProjectsAPI) RemoveCustomDomain(ctx context.Context, projectName, domainName string) error {
	f.detached = append(f.detached, projectName+"/"+domainName)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.DashboardConfig {
	return config.DashboardConfig{ProjectPrefix: "dl-", PagesDomainSuffix: ".pages.dev"}
}

type testEnv struct {
	svc      Service
	domains  *fakeDomainRepo
	links    *fakeLinkRepo
	projects *fakeProjectRepo
	zones    *fakeZoneAPI
	hosting  *fakeProjectsAPI
}

func newTestEnv() *testEnv {
	env := &testEnv{
		domains:  newFakeDomainRepo(),
		links:    newFakeLinkRepo(),
		projects: &fakeProjectRepo{project: &domain.Project{ID: "proj-1", Name: "Acme", Slug: "acme"}},
		zones:    &fakeZoneAPI{},
		hosting:  &fakeProjectsAPI{},
	}
	reconciler := dns.New(env.zones, testLogger())
	env.svc = New(env.domains, env.links, env.projects, reconciler, env.hosting, testLogger(), testConfig())
	return env
}

func (env *testEnv) addDomain(id, name, status string) {
	env.domains.domains[id] = &domain.Domain{ID: id, Name: name, DNSStatus: status}
}

func (env *testEnv) addLink(linkID, projectID, domainID string) {
	env.links.links[linkID] = &domain.ProjectDomain{ID: linkID, ProjectID: projectID, DomainID: domainID}
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	env := newTestEnv()

	created, err := env.svc.Create(context.Background(), "  WWW.Example.COM ")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Name != "www.example.com" {
		t.Fatalf("expected lowercased name, got %q", created.Name)
	}
	if created.DNSStatus != domain.DNSStatusPending {
		t.Fatalf("expected pending status, got %q", created.DNSStatus)
	}

	if _, err := env.svc.Create(context.Background(), "not a domain"); !errors.Is(err, ErrInvalidDomainName) {
		t.Fatalf("expected ErrInvalidDomainName, got %v", err)
	}
}

func TestCreateDuplicateName(t *testing.T) {
	env := newTestEnv()
	env.domains.createErr = repository.ErrConflict

	if _, err := env.svc.Create(context.Background(), "www.example.com"); !errors.Is(err, ErrDomainExists) {
		t.Fatalf("expected ErrDomainExists, got %v", err)
	}
}

func TestDeleteRefusesLinkedDomain(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusPending)
	env.domains.linkCount = 2

	err := env.svc.Delete(context.Background(), "dom-1")
	if !errors.Is(err, ErrDomainLinked) {
		t.Fatalf("expected ErrDomainLinked, got %v", err)
	}
	if len(env.domains.deleted) != 0 {
		t.Fatalf("expected no deletion, got %v", env.domains.deleted)
	}
}

func TestLinkSetsPrimaryWhenRequested(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusPending)

	link, err := env.svc.Link(context.Background(), "proj-1", "dom-1", true)
	if err != nil {
		t.Fatalf("Link returned error: %v", err)
	}
	if !link.IsPrimary {
		t.Fatal("expected the new link marked primary")
	}
	if env.links.primary != link.ID {
		t.Fatalf("expected primary reassigned to %q, got %q", link.ID, env.links.primary)
	}
}

func TestLinkPopulatesNotNullColumns(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusPending)

	link, err := env.svc.Link(context.Background(), "proj-1", "dom-1", false)
	if err != nil {
		t.Fatalf("Link returned error: %v", err)
	}

	// canonical_domain and cf_deployment_url are NOT NULL in the schema; the
	// link handed to the repository must carry string values, never NULL.
	stored, ok := env.links.links[link.ID]
	if !ok {
		t.Fatal("expected the link stored")
	}
	if stored.CanonicalDomain != "www.example.com" {
		t.Fatalf("expected canonical domain set from the pool entry, got %q", stored.CanonicalDomain)
	}
	if stored.DeploymentURL != "" {
		t.Fatalf("expected empty deployment url before connect, got %q", stored.DeploymentURL)
	}
}

func TestLinkDuplicateBinding(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusPending)
	env.links.linkErr = repository.ErrConflict

	if _, err := env.svc.Link(context.Background(), "proj-1", "dom-1", false); !errors.Is(err, ErrAlreadyLinked) {
		t.Fatalf("expected ErrAlreadyLinked, got %v", err)
	}
}

func TestConnectProvisionsDNSAndAttachesDomain(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusPending)
	env.addLink("link-1", "proj-1", "dom-1")
	env.zones.zone = &hosting.Zone{ID: "zone-1", Name: "example.com"}

	if err := env.svc.Connect(context.Background(), "link-1"); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	if env.domains.zoneWrites["dom-1"] != "zone-1" {
		t.Fatalf("expected zone id persisted, got %v", env.domains.zoneWrites)
	}
	if env.domains.statusWrites["dom-1"] != domain.DNSStatusActive {
		t.Fatalf("expected active status, got %v", env.domains.statusWrites)
	}
	if len(env.hosting.attached) != 1 || env.hosting.attached[0] != "dl-acme/www.example.com" {
		t.Fatalf("unexpected attachments: %v", env.hosting.attached)
	}
	if env.links.urls["link-1"] != "https://dl-acme.pages.dev" {
		t.Fatalf("expected deployment url recorded, got %v", env.links.urls)
	}

	var cname *hosting.DNSRecord
	for i := range env.zones.records {
		if env.zones.records[i].Type == "CNAME" {
			cname = &env.zones.records[i]
		}
	}
	if cname == nil || cname.Content != "dl-acme.pages.dev" {
		t.Fatalf("expected CNAME to the pages host, got %+v", env.zones.records)
	}
}

func TestConnectUnmanagedZoneMarksError(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusPending)
	env.addLink("link-1", "proj-1", "dom-1")

	err := env.svc.Connect(context.Background(), "link-1")
	if !errors.Is(err, dns.ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}
	if env.domains.statusWrites["dom-1"] != domain.DNSStatusError {
		t.Fatalf("expected error status persisted, got %v", env.domains.statusWrites)
	}
	if len(env.hosting.attached) != 0 {
		t.Fatalf("expected no attachment, got %v", env.hosting.attached)
	}
}

func TestDisconnectLeavesDomainPending(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusActive)
	env.addLink("link-1", "proj-1", "dom-1")
	env.zones.zone = &hosting.Zone{ID: "zone-1", Name: "example.com"}
	env.zones.records = []hosting.DNSRecord{
		{ID: "rec-1", Type: "CNAME", Name: "www.example.com", Content: "dl-acme.pages.dev"},
	}

	if err := env.svc.Disconnect(context.Background(), "link-1"); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if env.domains.statusWrites["dom-1"] != domain.DNSStatusPending {
		t.Fatalf("expected pending status, got %v", env.domains.statusWrites)
	}
	if len(env.hosting.detached) != 1 {
		t.Fatalf("expected one detachment, got %v", env.hosting.detached)
	}
}

func TestVerifyLinkFlipsStatus(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusPending)
	env.addLink("link-1", "proj-1", "dom-1")
	env.zones.zone = &hosting.Zone{ID: "zone-1", Name: "example.com"}
	env.zones.records = []hosting.DNSRecord{
		{ID: "rec-1", Type: "CNAME", Name: "www.example.com", Content: "dl-acme.pages.dev"},
	}

	active, err := env.svc.VerifyLink(context.Background(), "link-1")
	if err != nil {
		t.Fatalf("VerifyLink returned error: %v", err)
	}
	if !active {
		t.Fatal("expected active verification")
	}
	if env.domains.statusWrites["dom-1"] != domain.DNSStatusActive {
		t.Fatalf("expected active status persisted, got %v", env.domains.statusWrites)
	}

	env.zones.records[0].Content = "dl-other.pages.dev"
	active, err = env.svc.VerifyLink(context.Background(), "link-1")
	if err != nil {
		t.Fatalf("VerifyLink returned error: %v", err)
	}
	if active {
		t.Fatal("expected inactive verification after target change")
	}
	if env.domains.statusWrites["dom-1"] != domain.DNSStatusPending {
		t.Fatalf("expected pending status persisted, got %v", env.domains.statusWrites)
	}
}

func TestSetTrackingStoresConfig(t *testing.T) {
	env := newTestEnv()
	env.addDomain("dom-1", "www.example.com", domain.DNSStatusPending)
	env.addLink("link-1", "proj-1", "dom-1")

	cfg := domain.TrackingConfig{GAID: "G-123", YMID: "456"}
	if err := env.svc.SetTracking(context.Background(), "link-1", cfg); err != nil {
		t.Fatalf("SetTracking returned error: %v", err)
	}
	stored := string(env.links.tracking["link-1"])
	if !strings.Contains(stored, "G-123") || !strings.Contains(stored, "456") {
		t.Fatalf("unexpected stored config: %q", stored)
	}
}
