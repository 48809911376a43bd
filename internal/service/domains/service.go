package domains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/serjnsk/dl-network/internal/dns"
	"github.com/serjnsk/dl-network/internal/domain"
	"github.com/serjnsk/dl-network/internal/hosting"
	"github.com/serjnsk/dl-network/internal/repository"
	"github.com/serjnsk/dl-network/pkg/config"
)

var domainNamePattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

var (
	ErrInvalidDomainName = errors.New("invalid domain name format")
	ErrDomainExists      = errors.New("domain already added")
	ErrDomainLinked      = errors.New("domain is linked to a project")
	ErrAlreadyLinked     = errors.New("domain already linked to this project")
)

// ProjectsAPI is the slice of the hosting client used by domain workflows.
type ProjectsAPI interface {
	AddCustomDomain(ctx context.Context, projectName, domainName string) (*hosting.CustomDomain, error)
	RemoveCustomDomain(ctx context.Context, projectName, domainName string) error
}

// Service manages the domain pool and project/domain bindings.
type Service struct {
	domains    repository.DomainRepository
	links      repository.ProjectDomainRepository
	projects   repository.ProjectRepository
	reconciler *dns.Reconciler
	hosting    ProjectsAPI
	logger     *slog.Logger
	cfg        config.DashboardConfig
}

// New returns a domains service.
func New(domainsRepo repository.DomainRepository, links repository.ProjectDomainRepository, projects repository.ProjectRepository, reconciler *dns.Reconciler, hostingAPI ProjectsAPI, logger *slog.Logger, cfg config.DashboardConfig) Service {
	return Service{
		domains:    domainsRepo,
		links:      links,
		projects:   projects,
		reconciler: reconciler,
		hosting:    hostingAPI,
		logger:     logger,
		cfg:        cfg,
	}
}

// Create adds a domain to the shared pool in pending state.
func (s Service) Create(ctx context.Context, name string) (*domain.Domain, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !domainNamePattern.MatchString(name) {
		return nil, ErrInvalidDomainName
	}
	now := time.Now().UTC()
	d := &domain.Domain{
		ID:        uuid.NewString(),
		Name:      name,
		DNSStatus: domain.DNSStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.domains.CreateDomain(ctx, d); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDomainExists
		}
		return nil, err
	}
	s.logger.Info("domain added", "domain", name)
	return d, nil
}

// Delete removes a pooled domain. Domains still linked to a project are
// refused.
func (s Service) Delete(ctx context.Context, domainID string) error {
	count, err := s.domains.CountProjectLinks(ctx, domainID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w (%d links)", ErrDomainLinked, count)
	}
	return s.domains.DeleteDomain(ctx, domainID)
}

// List returns the domain pool.
func (s Service) List(ctx context.Context) ([]domain.Domain, error) {
	return s.domains.ListDomains(ctx)
}

// Link binds a pooled domain to a project. When isPrimary is set the primary
// flag is reassigned to the new link inside one repository transaction.
func (s Service) Link(ctx context.Context, projectID, domainID string, isPrimary bool) (*domain.ProjectDomain, error) {
	if _, err := s.projects.GetProjectByID(ctx, projectID); err != nil {
		return nil, err
	}
	pooled, err := s.domains.GetDomainByID(ctx, domainID)
	if err != nil {
		return nil, err
	}
	link := &domain.ProjectDomain{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		DomainID:        domainID,
		CanonicalDomain: pooled.Name,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.links.LinkDomain(ctx, link); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyLinked
		}
		return nil, err
	}
	if isPrimary {
		if err := s.links.SetPrimaryDomain(ctx, projectID, link.ID); err != nil {
			return nil, err
		}
		link.IsPrimary = true
	}
	s.logger.Info("domain linked", "project_id", projectID, "domain_id", domainID, "primary", isPrimary)
	return link, nil
}

// Unlink removes a project/domain binding and reports the affected project.
func (s Service) Unlink(ctx context.Context, linkID string) (string, error) {
	return s.links.UnlinkDomain(ctx, linkID)
}

// SetPrimary reassigns the primary flag among a project's links.
func (s Service) SetPrimary(ctx context.Context, projectID, linkID string) error {
	return s.links.SetPrimaryDomain(ctx, projectID, linkID)
}

// SetTracking validates and stores a link's analytics configuration. An empty
// config clears the stored snippet sources.
func (s Service) SetTracking(ctx context.Context, linkID string, cfg domain.TrackingConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.links.UpdateTrackingConfig(ctx, linkID, payload)
}

// ListLinked returns a project's domain bindings joined with pool entries.
func (s Service) ListLinked(ctx context.Context, projectID string) ([]domain.LinkedDomain, error) {
	return s.links.ListLinkedDomains(ctx, projectID)
}

// pagesHost is the hosting target a project's domains must alias.
func (s Service) pagesHost(slug string) string {
	return s.cfg.ProjectPrefix + slug + s.cfg.PagesDomainSuffix
}

// Connect runs the full domain-provisioning workflow for one binding: ensure
// the CNAME record, attach the domain to the hosting project, and persist the
// resulting zone and status. Safe to retry; every step is idempotent.
func (s Service) Connect(ctx context.Context, linkID string) error {
	link, err := s.links.GetLink(ctx, linkID)
	if err != nil {
		return err
	}
	project, err := s.projects.GetProjectByID(ctx, link.ProjectID)
	if err != nil {
		return err
	}
	pooled, err := s.domains.GetDomainByID(ctx, link.DomainID)
	if err != nil {
		return err
	}

	target := s.pagesHost(project.Slug)
	result, err := s.reconciler.EnsureCNAME(ctx, pooled.Name, target)
	if err != nil {
		if statusErr := s.domains.UpdateDNSStatus(ctx, pooled.ID, domain.DNSStatusError); statusErr != nil {
			s.logger.Warn("dns status write failed", "domain_id", pooled.ID, "error", statusErr)
		}
		return err
	}
	if result.ZoneID != "" {
		if err := s.domains.SetZoneID(ctx, pooled.ID, result.ZoneID); err != nil {
			s.logger.Warn("zone id write failed", "domain_id", pooled.ID, "error", err)
		}
	}

	hostingName := s.cfg.ProjectPrefix + project.Slug
	if _, err := s.hosting.AddCustomDomain(ctx, hostingName, pooled.Name); err != nil {
		return fmt.Errorf("attach %s to %s: %w", pooled.Name, hostingName, err)
	}

	if err := s.domains.UpdateDNSStatus(ctx, pooled.ID, domain.DNSStatusActive); err != nil {
		return err
	}
	if err := s.links.UpdateDeploymentURL(ctx, linkID, "https://"+target); err != nil {
		s.logger.Warn("deployment url write failed", "link_id", linkID, "error", err)
	}
	s.logger.Info("domain connected", "domain", pooled.Name, "target", target)
	return nil
}

// Disconnect detaches a binding from the hosting project and removes its
// CNAME, leaving the pooled domain in pending state.
func (s Service) Disconnect(ctx context.Context, linkID string) error {
	link, err := s.links.GetLink(ctx, linkID)
	if err != nil {
		return err
	}
	project, err := s.projects.GetProjectByID(ctx, link.ProjectID)
	if err != nil {
		return err
	}
	pooled, err := s.domains.GetDomainByID(ctx, link.DomainID)
	if err != nil {
		return err
	}

	hostingName := s.cfg.ProjectPrefix + project.Slug
	if err := s.hosting.RemoveCustomDomain(ctx, hostingName, pooled.Name); err != nil {
		s.logger.Warn("custom domain detach failed", "domain", pooled.Name, "error", err)
	}
	if err := s.reconciler.RemoveCNAME(ctx, pooled.Name); err != nil {
		s.logger.Warn("cname removal failed", "domain", pooled.Name, "error", err)
	}
	return s.domains.UpdateDNSStatus(ctx, pooled.ID, domain.DNSStatusPending)
}

// VerifyLink resolves a binding and re-checks its domain's DNS.
func (s Service) VerifyLink(ctx context.Context, linkID string) (bool, error) {
	link, err := s.links.GetLink(ctx, linkID)
	if err != nil {
		return false, err
	}
	return s.VerifyDNS(ctx, link.DomainID, link.ProjectID)
}

// VerifyDNS re-checks a domain's live CNAME against its project's hosting
// target and flips dns_status between pending and active. Read-only against
// the provider.
func (s Service) VerifyDNS(ctx context.Context, domainID, projectID string) (bool, error) {
	pooled, err := s.domains.GetDomainByID(ctx, domainID)
	if err != nil {
		return false, err
	}
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return false, err
	}
	status := s.reconciler.CheckStatus(ctx, pooled.Name, s.pagesHost(project.Slug))
	next := domain.DNSStatusPending
	if status.Active {
		next = domain.DNSStatusActive
	}
	if err := s.domains.UpdateDNSStatus(ctx, pooled.ID, next); err != nil {
		return status.Active, err
	}
	return status.Active, nil
}
