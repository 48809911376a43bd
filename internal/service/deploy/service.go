package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/serjnsk/dl-network/internal/domain"
	"github.com/serjnsk/dl-network/internal/hosting"
	"github.com/serjnsk/dl-network/internal/render"
	"github.com/serjnsk/dl-network/internal/repository"
	"github.com/serjnsk/dl-network/internal/ws"
	"github.com/serjnsk/dl-network/pkg/config"
)

// PagesAPI is the slice of the hosting client the orchestrator depends on.
// The concrete client is injected at construction; there is no shared
// module-level instance.
type PagesAPI interface {
	GetProject(ctx context.Context, name string) (*hosting.PagesProject, error)
	CreateProject(ctx context.Context, input hosting.CreateProjectInput) (*hosting.PagesProject, error)
	CreateDeployment(ctx context.Context, projectName string, files map[string]string) (*hosting.Deployment, error)
	AddCustomDomain(ctx context.Context, projectName, domainName string) (*hosting.CustomDomain, error)
}

// DeploymentsAPI covers deployment history operations on the hosting side.
type DeploymentsAPI interface {
	ListDeployments(ctx context.Context, projectName string) ([]hosting.Deployment, error)
	RetryDeployment(ctx context.Context, projectName, deploymentID string) (*hosting.Deployment, error)
	RollbackDeployment(ctx context.Context, projectName, deploymentID string) (*hosting.Deployment, error)
}

// Sentinel failures callers can branch on via Result.Cause.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNoPages         = errors.New("project has no pages")
)

// Result is the outcome of one publish attempt. Cause carries the underlying
// error for programmatic handling; Error is its message for the wire.
type Result struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	ProjectURL string `json:"project_url,omitempty"`
	Cause      error  `json:"-"`
}

func failure(err error) Result {
	return Result{Error: err.Error(), Cause: err}
}

// Service runs the publish workflow: load state, render files, ensure the
// hosting project, upload, persist status, attach domains.
type Service struct {
	projects repository.ProjectRepository
	pages    repository.PageRepository
	content  repository.ContentRepository
	links    repository.ProjectDomainRepository
	hosting  PagesAPI
	history  DeploymentsAPI
	hub      *ws.Hub
	logger   *slog.Logger
	cfg      config.DashboardConfig
}

// New returns a deploy service. historyAPI may be nil when deployment history
// is not exposed.
func New(projects repository.ProjectRepository, pages repository.PageRepository, content repository.ContentRepository, links repository.ProjectDomainRepository, pagesAPI PagesAPI, historyAPI DeploymentsAPI, hub *ws.Hub, logger *slog.Logger, cfg config.DashboardConfig) Service {
	return Service{
		projects: projects,
		pages:    pages,
		content:  content,
		links:    links,
		hosting:  pagesAPI,
		history:  historyAPI,
		hub:      hub,
		logger:   logger,
		cfg:      cfg,
	}
}

// HostingProjectName derives the stable hosting-side identity for a project
// slug. The name correlates the dashboard project with the external hosting
// project across repeated deploys.
func (s Service) HostingProjectName(slug string) string {
	return s.cfg.ProjectPrefix + slug
}

// Deploy publishes a project. Status moves draft|published|failed -> building
// -> published on success; any failure after the building write lands on
// failed. There is no rollback: a hosting project created by a failed run is
// reused by the next attempt, and repeat deploys are the recovery mechanism.
func (s Service) Deploy(ctx context.Context, projectID string) Result {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failure(ErrProjectNotFound)
		}
		return failure(err)
	}

	pages, err := s.pages.ListPagesByProject(ctx, projectID)
	if err != nil {
		return failure(err)
	}
	blocks, err := s.content.ListContentByProject(ctx, projectID)
	if err != nil {
		return failure(err)
	}
	// Publishing an empty site is disallowed; reject before any state change.
	if len(pages) == 0 && len(blocks) == 0 {
		return failure(ErrNoPages)
	}

	linked, err := s.links.ListLinkedDomains(ctx, projectID)
	if err != nil {
		return failure(err)
	}

	if err := s.projects.UpdateProjectStatus(ctx, projectID, domain.ProjectStatusBuilding); err != nil {
		return failure(err)
	}
	s.emit(projectID, "building", "deployment started")

	name := s.HostingProjectName(project.Slug)
	projectURL, err := s.run(ctx, project, pages, blocks, linked, name)
	if err != nil {
		// The status must land terminal even when the failure happened
		// mid-flight.
		if statusErr := s.projects.UpdateProjectStatus(ctx, projectID, domain.ProjectStatusFailed); statusErr != nil {
			s.logger.Error("failed status write failed", "project_id", projectID, "error", statusErr)
		}
		s.emit(projectID, "failed", err.Error())
		s.logger.Error("deploy failed", "project_id", projectID, "hosting_project", name, "error", err)
		return failure(err)
	}

	s.emit(projectID, "published", projectURL)
	s.logger.Info("deploy succeeded", "project_id", projectID, "hosting_project", name, "url", projectURL)
	return Result{Success: true, ProjectURL: projectURL}
}

// run executes the fallible middle of the workflow; the caller owns the
// terminal status writes.
func (s Service) run(ctx context.Context, project *domain.Project, pages []domain.Page, blocks []domain.ContentBlock, linked []domain.LinkedDomain, name string) (string, error) {
	if err := s.ensureHostingProject(ctx, name); err != nil {
		return "", err
	}

	files := s.renderFiles(project, pages, blocks, linked)
	s.emit(project.ID, "uploading", fmt.Sprintf("uploading %d files", len(files)))

	deployment, err := s.hosting.CreateDeployment(ctx, name, files)
	if err != nil {
		return "", err
	}
	projectURL := deployment.URL
	if projectURL == "" {
		projectURL = "https://" + name + s.cfg.PagesDomainSuffix
	}

	if err := s.projects.SetProjectPublished(ctx, project.ID, name); err != nil {
		return "", err
	}

	s.attachDomains(ctx, project.ID, name, projectURL, linked)
	return projectURL, nil
}

// ensureHostingProject makes repeat and first-time publishes converge on the
// same hosting project.
func (s Service) ensureHostingProject(ctx context.Context, name string) error {
	_, err := s.hosting.GetProject(ctx, name)
	if err == nil {
		return nil
	}
	var apiErr *hosting.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		return err
	}
	s.logger.Info("hosting project absent, creating", "hosting_project", name)
	if _, err := s.hosting.CreateProject(ctx, hosting.CreateProjectInput{
		Name:             name,
		ProductionBranch: s.cfg.ProductionBranch,
	}); err != nil {
		return err
	}
	return nil
}

// renderFiles resolves block-driven pages to HTML and renders the full file
// set, merging the primary domain's tracking snippet into the head injection.
func (s Service) renderFiles(project *domain.Project, pages []domain.Page, blocks []domain.ContentBlock, linked []domain.LinkedDomain) render.FileSet {
	byPage := make(map[string][]domain.ContentBlock)
	for _, block := range blocks {
		byPage[block.PageSlug] = append(byPage[block.PageSlug], block)
	}

	resolved := make([]domain.Page, 0, len(pages))
	usedBlocks := false
	seen := make(map[string]bool, len(pages))
	for _, page := range pages {
		seen[page.Slug] = true
		if page.HTML == "" {
			if pageBlocks, ok := byPage[page.Slug]; ok {
				page.HTML = render.RenderBlockPage(project.Name, page.Title, pageBlocks)
				usedBlocks = true
			}
		}
		resolved = append(resolved, page)
	}
	// Content rows without a backing page row still produce a page, matching
	// the template-driven editing flow.
	for slug, pageBlocks := range byPage {
		if seen[slug] {
			continue
		}
		resolved = append(resolved, domain.Page{
			ProjectID: project.ID,
			Slug:      slug,
			HTML:      render.RenderBlockPage(project.Name, "", pageBlocks),
		})
		usedBlocks = true
	}

	rendered := *project
	if snippet := s.trackingSnippet(linked); snippet != "" {
		rendered.GlobalHeadCode = rendered.GlobalHeadCode + snippet
	}

	files := render.Render(&rendered, resolved)
	if usedBlocks {
		files["styles.css"] = render.StylesCSS()
	}
	return files
}

func (s Service) trackingSnippet(linked []domain.LinkedDomain) string {
	for _, item := range linked {
		if !item.Link.IsPrimary || len(item.Link.TrackingConfig) == 0 {
			continue
		}
		var cfg domain.TrackingConfig
		if err := json.Unmarshal(item.Link.TrackingConfig, &cfg); err != nil {
			s.logger.Warn("invalid tracking config", "link_id", item.Link.ID, "error", err)
			continue
		}
		return render.TrackingSnippet(cfg)
	}
	return ""
}

// attachDomains attaches every linked, DNS-active domain to the hosting
// project. Attachments are independent; one failure is logged and swallowed
// since the site is already live on the default hosting URL.
func (s Service) attachDomains(ctx context.Context, projectID, name, projectURL string, linked []domain.LinkedDomain) {
	var wg sync.WaitGroup
	for _, item := range linked {
		if item.Domain.DNSStatus != domain.DNSStatusActive {
			continue
		}
		wg.Add(1)
		go func(item domain.LinkedDomain) {
			defer wg.Done()
			if _, err := s.hosting.AddCustomDomain(ctx, name, item.Domain.Name); err != nil {
				s.logger.Warn("custom domain attach failed", "project_id", projectID, "domain", item.Domain.Name, "error", err)
				return
			}
			if err := s.links.UpdateDeploymentURL(ctx, item.Link.ID, projectURL); err != nil {
				s.logger.Warn("deployment url update failed", "link_id", item.Link.ID, "error", err)
			}
		}(item)
	}
	wg.Wait()
}

// ErrHistoryUnavailable is returned when deployment history operations are
// requested but no history API was configured.
var ErrHistoryUnavailable = errors.New("deployment history unavailable")

// History lists the project's deployments on the hosting side, newest first.
func (s Service) History(ctx context.Context, projectID string) ([]hosting.Deployment, error) {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.history.ListDeployments(ctx, s.HostingProjectName(project.Slug))
}

// Retry re-runs a previous deployment on the hosting side.
func (s Service) Retry(ctx context.Context, projectID, deploymentID string) (*hosting.Deployment, error) {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.history.RetryDeployment(ctx, s.HostingProjectName(project.Slug), deploymentID)
}

// Rollback makes an earlier deployment live again on the hosting side.
func (s Service) Rollback(ctx context.Context, projectID, deploymentID string) (*hosting.Deployment, error) {
	project, err := s.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.history.RollbackDeployment(ctx, s.HostingProjectName(project.Slug), deploymentID)
}

// progressEvent is the payload streamed to deploy progress subscribers.
type progressEvent struct {
	ProjectID string    `json:"project_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (s Service) emit(projectID, stage, message string) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(progressEvent{
		ProjectID: projectID,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	s.hub.Broadcast(projectID, payload)
}
