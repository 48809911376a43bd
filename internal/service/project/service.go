package project

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/serjnsk/dl-network/internal/domain"
	"github.com/serjnsk/dl-network/internal/repository"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	ErrInvalidName = errors.New("project name is required")
	ErrInvalidSlug = errors.New("slug must be lowercase letters, digits and hyphens")
	ErrSlugTaken   = errors.New("slug already in use")
)

// CreateInput encapsulates project creation attributes.
type CreateInput struct {
	Name       string
	Slug       string
	TemplateID *string
}

// PageInput holds one page to create or replace.
type PageInput struct {
	ProjectID string
	Slug      string
	Title     string
	HTML      string
	PageOrder int
}

// Service manages project and page lifecycle outside the deploy path.
type Service struct {
	projects  repository.ProjectRepository
	pages     repository.PageRepository
	content   repository.ContentRepository
	templates repository.TemplateRepository
	logger    *slog.Logger
}

// New returns a project service.
func New(projects repository.ProjectRepository, pages repository.PageRepository, content repository.ContentRepository, templates repository.TemplateRepository, logger *slog.Logger) Service {
	return Service{projects: projects, pages: pages, content: content, templates: templates, logger: logger}
}

// Create registers a project in draft state. When a template is given, its
// page slots and default block content are copied onto the new project.
func (s Service) Create(ctx context.Context, input CreateInput) (*domain.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrInvalidName
	}
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidSlug
	}
	now := time.Now().UTC()
	project := &domain.Project{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(input.Name),
		Slug:       slug,
		TemplateID: input.TemplateID,
		Status:     domain.ProjectStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	if input.TemplateID != nil {
		if err := s.applyTemplate(ctx, project, *input.TemplateID); err != nil {
			s.logger.Warn("template copy incomplete", "project_id", project.ID, "template_id", *input.TemplateID, "error", err)
		}
	}
	s.logger.Info("project created", "project_id", project.ID, "slug", project.Slug)
	return project, nil
}

// applyTemplate copies the template's pages and default block content.
func (s Service) applyTemplate(ctx context.Context, project *domain.Project, templateID string) error {
	templatePages, err := s.templates.ListTemplatePages(ctx, templateID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, tp := range templatePages {
		page := &domain.Page{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			Slug:      tp.Slug,
			Title:     tp.Title,
			PageOrder: tp.PageOrder,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.pages.UpsertPage(ctx, page); err != nil {
			return err
		}
		blocks, err := s.templates.ListPageBlocks(ctx, tp.ID)
		if err != nil {
			return err
		}
		for _, slot := range blocks {
			block := &domain.ContentBlock{
				ID:        uuid.NewString(),
				ProjectID: project.ID,
				PageSlug:  tp.Slug,
				BlockType: slot.BlockType,
				Order:     slot.BlockOrder,
				Content:   slot.DefaultContent,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.content.UpsertContentBlock(ctx, block); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get returns a project by identifier.
func (s Service) Get(ctx context.Context, projectID string) (*domain.Project, error) {
	return s.projects.GetProjectByID(ctx, projectID)
}

// List returns all projects.
func (s Service) List(ctx context.Context) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx)
}

// Update rewrites name/slug/template of a project.
func (s Service) Update(ctx context.Context, project *domain.Project) error {
	if strings.TrimSpace(project.Name) == "" {
		return ErrInvalidName
	}
	project.Slug = strings.ToLower(strings.TrimSpace(project.Slug))
	if !slugPattern.MatchString(project.Slug) {
		return ErrInvalidSlug
	}
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

// Delete removes a project; pages and content cascade in the store.
func (s Service) Delete(ctx context.Context, projectID string) error {
	return s.projects.DeleteProject(ctx, projectID)
}

// SetGlobalCode stores the project-wide head/body injection snippets.
func (s Service) SetGlobalCode(ctx context.Context, projectID, headCode, bodyCode string) error {
	return s.projects.UpdateGlobalCode(ctx, projectID, headCode, bodyCode)
}

// UpsertPage creates or replaces one page of a project.
func (s Service) UpsertPage(ctx context.Context, input PageInput) (*domain.Page, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, ErrInvalidSlug
	}
	now := time.Now().UTC()
	page := &domain.Page{
		ID:        uuid.NewString(),
		ProjectID: input.ProjectID,
		Slug:      slug,
		Title:     input.Title,
		HTML:      input.HTML,
		PageOrder: input.PageOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.pages.UpsertPage(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

// ListPages returns a project's pages in render order.
func (s Service) ListPages(ctx context.Context, projectID string) ([]domain.Page, error) {
	return s.pages.ListPagesByProject(ctx, projectID)
}

// DeletePage removes one page of a project.
func (s Service) DeletePage(ctx context.Context, projectID, slug string) error {
	return s.pages.DeletePage(ctx, projectID, slug)
}

// ListTemplates returns available templates for the creation form.
func (s Service) ListTemplates(ctx context.Context, activeOnly bool) ([]domain.Template, error) {
	return s.templates.ListTemplates(ctx, activeOnly)
}
