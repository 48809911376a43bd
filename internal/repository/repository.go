package repository

import (
	"context"

	"github.com/serjnsk/dl-network/internal/domain"
)

// ProjectRepository persists projects and their publish state.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	UpdateProject(ctx context.Context, project *domain.Project) error
	UpdateProjectStatus(ctx context.Context, projectID, status string) error
	SetProjectPublished(ctx context.Context, projectID, hostingProjectID string) error
	UpdateGlobalCode(ctx context.Context, projectID, headCode, bodyCode string) error
	DeleteProject(ctx context.Context, projectID string) error
}

// PageRepository persists project pages.
type PageRepository interface {
	UpsertPage(ctx context.Context, page *domain.Page) error
	ListPagesByProject(ctx context.Context, projectID string) ([]domain.Page, error)
	DeletePage(ctx context.Context, projectID, slug string) error
}

// ContentRepository persists block content attached to project pages.
type ContentRepository interface {
	UpsertContentBlock(ctx context.Context, block *domain.ContentBlock) error
	ListContentByProject(ctx context.Context, projectID string) ([]domain.ContentBlock, error)
	DeleteContentBlock(ctx context.Context, blockID string) error
}

// DomainRepository manages the shared domain pool.
type DomainRepository interface {
	CreateDomain(ctx context.Context, d *domain.Domain) error
	GetDomainByID(ctx context.Context, domainID string) (*domain.Domain, error)
	ListDomains(ctx context.Context) ([]domain.Domain, error)
	UpdateDNSStatus(ctx context.Context, domainID, status string) error
	SetZoneID(ctx context.Context, domainID, zoneID string) error
	DeleteDomain(ctx context.Context, domainID string) error
	CountProjectLinks(ctx context.Context, domainID string) (int, error)
}

// ProjectDomainRepository manages project/domain links.
type ProjectDomainRepository interface {
	LinkDomain(ctx context.Context, link *domain.ProjectDomain) error
	UnlinkDomain(ctx context.Context, linkID string) (projectID string, err error)
	GetLink(ctx context.Context, linkID string) (*domain.ProjectDomain, error)
	ListLinkedDomains(ctx context.Context, projectID string) ([]domain.LinkedDomain, error)
	SetPrimaryDomain(ctx context.Context, projectID, linkID string) error
	UpdateTrackingConfig(ctx context.Context, linkID string, cfg []byte) error
	UpdateDeploymentURL(ctx context.Context, linkID, deploymentURL string) error
}

// TemplateRepository reads template layouts used at project creation.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, template *domain.Template) error
	GetTemplateByID(ctx context.Context, templateID string) (*domain.Template, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]domain.Template, error)
	ListTemplatePages(ctx context.Context, templateID string) ([]domain.TemplatePage, error)
	ListPageBlocks(ctx context.Context, templatePageID string) ([]domain.PageBlock, error)
}
