package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serjnsk/dl-network/internal/domain"
	"github.com/serjnsk/dl-network/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.ProjectRepository       = (*Repository)(nil)
	_ repository.PageRepository          = (*Repository)(nil)
	_ repository.ContentRepository       = (*Repository)(nil)
	_ repository.DomainRepository        = (*Repository)(nil)
	_ repository.ProjectDomainRepository = (*Repository)(nil)
	_ repository.TemplateRepository      = (*Repository)(nil)
)

// mapWriteErr converts unique violations to repository.ErrConflict.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return err
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, name, slug, template_id, cf_project_id, status, global_head_code, global_body_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		project.ID, project.Name, project.Slug, project.TemplateID, project.HostingProjectID,
		project.Status, project.GlobalHeadCode, project.GlobalBodyCode, project.CreatedAt, project.UpdatedAt)
	return mapWriteErr(err)
}

const projectColumns = `id, name, slug, template_id, cf_project_id, status, global_head_code, global_body_code, created_at, updated_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.TemplateID, &p.HostingProjectID,
		&p.Status, &p.GlobalHeadCode, &p.GlobalBodyCode, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetProjectByID fetches a project by identifier.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.pool.QueryRow(ctx, query, projectID))
}

// GetProjectBySlug fetches a project by slug.
func (r *Repository) GetProjectBySlug(ctx context.Context, slug string) (*domain.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE slug = $1`
	return scanProject(r.pool.QueryRow(ctx, query, slug))
}

// ListProjects returns all projects, newest first.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.TemplateID, &p.HostingProjectID,
			&p.Status, &p.GlobalHeadCode, &p.GlobalBodyCode, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject rewrites mutable project attributes.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	const query = `UPDATE projects SET name = $2, slug = $3, template_id = $4, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, project.ID, project.Name, project.Slug, project.TemplateID)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateProjectStatus writes the publish status field.
func (r *Repository) UpdateProjectStatus(ctx context.Context, projectID, status string) error {
	const query = `UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, projectID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetProjectPublished marks a project published and records its hosting project id.
func (r *Repository) SetProjectPublished(ctx context.Context, projectID, hostingProjectID string) error {
	const query = `UPDATE projects SET status = $2, cf_project_id = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, projectID, domain.ProjectStatusPublished, hostingProjectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateGlobalCode stores project-wide head/body injection snippets.
func (r *Repository) UpdateGlobalCode(ctx context.Context, projectID, headCode, bodyCode string) error {
	const query = `UPDATE projects SET global_head_code = $2, global_body_code = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, projectID, headCode, bodyCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteProject removes a project; pages and content cascade.
func (r *Repository) DeleteProject(ctx context.Context, projectID string) error {
	const query = `DELETE FROM projects WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpsertPage inserts or replaces a project page keyed by (project, slug).
func (r *Repository) UpsertPage(ctx context.Context, page *domain.Page) error {
	const query = `INSERT INTO project_pages (id, project_id, slug, title, html, page_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id, slug) DO UPDATE SET
			title = EXCLUDED.title,
			html = EXCLUDED.html,
			page_order = EXCLUDED.page_order,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		page.ID, page.ProjectID, page.Slug, page.Title, page.HTML, page.PageOrder, page.CreatedAt, page.UpdatedAt)
	return mapWriteErr(err)
}

// ListPagesByProject returns pages ordered by their explicit order field,
// insertion order breaking ties.
func (r *Repository) ListPagesByProject(ctx context.Context, projectID string) ([]domain.Page, error) {
	const query = `SELECT id, project_id, slug, title, html, page_order, created_at, updated_at
		FROM project_pages WHERE project_id = $1 ORDER BY page_order ASC, created_at ASC`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []domain.Page
	for rows.Next() {
		var p domain.Page
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Slug, &p.Title, &p.HTML, &p.PageOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// DeletePage removes one page of a project.
func (r *Repository) DeletePage(ctx context.Context, projectID, slug string) error {
	const query = `DELETE FROM project_pages WHERE project_id = $1 AND slug = $2`
	tag, err := r.pool.Exec(ctx, query, projectID, slug)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpsertContentBlock inserts or updates one block of page content.
func (r *Repository) UpsertContentBlock(ctx context.Context, block *domain.ContentBlock) error {
	const query = `INSERT INTO project_content (id, project_id, page_slug, block_type, block_order, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			block_type = EXCLUDED.block_type,
			block_order = EXCLUDED.block_order,
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		block.ID, block.ProjectID, block.PageSlug, block.BlockType, block.Order, block.Content, block.CreatedAt, block.UpdatedAt)
	return mapWriteErr(err)
}

// ListContentByProject returns content blocks ordered within each page.
func (r *Repository) ListContentByProject(ctx context.Context, projectID string) ([]domain.ContentBlock, error) {
	const query = `SELECT id, project_id, page_slug, block_type, block_order, content, created_at, updated_at
		FROM project_content WHERE project_id = $1 ORDER BY page_slug ASC, block_order ASC, created_at ASC`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var blocks []domain.ContentBlock
	for rows.Next() {
		var b domain.ContentBlock
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.PageSlug, &b.BlockType, &b.Order, &b.Content, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// DeleteContentBlock removes one content block.
func (r *Repository) DeleteContentBlock(ctx context.Context, blockID string) error {
	const query = `DELETE FROM project_content WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, blockID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
