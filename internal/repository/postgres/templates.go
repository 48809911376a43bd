package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/serjnsk/dl-network/internal/domain"
	"github.com/serjnsk/dl-network/internal/repository"
)

// CreateTemplate inserts a template definition.
func (r *Repository) CreateTemplate(ctx context.Context, template *domain.Template) error {
	const query = `INSERT INTO templates (id, name, slug, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query,
		template.ID, template.Name, template.Slug, template.IsActive, template.CreatedAt, template.UpdatedAt)
	return mapWriteErr(err)
}

// GetTemplateByID fetches a template.
func (r *Repository) GetTemplateByID(ctx context.Context, templateID string) (*domain.Template, error) {
	const query = `SELECT id, name, slug, is_active, created_at, updated_at FROM templates WHERE id = $1`
	var t domain.Template
	if err := r.pool.QueryRow(ctx, query, templateID).Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns templates, optionally only active ones.
func (r *Repository) ListTemplates(ctx context.Context, activeOnly bool) ([]domain.Template, error) {
	query := `SELECT id, name, slug, is_active, created_at, updated_at FROM templates ORDER BY name ASC`
	if activeOnly {
		query = `SELECT id, name, slug, is_active, created_at, updated_at FROM templates WHERE is_active ORDER BY name ASC`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var templates []domain.Template
	for rows.Next() {
		var t domain.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// ListTemplatePages returns the page slots of a template in order.
func (r *Repository) ListTemplatePages(ctx context.Context, templateID string) ([]domain.TemplatePage, error) {
	const query = `SELECT id, template_id, slug, title, page_order, created_at
		FROM template_pages WHERE template_id = $1 ORDER BY page_order ASC, created_at ASC`
	rows, err := r.pool.Query(ctx, query, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []domain.TemplatePage
	for rows.Next() {
		var p domain.TemplatePage
		if err := rows.Scan(&p.ID, &p.TemplateID, &p.Slug, &p.Title, &p.PageOrder, &p.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ListPageBlocks returns the block slots of one template page in order.
func (r *Repository) ListPageBlocks(ctx context.Context, templatePageID string) ([]domain.PageBlock, error) {
	const query = `SELECT id, template_page_id, block_type, block_order, default_content, created_at
		FROM page_blocks WHERE template_page_id = $1 ORDER BY block_order ASC, created_at ASC`
	rows, err := r.pool.Query(ctx, query, templatePageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var blocks []domain.PageBlock
	for rows.Next() {
		var b domain.PageBlock
		if err := rows.Scan(&b.ID, &b.TemplatePageID, &b.BlockType, &b.BlockOrder, &b.DefaultContent, &b.CreatedAt); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
