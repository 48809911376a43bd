package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/serjnsk/dl-network/internal/domain"
	"github.com/serjnsk/dl-network/internal/repository"
)

// CreateDomain adds a domain to the shared pool.
func (r *Repository) CreateDomain(ctx context.Context, d *domain.Domain) error {
	const query = `INSERT INTO domains (id, domain_name, cf_zone_id, dns_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, d.ID, d.Name, d.ZoneID, d.DNSStatus, d.CreatedAt, d.UpdatedAt)
	return mapWriteErr(err)
}

// GetDomainByID fetches a pooled domain.
func (r *Repository) GetDomainByID(ctx context.Context, domainID string) (*domain.Domain, error) {
	const query = `SELECT id, domain_name, cf_zone_id, dns_status, created_at, updated_at
		FROM domains WHERE id = $1`
	var d domain.Domain
	if err := r.pool.QueryRow(ctx, query, domainID).Scan(&d.ID, &d.Name, &d.ZoneID, &d.DNSStatus, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDomains returns the domain pool ordered by name.
func (r *Repository) ListDomains(ctx context.Context) ([]domain.Domain, error) {
	const query = `SELECT id, domain_name, cf_zone_id, dns_status, created_at, updated_at
		FROM domains ORDER BY domain_name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var domains []domain.Domain
	for rows.Next() {
		var d domain.Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.ZoneID, &d.DNSStatus, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// UpdateDNSStatus flips a domain's dns_status field.
func (r *Repository) UpdateDNSStatus(ctx context.Context, domainID, status string) error {
	const query = `UPDATE domains SET dns_status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, domainID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetZoneID records the provider zone a domain resolved to.
func (r *Repository) SetZoneID(ctx context.Context, domainID, zoneID string) error {
	const query = `UPDATE domains SET cf_zone_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, domainID, zoneID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteDomain removes a pooled domain.
func (r *Repository) DeleteDomain(ctx context.Context, domainID string) error {
	const query = `DELETE FROM domains WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, domainID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountProjectLinks counts projects a domain is linked to.
func (r *Repository) CountProjectLinks(ctx context.Context, domainID string) (int, error) {
	const query = `SELECT COUNT(1) FROM project_domains WHERE domain_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, domainID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LinkDomain attaches a pooled domain to a project.
func (r *Repository) LinkDomain(ctx context.Context, link *domain.ProjectDomain) error {
	const query = `INSERT INTO project_domains (id, project_id, domain_id, is_primary, canonical_domain, tracking_config, cf_deployment_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		link.ID, link.ProjectID, link.DomainID, link.IsPrimary, link.CanonicalDomain,
		link.TrackingConfig, link.DeploymentURL, link.CreatedAt)
	return mapWriteErr(err)
}

// UnlinkDomain removes a project/domain link and reports the affected project.
func (r *Repository) UnlinkDomain(ctx context.Context, linkID string) (string, error) {
	const query = `DELETE FROM project_domains WHERE id = $1 RETURNING project_id`
	var projectID string
	if err := r.pool.QueryRow(ctx, query, linkID).Scan(&projectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return projectID, nil
}

// GetLink fetches a project/domain link by identifier.
func (r *Repository) GetLink(ctx context.Context, linkID string) (*domain.ProjectDomain, error) {
	const query = `SELECT id, project_id, domain_id, is_primary, canonical_domain, tracking_config, cf_deployment_url, created_at
		FROM project_domains WHERE id = $1`
	var l domain.ProjectDomain
	if err := r.pool.QueryRow(ctx, query, linkID).Scan(&l.ID, &l.ProjectID, &l.DomainID, &l.IsPrimary,
		&l.CanonicalDomain, &l.TrackingConfig, &l.DeploymentURL, &l.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListLinkedDomains returns a project's links joined with their pool entries,
// primary first.
func (r *Repository) ListLinkedDomains(ctx context.Context, projectID string) ([]domain.LinkedDomain, error) {
	const query = `SELECT pd.id, pd.project_id, pd.domain_id, pd.is_primary, pd.canonical_domain, pd.tracking_config, pd.cf_deployment_url, pd.created_at,
			d.id, d.domain_name, d.cf_zone_id, d.dns_status, d.created_at, d.updated_at
		FROM project_domains pd
		JOIN domains d ON d.id = pd.domain_id
		WHERE pd.project_id = $1
		ORDER BY pd.is_primary DESC, pd.created_at ASC`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var linked []domain.LinkedDomain
	for rows.Next() {
		var item domain.LinkedDomain
		if err := rows.Scan(&item.Link.ID, &item.Link.ProjectID, &item.Link.DomainID, &item.Link.IsPrimary,
			&item.Link.CanonicalDomain, &item.Link.TrackingConfig, &item.Link.DeploymentURL, &item.Link.CreatedAt,
			&item.Domain.ID, &item.Domain.Name, &item.Domain.ZoneID, &item.Domain.DNSStatus,
			&item.Domain.CreatedAt, &item.Domain.UpdatedAt); err != nil {
			return nil, err
		}
		linked = append(linked, item)
	}
	return linked, rows.Err()
}

// SetPrimaryDomain clears all primary flags for the project and sets one link
// primary inside a single transaction.
func (r *Repository) SetPrimaryDomain(ctx context.Context, projectID, linkID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set primary: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE project_domains SET is_primary = FALSE WHERE project_id = $1`, projectID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE project_domains SET is_primary = TRUE WHERE id = $1 AND project_id = $2`, linkID, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return tx.Commit(ctx)
}

// UpdateTrackingConfig replaces the analytics config stored on a link.
func (r *Repository) UpdateTrackingConfig(ctx context.Context, linkID string, cfg []byte) error {
	const query = `UPDATE project_domains SET tracking_config = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, linkID, cfg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateDeploymentURL records the hosting deployment URL last observed for a link.
func (r *Repository) UpdateDeploymentURL(ctx context.Context, linkID, deploymentURL string) error {
	const query = `UPDATE project_domains SET cf_deployment_url = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, linkID, deploymentURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
