package domain

import "time"

// Project statuses. Transitions happen only inside the deploy service:
// draft|published|failed -> building -> published|failed.
const (
	ProjectStatusDraft     = "draft"
	ProjectStatusBuilding  = "building"
	ProjectStatusPublished = "published"
	ProjectStatusFailed    = "failed"
)

// Project is a user-created site instance published to one hosting target.
type Project struct {
	ID               string
	Name             string
	Slug             string
	TemplateID       *string
	HostingProjectID *string
	Status           string
	GlobalHeadCode   string
	GlobalBodyCode   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Page is one static HTML document belonging to a project. Slug "index" is
// the canonical root page.
type Page struct {
	ID        string
	ProjectID string
	Slug      string
	Title     string
	HTML      string
	PageOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentBlock is one typed content fragment on a project page, ordered
// within its page slug.
type ContentBlock struct {
	ID        string
	ProjectID string
	PageSlug  string
	BlockType string
	Order     int
	Content   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
