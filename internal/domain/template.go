package domain

import "time"

// Block types known to the renderer.
const (
	BlockHero         = "hero"
	BlockFeatures     = "features"
	BlockCTA          = "cta"
	BlockTestimonials = "testimonials"
	BlockFooter       = "footer"
)

// Template describes a reusable page/block layout projects are created from.
type Template struct {
	ID        string
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TemplatePage is one page slot within a template.
type TemplatePage struct {
	ID         string
	TemplateID string
	Slug       string
	Title      string
	PageOrder  int
	CreatedAt  time.Time
}

// PageBlock is a block slot on a template page with its default content.
type PageBlock struct {
	ID             string
	TemplatePageID string
	BlockType      string
	BlockOrder     int
	DefaultContent []byte
	CreatedAt      time.Time
}
