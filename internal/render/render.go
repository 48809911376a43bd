package render

import (
	"strings"

	"github.com/serjnsk/dl-network/internal/domain"
)

// FileSet maps relative output paths to file contents. It is produced fresh
// on every deploy and never persisted.
type FileSet map[string]string

const robotsTxt = "User-agent: *\nAllow: /"

// Render converts a project's pages into a deployable file set. The page
// with slug "index" lands at the site root; every other slug S lands at
// S/index.html. A permissive robots.txt is always included. Pages must
// already be ordered; Render is a pure function over its inputs.
func Render(project *domain.Project, pages []domain.Page) FileSet {
	files := make(FileSet, len(pages)+1)
	for _, page := range pages {
		html := page.HTML
		html = InjectHead(html, project.GlobalHeadCode)
		html = InjectBody(html, project.GlobalBodyCode)
		files[PagePath(page.Slug)] = html
	}
	files["robots.txt"] = robotsTxt
	return files
}

// PagePath maps a page slug to its output path under the clean-URL convention.
func PagePath(slug string) string {
	if slug == "index" {
		return "index.html"
	}
	return slug + "/index.html"
}

// InjectHead inserts code immediately before the first </head> occurrence,
// falling back to before <body> when no </head> exists, then to prepending.
// This is a textual patch, not HTML parsing; malformed documents degrade
// gracefully instead of failing.
func InjectHead(html, code string) string {
	if code == "" {
		return html
	}
	if idx := strings.Index(html, "</head>"); idx >= 0 {
		return html[:idx] + code + html[idx:]
	}
	if idx := strings.Index(html, "<body>"); idx >= 0 {
		return html[:idx] + code + html[idx:]
	}
	return code + html
}

// InjectBody inserts code immediately before </body>, appending at the very
// end when the tag is absent.
func InjectBody(html, code string) string {
	if code == "" {
		return html
	}
	if idx := strings.Index(html, "</body>"); idx >= 0 {
		return html[:idx] + code + html[idx:]
	}
	return html + code
}
