package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/serjnsk/dl-network/internal/domain"
)

// Block content payloads as stored in project_content.

type heroContent struct {
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	ButtonText string `json:"button_text"`
	ButtonURL  string `json:"button_url"`
}

type featureItem struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type featuresContent struct {
	Title string        `json:"title"`
	Items []featureItem `json:"items"`
}

type ctaContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ButtonText  string `json:"button_text"`
	ButtonURL   string `json:"button_url"`
}

type testimonialItem struct {
	Author  string `json:"author"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type testimonialsContent struct {
	Title string            `json:"title"`
	Items []testimonialItem `json:"items"`
}

type footerContent struct {
	Copyright string `json:"copyright"`
}

// RenderBlockPage composes a full HTML document from ordered content blocks.
// Template-driven pages store blocks instead of raw HTML; the result feeds
// the same injection pipeline as hand-written pages.
func RenderBlockPage(projectName, title string, blocks []domain.ContentBlock) string {
	var body strings.Builder
	for _, block := range blocks {
		body.WriteString(renderBlock(block))
	}
	if body.Len() == 0 {
		fmt.Fprintf(&body, "<section class=\"hero\"><h1>%s</h1></section>\n", projectName)
	}
	if title == "" {
		title = projectName
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<link rel="stylesheet" href="/styles.css">
</head>
<body>
%s</body>
</html>`, title, body.String())
}

func renderBlock(block domain.ContentBlock) string {
	switch block.BlockType {
	case domain.BlockHero:
		var c heroContent
		if err := json.Unmarshal(block.Content, &c); err != nil {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<section class=\"hero\"><h1>%s</h1><p>%s</p>", c.Title, c.Subtitle)
		if c.ButtonText != "" {
			fmt.Fprintf(&b, "<a href=\"%s\" class=\"btn\">%s</a>", orHash(c.ButtonURL), c.ButtonText)
		}
		b.WriteString("</section>\n")
		return b.String()
	case domain.BlockFeatures:
		var c featuresContent
		if err := json.Unmarshal(block.Content, &c); err != nil {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<section class=\"features\"><h2>%s</h2><div class=\"features-grid\">", c.Title)
		for _, item := range c.Items {
			fmt.Fprintf(&b, "<div class=\"feature-card\"><div class=\"feature-icon\">%s</div><h3>%s</h3><p>%s</p></div>",
				item.Icon, item.Title, item.Description)
		}
		b.WriteString("</div></section>\n")
		return b.String()
	case domain.BlockCTA:
		var c ctaContent
		if err := json.Unmarshal(block.Content, &c); err != nil {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<section class=\"cta\"><h2>%s</h2><p>%s</p>", c.Title, c.Description)
		if c.ButtonText != "" {
			fmt.Fprintf(&b, "<a href=\"%s\" class=\"btn btn-primary\">%s</a>", orHash(c.ButtonURL), c.ButtonText)
		}
		b.WriteString("</section>\n")
		return b.String()
	case domain.BlockTestimonials:
		var c testimonialsContent
		if err := json.Unmarshal(block.Content, &c); err != nil {
			return ""
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<section class=\"testimonials\"><h2>%s</h2><div class=\"testimonials-grid\">", c.Title)
		for _, item := range c.Items {
			fmt.Fprintf(&b, "<blockquote class=\"testimonial\"><p>%s</p><footer>%s, %s</footer></blockquote>",
				item.Content, item.Author, item.Role)
		}
		b.WriteString("</div></section>\n")
		return b.String()
	case domain.BlockFooter:
		var c footerContent
		if err := json.Unmarshal(block.Content, &c); err != nil {
			return ""
		}
		copyright := c.Copyright
		if copyright == "" {
			copyright = fmt.Sprintf("© %d", time.Now().Year())
		}
		return fmt.Sprintf("<footer class=\"footer\"><p>%s</p></footer>\n", copyright)
	default:
		return ""
	}
}

func orHash(u string) string {
	if u == "" {
		return "#"
	}
	return u
}

// StylesCSS returns the fixed stylesheet shipped with block-rendered sites.
func StylesCSS() string {
	return stylesCSS
}

const stylesCSS = `* { margin: 0; padding: 0; box-sizing: border-box; }
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; }
.hero { min-height: 60vh; display: flex; flex-direction: column; justify-content: center; align-items: center; text-align: center; padding: 4rem 2rem; background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; }
.hero h1 { font-size: 3rem; margin-bottom: 1rem; }
.hero p { font-size: 1.25rem; opacity: 0.9; max-width: 600px; }
.btn { display: inline-block; margin-top: 2rem; padding: 1rem 2rem; background: white; color: #667eea; text-decoration: none; border-radius: 8px; font-weight: 600; }
.btn-primary { background: #667eea; color: white; }
.features { padding: 4rem 2rem; text-align: center; }
.features h2 { font-size: 2rem; margin-bottom: 3rem; }
.features-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(280px, 1fr)); gap: 2rem; max-width: 1200px; margin: 0 auto; }
.feature-card { padding: 2rem; border-radius: 12px; background: #f8f9fa; }
.feature-icon { font-size: 2.5rem; margin-bottom: 1rem; }
.cta { padding: 4rem 2rem; text-align: center; background: #f8f9fa; }
.cta h2 { font-size: 2rem; margin-bottom: 1rem; }
.testimonials { padding: 4rem 2rem; text-align: center; }
.testimonials-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(280px, 1fr)); gap: 2rem; max-width: 1200px; margin: 0 auto; }
.testimonial { padding: 2rem; border-radius: 12px; background: #f8f9fa; font-style: italic; }
.footer { padding: 2rem; text-align: center; background: #1a1a1a; color: #888; }
`
