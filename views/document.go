package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// SlideshowScript is where the embedded slideshow controller is served.
const SlideshowScript = "/public/storefront/slideshow.js"

// Document wraps rendered bands in a minimal public page shell.
func Document(site Site, meta PageMeta, page Page, tokens StyleTokens) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		lang := meta.Lang
		if lang == "" {
			lang = "en"
		}
		title := meta.Title
		if site.Name != "" && title != site.Name {
			title = strings.TrimPrefix(title+" | "+site.Name, " | ")
		}

		b.WriteString(`<!DOCTYPE html><html lang="` + templ.EscapeString(lang) + `"><head>`)
		b.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>` + templ.EscapeString(title) + `</title>`)
		if meta.Description != "" {
			b.WriteString(`<meta name="description" content="` + templ.EscapeString(meta.Description) + `">`)
		}
		if meta.URL != "" {
			b.WriteString(`<link rel="canonical" href="` + templ.EscapeString(meta.URL) + `">`)
		}
		if css := strings.TrimSpace(tokens.CustomCSS); css != "" {
			// Stored CSS is emitted as-is; only a closing tag could break out.
			b.WriteString(`<style>` + strings.ReplaceAll(css, "</", `<\/`) + `</style>`)
		}
		writeJsonLD(&b, WebPageJsonLD(site, meta))
		for _, ld := range page.StructuredData {
			writeJsonLD(&b, ld)
		}
		b.WriteString(`</head><body><main class="bands">`)
		b.WriteString(page.HTML)
		b.WriteString(`</main>`)
		if strings.Contains(page.HTML, `class="slideshow"`) {
			b.WriteString(`<script src="` + SlideshowScript + `" defer></script>`)
		}
		b.WriteString(`</body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// writeJsonLD embeds a JSON-LD block. json.Marshal already escapes <, >
// and &, so the payload cannot close the script element.
func writeJsonLD(b *strings.Builder, ld string) {
	b.WriteString(`<script type="application/ld+json">`)
	b.WriteString(ld)
	b.WriteString(`</script>`)
}
