package views

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/storefront/band"
)

const placeholderNotice = "This section is currently unavailable."

// RenderPage renders bands in ascending band order; equal orders keep their
// input sequence. It never fails: a band that cannot be rendered becomes a
// placeholder and the rest of the page is unaffected.
func RenderPage(bands []band.Band, tokens StyleTokens, site Site) Page {
	sorted := make([]band.Band, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	var page Page
	var buf strings.Builder
	for _, b := range sorted {
		f := RenderBand(b, tokens, site)
		buf.WriteString(f.HTML)
		page.StructuredData = append(page.StructuredData, f.StructuredData...)
	}
	page.HTML = buf.String()
	return page
}

// RenderBand renders a single band.
func RenderBand(b band.Band, tokens StyleTokens, site Site) (f Fragment) {
	defer func() {
		if r := recover(); r != nil {
			f = placeholder(b)
		}
	}()

	var (
		c  templ.Component
		ld []string
	)
	switch v := b.Content.(type) {
	case band.Slideshow:
		if len(v.Slides) == 0 {
			return placeholder(b)
		}
		c = slideshowBand(b, v)
		ld = append(ld, itemListJsonLD(v, site))
	case band.Product:
		if !v.Renderable() {
			return placeholder(b)
		}
		c = productBand(b, v, tokens)
		ld = append(ld, productJsonLD(v, site))
	case band.HTML:
		c = htmlBand(b, v)
	case band.Link:
		if strings.TrimSpace(v.URL) == "" || strings.TrimSpace(v.Label) == "" {
			return placeholder(b)
		}
		c = linkBand(b, v, tokens)
	default:
		return placeholder(b)
	}

	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		return placeholder(b)
	}
	return Fragment{HTML: buf.String(), StructuredData: ld}
}

func placeholder(b band.Band) Fragment {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<section class="band band-placeholder" data-band-id="%d" data-band-type="%s">`,
		b.ID, templ.EscapeString(string(b.Type)))
	fmt.Fprintf(&buf, `<p class="band-placeholder-notice">%s</p></section>`, placeholderNotice)
	return Fragment{HTML: buf.String(), Placeholder: true}
}

// openSection writes the wrapper shared by every band.
func openSection(w io.Writer, b band.Band, extraClass, style string) error {
	class := fmt.Sprintf("band band-%s band-h%d", b.Type, band.ClampHeight(b.Height))
	if extraClass != "" {
		class += " " + extraClass
	}
	_, err := fmt.Fprintf(w, `<section class="%s" data-band-id="%d" data-band-type="%s"`,
		templ.EscapeString(class), b.ID, templ.EscapeString(string(b.Type)))
	if err != nil {
		return err
	}
	if style != "" {
		if _, err := fmt.Fprintf(w, ` style="%s"`, templ.EscapeString(style)); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, ">")
	return err
}

func slideshowBand(b band.Band, s band.Slideshow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := openSection(&buf, b, "", ""); err != nil {
			return err
		}
		fmt.Fprintf(&buf, `<div class="slideshow" data-autoplay="%t" data-interval="%d">`, bool(s.Autoplay), int(s.Interval))
		if s.Title != "" {
			fmt.Fprintf(&buf, `<h2 class="slideshow-title">%s</h2>`, templ.EscapeString(s.Title))
		}
		if s.Description != "" {
			fmt.Fprintf(&buf, `<p class="slideshow-description">%s</p>`, templ.EscapeString(s.Description))
		}

		buf.WriteString(`<div class="slides">`)
		for i, sl := range s.Slides {
			class := "slide"
			if i == 0 {
				class += " is-active"
			}
			fmt.Fprintf(&buf, `<figure class="%s" data-slide="%d">`, class, i)
			if sl.Link != "" {
				fmt.Fprintf(&buf, `<a href="%s">`, templ.EscapeString(safeHref(sl.Link)))
			}
			if sl.Image != "" {
				fmt.Fprintf(&buf, `<img src="%s" alt="%s" loading="%s">`,
					templ.EscapeString(safeHref(sl.Image)), templ.EscapeString(firstNonEmpty(sl.Alt, sl.Title)), loading(i))
			}
			if sl.Link != "" {
				buf.WriteString(`</a>`)
			}
			if sl.Title != "" || sl.Subtitle != "" {
				buf.WriteString(`<figcaption>`)
				if sl.Title != "" {
					fmt.Fprintf(&buf, `<h3 class="slide-title">%s</h3>`, templ.EscapeString(sl.Title))
				}
				if sl.Subtitle != "" {
					fmt.Fprintf(&buf, `<p class="slide-subtitle">%s</p>`, templ.EscapeString(sl.Subtitle))
				}
				buf.WriteString(`</figcaption>`)
			}
			buf.WriteString(`</figure>`)
		}
		buf.WriteString(`</div>`)

		if len(s.Slides) > 1 {
			buf.WriteString(`<button type="button" class="slideshow-prev" aria-label="Previous slide">&#8249;</button>`)
			buf.WriteString(`<button type="button" class="slideshow-next" aria-label="Next slide">&#8250;</button>`)
			buf.WriteString(`<div class="slideshow-dots">`)
			for i := range s.Slides {
				fmt.Fprintf(&buf, `<button type="button" class="slideshow-dot" data-slide="%d" aria-label="Go to slide %d"></button>`, i, i+1)
			}
			buf.WriteString(`</div>`)
		}
		buf.WriteString(`</div></section>`)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// loading eagerly loads the first slide only.
func loading(i int) string {
	if i == 0 {
		return "eager"
	}
	return "lazy"
}

func productBand(b band.Band, p band.Product, tokens StyleTokens) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		style := ""
		if bg := resolveColor(p.BackgroundColor, tokens); bg != "" {
			style = "background-color:" + bg
		}
		if err := openSection(&buf, b, "", style); err != nil {
			return err
		}
		buf.WriteString(`<div class="product"><div class="product-media">`)
		img := fmt.Sprintf(`<img src="%s" alt="%s" loading="lazy">`,
			templ.EscapeString(safeHref(p.Image)), templ.EscapeString(firstNonEmpty(p.Alt, p.Title)))
		if p.Link != "" {
			fmt.Fprintf(&buf, `<a href="%s">%s</a>`, templ.EscapeString(safeHref(p.Link)), img)
		} else {
			buf.WriteString(img)
		}
		buf.WriteString(`</div><div class="product-body">`)
		fmt.Fprintf(&buf, `<h2 class="product-title">%s</h2>`, templ.EscapeString(p.Title))
		if p.Subtitle != "" {
			fmt.Fprintf(&buf, `<p class="product-subtitle">%s</p>`, templ.EscapeString(p.Subtitle))
		}
		if p.Link != "" {
			fmt.Fprintf(&buf, `<a class="product-button" href="%s">%s</a>`,
				templ.EscapeString(safeHref(p.Link)), templ.EscapeString(firstNonEmpty(p.ButtonText, "Read more")))
		}
		buf.WriteString(`</div></div></section>`)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// htmlBand emits the markup verbatim. Html bands are trusted admin input.
func htmlBand(b band.Band, h band.HTML) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := openSection(w, b, layoutClasses(h.Background, h.Alignment), ""); err != nil {
			return err
		}
		if err := templ.Raw(h.Markup).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

func linkBand(b band.Band, l band.Link, tokens StyleTokens) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		extra := layoutClasses(l.Background, l.Alignment)
		style := ""
		if bg := resolveColor(l.Background, tokens); bg != "" {
			style = "background-color:" + bg
		}
		if err := openSection(&buf, b, extra, style); err != nil {
			return err
		}
		class := "band-link-button"
		if s := classToken(l.Style); s != "" {
			class += " band-link-" + s
		}
		fmt.Fprintf(&buf, `<a class="%s" href="%s"`, class, templ.EscapeString(safeHref(l.URL)))
		if l.Target == "_blank" {
			buf.WriteString(` target="_blank" rel="noopener noreferrer"`)
		}
		fmt.Fprintf(&buf, `>%s</a></section>`, templ.EscapeString(l.Label))
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func layoutClasses(background, alignment string) string {
	var classes []string
	if bg := classToken(background); bg != "" && !strings.HasPrefix(strings.TrimSpace(background), "#") {
		classes = append(classes, "bg-"+bg)
	}
	if a := classToken(alignment); a != "" {
		classes = append(classes, "align-"+a)
	}
	return strings.Join(classes, " ")
}

// itemListJsonLD describes a slideshow as a Schema.org ItemList. Keys of
// an object-valued seo_schema override the generated top-level fields,
// except the list elements themselves.
func itemListJsonLD(s band.Slideshow, site Site) string {
	items := make([]map[string]any, 0, len(s.Slides))
	for i, sl := range s.Slides {
		item := map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
		}
		if name := firstNonEmpty(sl.SEOTitle, sl.Title, sl.Alt); name != "" {
			item["name"] = name
		}
		if d := firstNonEmpty(sl.SEODescription, sl.Subtitle); d != "" {
			item["description"] = d
		}
		if sl.Image != "" {
			item["image"] = absURL(site.BaseURL, sl.Image)
		}
		if sl.Link != "" {
			item["url"] = absURL(site.BaseURL, sl.Link)
		}
		items = append(items, item)
	}

	data := map[string]any{
		"@context":        "https://schema.org",
		"@type":           "ItemList",
		"numberOfItems":   len(items),
		"itemListElement": items,
	}
	if s.Title != "" {
		data["name"] = s.Title
	}
	if s.Description != "" {
		data["description"] = s.Description
	}
	for k, v := range seoOverrides(s) {
		if k == "itemListElement" || k == "numberOfItems" {
			continue
		}
		data[k] = v
	}
	return marshalLD(data)
}

func seoOverrides(s band.Slideshow) map[string]any {
	if len(s.SEOSchema) == 0 {
		return nil
	}
	raw, err := band.Normalize(s.SEOSchema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func productJsonLD(p band.Product, site Site) string {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Product",
		"name":     firstNonEmpty(p.SEOTitle, p.Title),
		"image":    absURL(site.BaseURL, p.Image),
	}
	if d := firstNonEmpty(p.SEODescription, p.Subtitle); d != "" {
		data["description"] = d
	}
	if p.Link != "" {
		data["url"] = absURL(site.BaseURL, p.Link)
	}
	return marshalLD(data)
}
