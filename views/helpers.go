package views

import (
	"encoding/json"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/storefront/band"
)

var reHexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PageURL returns the public URL of a page. The home page lives at the root.
func PageURL(site Site, pageID string) string {
	if pageID != "" && pageID == site.HomePage {
		return strings.TrimRight(buildURL(site.BaseURL), "/") + "/"
	}
	return buildURL(site.BaseURL, "p", pageID)
}

// absURL resolves a stored path against the base URL for structured data.
// Absolute URLs are returned unchanged.
func absURL(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || band.IsAbsoluteURL(p) {
		return p
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return p
	}
	ref, err := url.Parse(p)
	if err != nil {
		return p
	}
	return b.ResolveReference(ref).String()
}

// safeHref sanitizes a user-supplied link for an href attribute. Unsafe
// schemes such as javascript: are replaced by templ's inert URL.
func safeHref(raw string) string {
	return string(templ.URL(strings.TrimSpace(raw)))
}

// resolveColor maps a palette token or literal hex to a CSS color.
// Anything else yields "".
func resolveColor(v string, tokens StyleTokens) string {
	v = strings.TrimSpace(v)
	if c, ok := tokens.Colors[v]; ok {
		v = c
	}
	if reHexColor.MatchString(v) {
		return v
	}
	return ""
}

// classToken reduces free-form input to a safe CSS class suffix.
func classToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func marshalLD(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// WebPageJsonLD produces a Schema.org WebPage block for the page shell.
func WebPageJsonLD(site Site, meta PageMeta) string {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebPage",
		"name":     meta.Title,
		"url":      meta.URL,
	}
	if meta.Description != "" {
		data["description"] = meta.Description
	}
	if site.Name != "" {
		data["isPartOf"] = map[string]string{
			"@type": "WebSite",
			"name":  site.Name,
			"url":   buildURL(site.BaseURL),
		}
	}
	return marshalLD(data)
}
