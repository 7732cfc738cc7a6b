package band

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// urlAttrs are the attributes whose value is a single URL.
var urlAttrs = map[string]bool{
	"src":      true,
	"href":     true,
	"poster":   true,
	"data-src": true,
	"content":  true,
}

var reCSSURL = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// References returns the local path of everything c points at: images,
// link targets, path-like seo_schema strings, and the src, href and srcset values and
// CSS url()s inside html markup. Absolute URLs are reduced to their path so
// a fully qualified link to an upload still counts. Paths come in order of
// first appearance and may lie outside the upload root.
func References(c Content) []string {
	var r refSet
	switch v := c.(type) {
	case Slideshow:
		for _, s := range v.Slides {
			r.add(s.Image)
			r.add(s.Link)
		}
		if len(v.SEOSchema) > 0 {
			var doc any
			if json.Unmarshal(v.SEOSchema, &doc) == nil {
				r.addStrings(doc)
			}
		}
	case Product:
		r.add(v.Image)
		r.add(v.Link)
	case HTML:
		r.addMarkup(v.Markup)
		r.addCSS(v.Background)
	case Link:
		r.add(v.URL)
		r.addCSS(v.Background)
	}
	return r.paths
}

type refSet struct {
	seen  map[string]bool
	paths []string
}

func (r *refSet) add(ref string) {
	p := localPath(ref)
	if p == "" || r.seen[p] {
		return
	}
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	r.seen[p] = true
	r.paths = append(r.paths, p)
}

func (r *refSet) addStrings(v any) {
	switch t := v.(type) {
	case string:
		if strings.Contains(t, "/") {
			r.add(t)
		}
	case []any:
		for _, e := range t {
			r.addStrings(e)
		}
	case map[string]any:
		for _, e := range t {
			r.addStrings(e)
		}
	}
}

func (r *refSet) addCSS(s string) {
	for _, m := range reCSSURL.FindAllStringSubmatch(s, -1) {
		r.add(m[1])
	}
}

func (r *refSet) addSrcset(s string) {
	for _, cand := range strings.Split(s, ",") {
		if f := strings.Fields(cand); len(f) > 0 {
			r.add(f[0])
		}
	}
}

func (r *refSet) addMarkup(markup string) {
	if strings.TrimSpace(markup) == "" {
		return
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		r.addCSS(markup)
		return
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			for _, a := range n.Attr {
				key := strings.ToLower(a.Key)
				switch {
				case urlAttrs[key]:
					r.add(a.Val)
				case key == "srcset" || key == "data-srcset":
					r.addSrcset(a.Val)
				case key == "style":
					r.addCSS(a.Val)
				}
			}
		case html.TextNode:
			if n.Parent != nil && n.Parent.Type == html.ElementNode && n.Parent.Data == "style" {
				r.addCSS(n.Data)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
}

// localPath reduces a reference to a clean site path, or "" when it cannot
// name a file on this site (mailto:, data:, fragments).
func localPath(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	if IsAbsoluteURL(ref) {
		u, err := url.Parse(ref)
		if err != nil || u.Host == "" || u.Path == "" {
			return ""
		}
		return CanonicalPath(u.Path)
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return ""
	}
	return CanonicalPath(ref)
}
