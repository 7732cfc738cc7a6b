package band

import (
	"net/url"
	"path"
	"strings"
)

// IsAbsoluteURL reports whether p carries a scheme or is protocol-relative.
func IsAbsoluteURL(p string) bool {
	if strings.HasPrefix(p, "//") {
		return true
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme != ""
}

// CanonicalPath is the single normalization rule for stored image paths:
// absolute URLs are kept, everything else becomes a rooted forward-slash
// path with any "public/" prefix removed, e.g. "public\uploads\a.jpg" and
// "./uploads/a.jpg" both become "/uploads/a.jpg".
func CanonicalPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || IsAbsoluteURL(p) {
		return p
	}
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimLeft(p, "/")
	p = strings.TrimPrefix(p, "public/")
	return path.Clean("/" + p)
}

// Canonical applies CanonicalPath to every image field of c and trims link
// targets. It is called once, at write time.
func Canonical(c Content) Content {
	switch v := c.(type) {
	case Slideshow:
		slides := make([]Slide, len(v.Slides))
		for i, s := range v.Slides {
			s.Image = CanonicalPath(s.Image)
			s.Link = strings.TrimSpace(s.Link)
			slides[i] = s
		}
		v.Slides = slides
		return v
	case Product:
		v.Image = CanonicalPath(v.Image)
		v.Link = strings.TrimSpace(v.Link)
		return v
	case Link:
		v.URL = strings.TrimSpace(v.URL)
		return v
	}
	return c
}
