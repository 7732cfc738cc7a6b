// Package band defines the band content schema: the tagged union stored as
// opaque JSON in layout_bands.band_content, and the rules that turn an
// editor payload into a typed, canonical value before it is persisted.
package band

import (
	"strings"
	"time"

	"github.com/eringen/storefront/apperr"
)

// Type is the band_type discriminator.
type Type string

const (
	TypeSlideshow Type = "slideshow"
	TypeProduct   Type = "product"
	TypeHTML      Type = "html"
	TypeLink      Type = "link"
)

// Types lists every known band type in editor order.
var Types = []Type{TypeSlideshow, TypeProduct, TypeHTML, TypeLink}

// ParseType validates a band_type tag.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", apperr.Validation("unknown band_type %q", s)
}

const (
	MinHeight = 1
	MaxHeight = 4
)

// ClampHeight forces h into [MinHeight, MaxHeight]. Out-of-range input is
// accepted and clamped, not rejected.
func ClampHeight(h int) int {
	if h < MinHeight {
		return MinHeight
	}
	if h > MaxHeight {
		return MaxHeight
	}
	return h
}

// Band is one ordered content block on a page.
type Band struct {
	ID        int64     `json:"id"`
	PageID    string    `json:"page_id"`
	Type      Type      `json:"band_type"`
	Height    int       `json:"band_height"`
	Order     int       `json:"band_order"`
	Content   Content   `json:"band_content"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
