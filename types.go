package storefront

import (
	"strings"
	"time"

	"github.com/eringen/storefront/apperr"
	"github.com/eringen/storefront/band"
	"github.com/eringen/storefront/views"
)

// GlobalPageID is the sentinel page holding site-wide style tokens.
const GlobalPageID = "global"

// Actor identifies who performs a mutating store operation.
type Actor struct {
	Name string
}

func requireActor(a Actor) error {
	if strings.TrimSpace(a.Name) == "" {
		return apperr.Forbidden("authentication required")
	}
	return nil
}

// PageConfig is one row of layout_config.
type PageConfig struct {
	PageID          string                `json:"page_id"`
	Title           string                `json:"title"`
	MetaDescription string                `json:"meta_description"`
	ColorPalette    map[string]string     `json:"color_palette"`
	FontConfig      map[string]views.Font `json:"font_config"`
	GlobalStyles    map[string]string     `json:"global_styles"`
	UpdatedBy       string                `json:"updated_by,omitempty"`
	UpdatedAt       time.Time             `json:"updated_at,omitzero"`
}

// StyleTokens converts the stored design tokens for the renderer.
func (p PageConfig) StyleTokens() views.StyleTokens {
	return views.StyleTokens{
		Colors:    p.ColorPalette,
		Fonts:     p.FontConfig,
		CustomCSS: p.GlobalStyles["custom_css"],
	}
}

// StyleUpdate is the writable part of the global styles row.
type StyleUpdate struct {
	ColorPalette map[string]string     `json:"color_palette" validate:"dive,keys,required,endkeys,hexcolor"`
	FontConfig   map[string]views.Font `json:"font_config"`
	GlobalStyles map[string]string     `json:"global_styles"`
}

// Snapshot is a saved copy of every band on a page.
type Snapshot struct {
	ID        int64       `json:"id"`
	PageID    string      `json:"page_id"`
	Reason    string      `json:"reason"`
	BandCount int         `json:"band_count"`
	Bands     []band.Band `json:"bands,omitempty"`
	CreatedBy string      `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}
