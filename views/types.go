package views

// Site holds the settings every rendered page needs.
type Site struct {
	Name     string // SITE_NAME
	BaseURL  string // SITE_URL, used to absolutize structured-data URLs
	HomePage string // HOME_PAGE, served at the root
}

// PageMeta carries per-page SEO metadata into the document head.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical
	Lang        string
}

// Font is one configured typeface role.
type Font struct {
	Family string `json:"family"`
	Weight string `json:"weight"`
}

// StyleTokens are the global design tokens bands may refer to.
type StyleTokens struct {
	Colors    map[string]string // semantic name -> hex
	Fonts     map[string]Font   // role -> font
	CustomCSS string
}

// Fragment is the output of one band.
type Fragment struct {
	HTML           string
	StructuredData []string
	Placeholder    bool
}

// Page is the concatenated output of every band on a page.
type Page struct {
	HTML           string
	StructuredData []string
}
