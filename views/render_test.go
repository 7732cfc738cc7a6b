package views

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/storefront/band"
)

var (
	testSite   = Site{Name: "Shop", BaseURL: "https://shop.example"}
	reBandID   = regexp.MustCompile(`data-band-id="(\d+)"`)
	noTokens   = StyleTokens{}
	twoSlides  = []band.Slide{{Image: "/uploads/slides/a.webp", Title: "A"}, {Image: "/uploads/slides/b.webp", Title: "B", Link: "/sale"}}
	validProd  = band.Product{Image: "/uploads/products/chair.webp", Title: "Chair"}
	simpleHTML = band.HTML{Markup: "<p>hello</p>"}
)

func renderedIDs(html string) []int64 {
	var ids []int64
	for _, m := range reBandID.FindAllStringSubmatch(html, -1) {
		id, _ := strconv.ParseInt(m[1], 10, 64)
		ids = append(ids, id)
	}
	return ids
}

func TestRenderPageOrderTiesKeepInsertionOrder(t *testing.T) {
	bands := []band.Band{
		{ID: 1, Type: band.TypeSlideshow, Order: 2, Content: band.Slideshow{Slides: twoSlides}},
		{ID: 2, Type: band.TypeProduct, Order: 1, Content: validProd},
		{ID: 3, Type: band.TypeHTML, Order: 1, Content: simpleHTML},
	}
	page := RenderPage(bands, noTokens, testSite)
	assert.Equal(t, []int64{2, 3, 1}, renderedIDs(page.HTML))
	assert.Len(t, page.StructuredData, 2)
}

func TestRenderPageOrderProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := 1 + r.Intn(12)
		bands := make([]band.Band, n)
		for i := range bands {
			bands[i] = band.Band{ID: int64(i + 1), Type: band.TypeHTML, Order: r.Intn(5) * 10, Content: simpleHTML}
		}
		want := make([]band.Band, n)
		copy(want, bands)
		sort.SliceStable(want, func(i, j int) bool { return want[i].Order < want[j].Order })
		var wantIDs []int64
		for _, b := range want {
			wantIDs = append(wantIDs, b.ID)
		}

		got := renderedIDs(RenderPage(bands, noTokens, testSite).HTML)
		require.Equal(t, wantIDs, got, "round %d", round)
	}
}

func TestRenderPageDoesNotReorderInput(t *testing.T) {
	bands := []band.Band{
		{ID: 1, Order: 3, Type: band.TypeHTML, Content: simpleHTML},
		{ID: 2, Order: 1, Type: band.TypeHTML, Content: simpleHTML},
	}
	RenderPage(bands, noTokens, testSite)
	assert.Equal(t, int64(1), bands[0].ID)
}

func TestSlideshowSingleSlideHasNoNavigation(t *testing.T) {
	f := RenderBand(band.Band{ID: 1, Type: band.TypeSlideshow, Height: 2,
		Content: band.Slideshow{Slides: twoSlides[:1]}}, noTokens, testSite)
	assert.Equal(t, 1, strings.Count(f.HTML, "<figure"))
	assert.NotContains(t, f.HTML, "slideshow-prev")
	assert.NotContains(t, f.HTML, "slideshow-next")
	assert.NotContains(t, f.HTML, "slideshow-dot")
}

func TestSlideshowNavigation(t *testing.T) {
	f := RenderBand(band.Band{ID: 1, Type: band.TypeSlideshow,
		Content: band.Slideshow{Slides: twoSlides, Autoplay: true, Interval: 3000}}, noTokens, testSite)
	assert.Equal(t, 2, strings.Count(f.HTML, "<figure"))
	assert.Contains(t, f.HTML, "slideshow-prev")
	assert.Contains(t, f.HTML, "slideshow-next")
	assert.Equal(t, 2, strings.Count(f.HTML, `class="slideshow-dot"`))
	assert.Contains(t, f.HTML, `data-autoplay="true" data-interval="3000"`)
}

func TestSlideshowItemList(t *testing.T) {
	s := band.Slideshow{
		Title:     "Spring",
		SEOSchema: json.RawMessage(`{"name":"Spring collection","itemListElement":[]}`),
		Slides: []band.Slide{
			{Image: "/uploads/slides/a.webp", Title: "First"},
			{Image: "https://cdn.example.com/b.jpg", SEOTitle: "Second", Link: "/p/sale/"},
			{Title: "Third"},
		},
	}
	f := RenderBand(band.Band{ID: 9, Type: band.TypeSlideshow, Content: s}, noTokens, testSite)
	require.Len(t, f.StructuredData, 1)

	var ld struct {
		Type  string `json:"@type"`
		Name  string `json:"name"`
		Items []struct {
			Position int    `json:"position"`
			Name     string `json:"name"`
			Image    string `json:"image"`
			URL      string `json:"url"`
		} `json:"itemListElement"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.StructuredData[0]), &ld))
	assert.Equal(t, "ItemList", ld.Type)
	assert.Equal(t, "Spring collection", ld.Name)
	require.Len(t, ld.Items, 3)
	for i, it := range ld.Items {
		assert.Equal(t, i+1, it.Position)
	}
	assert.Equal(t, "First", ld.Items[0].Name)
	assert.Equal(t, "https://shop.example/uploads/slides/a.webp", ld.Items[0].Image)
	assert.Equal(t, "https://cdn.example.com/b.jpg", ld.Items[1].Image)
	assert.Equal(t, "https://shop.example/p/sale/", ld.Items[1].URL)

	// Visible markup keeps the relative path.
	assert.Contains(t, f.HTML, `src="/uploads/slides/a.webp"`)
}

func TestSlideTextIsEscaped(t *testing.T) {
	f := RenderBand(band.Band{ID: 1, Type: band.TypeSlideshow, Content: band.Slideshow{
		Slides: []band.Slide{{Image: "/uploads/a.jpg", Title: "<script>alert(1)</script>", Alt: `"><img onerror=x>`}},
	}}, noTokens, testSite)
	assert.NotContains(t, f.HTML, "<script>")
	assert.Contains(t, f.HTML, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, f.HTML, `"><img onerror`)

	// JSON-LD escapes markup characters as well.
	require.Len(t, f.StructuredData, 1)
	assert.NotContains(t, f.StructuredData[0], "<script>")
}

func TestEmptySlideshowIsPlaceholder(t *testing.T) {
	f := RenderBand(band.Band{ID: 4, Type: band.TypeSlideshow, Content: band.Slideshow{Slides: []band.Slide{}}}, noTokens, testSite)
	assert.True(t, f.Placeholder)
	assert.Empty(t, f.StructuredData)
}

func TestIncompleteProductDegradesAlone(t *testing.T) {
	bands := []band.Band{
		{ID: 1, Type: band.TypeSlideshow, Order: 1, Content: band.Slideshow{Slides: twoSlides}},
		{ID: 2, Type: band.TypeProduct, Order: 2, Content: band.Product{}},
		{ID: 3, Type: band.TypeHTML, Order: 3, Content: simpleHTML},
	}
	page := RenderPage(bands, noTokens, testSite)
	assert.Equal(t, []int64{1, 2, 3}, renderedIDs(page.HTML))
	assert.Contains(t, page.HTML, `band-placeholder" data-band-id="2"`)
	assert.Contains(t, page.HTML, "<p>hello</p>")
	assert.Contains(t, page.HTML, `class="slideshow"`)
	assert.Len(t, page.StructuredData, 1)
}

func TestInvalidContentIsPlaceholder(t *testing.T) {
	c := band.DecodeStored("slideshow", []byte(`{"slides":`))
	f := RenderBand(band.Band{ID: 5, Type: band.TypeSlideshow, Content: c}, noTokens, testSite)
	assert.True(t, f.Placeholder)

	f = RenderBand(band.Band{ID: 6, Type: band.TypeHTML}, noTokens, testSite)
	assert.True(t, f.Placeholder)
}

func TestProduct(t *testing.T) {
	tokens := StyleTokens{Colors: map[string]string{"accent": "#ffcc00"}}
	p := band.Product{
		Image: "/uploads/products/chair.webp", Title: "Chair & Co", Link: "/p/chairs/",
		BackgroundColor: "accent", ButtonText: "Shop",
	}
	f := RenderBand(band.Band{ID: 2, Type: band.TypeProduct, Height: 3, Content: p}, tokens, testSite)
	assert.Contains(t, f.HTML, `style="background-color:#ffcc00"`)
	assert.Contains(t, f.HTML, "Chair &amp; Co")
	assert.Contains(t, f.HTML, "band-h3")
	assert.Contains(t, f.HTML, `>Shop</a>`)

	var ld map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.StructuredData[0]), &ld))
	assert.Equal(t, "Product", ld["@type"])
	assert.Equal(t, "Chair & Co", ld["name"])
	assert.Equal(t, "https://shop.example/uploads/products/chair.webp", ld["image"])
	assert.Equal(t, "https://shop.example/p/chairs/", ld["url"])

	p.BackgroundColor = "red;background:url(x)"
	f = RenderBand(band.Band{ID: 2, Type: band.TypeProduct, Content: p}, tokens, testSite)
	assert.NotContains(t, f.HTML, "style=")
}

func TestHTMLBandIsVerbatim(t *testing.T) {
	markup := `<div class="promo"><script>track()</script></div>`
	f := RenderBand(band.Band{ID: 7, Type: band.TypeHTML,
		Content: band.HTML{Markup: markup, Background: "Light Grey", Alignment: "center"}}, noTokens, testSite)
	assert.Contains(t, f.HTML, markup)
	assert.Contains(t, f.HTML, "bg-light-grey")
	assert.Contains(t, f.HTML, "align-center")
}

func TestLinkBand(t *testing.T) {
	f := RenderBand(band.Band{ID: 8, Type: band.TypeLink, Content: band.Link{
		URL: "javascript:alert(1)", Label: "Click <me>", Target: "_blank", Style: "primary",
	}}, noTokens, testSite)
	assert.NotContains(t, f.HTML, "javascript:")
	assert.Contains(t, f.HTML, "Click &lt;me&gt;")
	assert.Contains(t, f.HTML, `rel="noopener noreferrer"`)
	assert.Contains(t, f.HTML, "band-link-primary")

	f = RenderBand(band.Band{ID: 8, Type: band.TypeLink, Content: band.Link{
		URL: "/p/about/", Label: "About", Target: "parent-frame",
	}}, noTokens, testSite)
	assert.Contains(t, f.HTML, `href="/p/about/"`)
	assert.NotContains(t, f.HTML, "target=")

	f = RenderBand(band.Band{ID: 8, Type: band.TypeLink, Content: band.Link{Label: "nowhere"}}, noTokens, testSite)
	assert.True(t, f.Placeholder)
}

func TestDocument(t *testing.T) {
	page := RenderPage([]band.Band{
		{ID: 1, Type: band.TypeSlideshow, Content: band.Slideshow{Slides: twoSlides}},
	}, noTokens, testSite)
	meta := PageMeta{Title: "Home", Description: "Welcome", URL: PageURL(testSite, "forside")}
	tokens := StyleTokens{CustomCSS: "body{color:red}</style><script>x()</script>"}

	var buf bytes.Buffer
	require.NoError(t, Document(testSite, meta, page, tokens).Render(context.Background(), &buf))
	out := buf.String()

	assert.Contains(t, out, "<title>Home | Shop</title>")
	assert.Contains(t, out, `href="https://shop.example/p/forside/"`)
	assert.Equal(t, 2, strings.Count(out, `application/ld+json`))
	assert.Contains(t, out, SlideshowScript)
	assert.NotContains(t, out, "</style><script>")
}

func TestAbsURL(t *testing.T) {
	tests := []struct {
		base, in, want string
	}{
		{"https://shop.example", "/uploads/a.jpg", "https://shop.example/uploads/a.jpg"},
		{"https://shop.example/", "uploads/a.jpg", "https://shop.example/uploads/a.jpg"},
		{"https://shop.example", "https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"https://shop.example", "//cdn.example.com/a.jpg", "//cdn.example.com/a.jpg"},
		{"", "/uploads/a.jpg", "/uploads/a.jpg"},
		{"https://shop.example", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, absURL(tt.base, tt.in), "absURL(%q, %q)", tt.base, tt.in)
	}
}

func TestPageURL(t *testing.T) {
	site := Site{BaseURL: "https://shop.example/", HomePage: "forside"}
	assert.Equal(t, "https://shop.example/", PageURL(site, "forside"))
	assert.Equal(t, "https://shop.example/p/om-oss/", PageURL(site, "om-oss"))
	assert.Equal(t, "https://shop.example/p/forside/", PageURL(Site{BaseURL: "https://shop.example"}, "forside"))
}
