package storefront

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) handleSitemap(c echo.Context) error {
	pages, err := a.Store.ListPageConfigs(c.Request().Context())
	if err != nil {
		return err
	}
	urls := []sitemapURL{{Loc: a.Config.PageURL(a.Config.HomePage)}}
	for _, p := range pages {
		if p.PageID == a.Config.HomePage {
			if !p.UpdatedAt.IsZero() {
				urls[0].LastMod = p.UpdatedAt.Format("2006-01-02")
			}
			continue
		}
		u := sitemapURL{Loc: a.Config.PageURL(p.PageID)}
		if !p.UpdatedAt.IsZero() {
			u.LastMod = p.UpdatedAt.Format("2006-01-02")
		}
		urls = append(urls, u)
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
