package storefront

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/eringen/storefront/apperr"
	"github.com/eringen/storefront/views"
)

func (a *App) site() views.Site {
	return a.Config.viewSite()
}

// renderPage builds the public document of a page. Band content problems
// never fail it; only store errors do.
func (a *App) renderPage(ctx context.Context, pageID string) ([]byte, error) {
	cfg, err := a.Store.GetPageConfig(ctx, pageID)
	if err != nil {
		return nil, err
	}
	global, err := a.Store.GetGlobalStyles(ctx)
	if err != nil {
		return nil, err
	}
	bands, err := a.Store.ListBands(ctx, pageID)
	if err != nil {
		return nil, err
	}

	site := a.site()
	tokens := mergeTokens(global, cfg)
	page := views.RenderPage(bands, tokens, site)
	meta := views.PageMeta{
		Title:       cfg.Title,
		Description: cfg.MetaDescription,
		URL:         a.Config.PageURL(pageID),
	}
	if meta.Title == "" {
		meta.Title = a.Config.Name
	}

	var buf bytes.Buffer
	if err := views.Document(site, meta, page, tokens).Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("render page %s: %w", pageID, err)
	}
	return buf.Bytes(), nil
}

// mergeTokens overlays a page's own tokens on the global ones.
func mergeTokens(global, page PageConfig) views.StyleTokens {
	t := global.StyleTokens()
	colors := make(map[string]string, len(t.Colors)+len(page.ColorPalette))
	for k, v := range t.Colors {
		colors[k] = v
	}
	for k, v := range page.ColorPalette {
		colors[k] = v
	}
	fonts := make(map[string]views.Font, len(t.Fonts)+len(page.FontConfig))
	for k, v := range t.Fonts {
		fonts[k] = v
	}
	for k, v := range page.FontConfig {
		fonts[k] = v
	}
	t.Colors = colors
	t.Fonts = fonts
	if css := page.GlobalStyles["custom_css"]; css != "" {
		t.CustomCSS = strings.TrimSpace(t.CustomCSS + "\n" + css)
	}
	return t
}

func (a *App) servePage(c echo.Context, pageID string) error {
	html, err := a.Cache.Get(c.Request().Context(), pageID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	return c.HTMLBlob(http.StatusOK, html)
}

func (a *App) handleHome(c echo.Context) error {
	return a.servePage(c, a.Config.HomePage)
}

func (a *App) handlePage(c echo.Context) error {
	pageID, err := ParsePageID(c.Param("page"))
	if err != nil {
		return echo.ErrNotFound
	}
	if pageID == a.Config.HomePage {
		return c.Redirect(http.StatusMovedPermanently, "/")
	}
	return a.servePage(c, pageID)
}

func (a *App) handleRobots(c echo.Context) error {
	file := filepath.Join(a.Config.StaticDir, "robots.txt")
	if _, err := os.Stat(file); err == nil {
		return c.File(file)
	}
	body := "User-agent: *\nAllow: /\nDisallow: /admin/\nDisallow: /api/\n\nSitemap: " +
		strings.TrimRight(a.Config.URL, "/") + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := errorResponse(err)
	if code >= 500 {
		a.logger.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Msg("server error")
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") || strings.HasPrefix(c.Request().URL.Path, "/admin/") {
		_ = Failure(c, code, msg)
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = RenderStatus(c, code, errorPage(a.Config.Name, code))
}

// errorResponse maps err to a status code and a client-safe message.
// Server-side failures always get a generic message.
func errorResponse(err error) (int, string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return apperr.Status(err), apperr.Message(err)
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest, validationMessage(ve)
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= 500 {
			return he.Code, "internal server error"
		}
		if s, ok := he.Message.(string); ok && s != "" {
			return he.Code, s
		}
		return he.Code, http.StatusText(he.Code)
	}
	return http.StatusInternalServerError, "internal server error"
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
