// Package storefront is a band-based CMS for storefront websites built with
// Go, Echo, and templ. Pages are ordered lists of bands (slideshow, product,
// html, link) edited over a JSON API and rendered to HTML with structured
// data for the public site.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/eringen/storefront/media"
	"github.com/eringen/storefront/views"
)

// App is the central storefront application. It wires together the store,
// page cache, image pipeline, handlers and middleware.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Cache    *PageCache
	Pipeline *media.Pipeline

	logger       zerolog.Logger
	mediaOpts    []media.Option
	loginLimiter *LoginLimiter
	customRoutes []func(*App)

	metricsReg    prometheus.Registerer
	metricsGather prometheus.Gatherer

	// actorFunc resolves the editor behind a request.
	actorFunc func(c echo.Context) Actor
}

// New creates a new storefront App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:        cfg,
		Echo:          echo.New(),
		logger:        zerolog.Nop(),
		metricsReg:    prometheus.DefaultRegisterer,
		metricsGather: prometheus.DefaultGatherer,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	a.actorFunc = sessionActor

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the database and builds the store, cache, and image pipeline.
func (a *App) Init() error {
	if a.Config.AdminPassword == "" {
		return errors.New("storefront: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return errors.New("storefront: SessionSecret is required")
	}

	db, err := OpenDB(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("storefront: open database: %w", err)
	}
	store, err := NewStore(db, a.logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("storefront: init store: %w", err)
	}
	a.Store = store
	a.setupServices()
	return nil
}

// setupServices builds everything that sits on top of the store.
func (a *App) setupServices() {
	opts := append([]media.Option{media.WithLogger(a.logger)}, a.mediaOpts...)
	a.Pipeline = media.New(a.Config.MediaConfig(), opts...)
	a.Cache = NewPageCache(a.Config.PageCacheTTL, a.renderPage)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.Echo.Validator = newRequestValidator()
}

// Start initializes the application, sets up middleware and routes, and
// serves until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(); err != nil {
		return err
	}
	defer a.Close()

	a.setupMiddleware()
	a.setupRoutes()

	a.Echo.Server.ReadHeaderTimeout = 10 * time.Second
	// Uploads transcode synchronously, so writes get a generous deadline.
	a.Echo.Server.WriteTimeout = a.Config.UploadTimeout

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.Config.Addr).Msg("storefront listening")
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.logger.Info().Msg("shutting down")
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded slideshow controller, then the user's static assets.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET(views.SlideshowScript, echo.WrapHandler(http.StripPrefix("/public/storefront/", embeddedHandler)))
	e.Static("/public", a.Config.StaticDir)
	e.Static(a.Config.UploadURLPrefix, a.Config.UploadDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: a.metricsGather}))

	// Public pages
	e.GET("/", a.handleHome)
	e.GET("/p/:page/", a.handlePage)

	// Admin session
	e.GET("/admin/", a.handleAdminStatus)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	// JSON API. Reads are open; writes need an editor session.
	api := e.Group("/api")
	edit := a.requireEditor
	uploadLimit := middleware.BodyLimit(a.uploadBodyLimit())

	api.GET("/bands/:page", a.handleListBands)
	api.GET("/bands/:page/:id", a.handleGetBand)
	api.POST("/bands/:page", a.handleCreateBand, edit, uploadLimit)
	api.PUT("/bands/:page/order", a.handleReorderBands, edit)
	api.PUT("/bands/:page/:id", a.handleUpdateBand, edit, uploadLimit)
	api.DELETE("/bands/:page/:id", a.handleDeleteBand, edit)

	api.GET("/bands/:page/snapshots", a.handleListSnapshots)
	api.POST("/bands/:page/snapshots", a.handleCreateSnapshot, edit)
	api.POST("/snapshots/:id/restore", a.handleRestoreSnapshot, edit)

	api.GET("/layout/global/styles", a.handleGetGlobalStyles)
	api.PUT("/layout/global/styles", a.handleSaveGlobalStyles, edit)

	api.GET("/pages", a.handleListPages)
	api.GET("/pages/:page", a.handleGetPage)
	api.PUT("/pages/:page", a.handleSavePage, edit)
	api.DELETE("/pages/:page", a.handleDeletePage, edit)

	api.POST("/images", a.handleImageUpload, edit, uploadLimit,
		echo.WrapMiddleware(httprate.LimitByIP(30, time.Minute)))

	for _, fn := range a.customRoutes {
		fn(a)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (r *requestValidator) Validate(i any) error {
	return r.v.Struct(i)
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
