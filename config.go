package storefront

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/eringen/storefront/media"
	"github.com/eringen/storefront/media/objstore"
)

// SiteConfig holds all configuration for a storefront site.
type SiteConfig struct {
	Name     string // Site name (default "Storefront")
	URL      string // Base URL (default "http://localhost:3000")
	HomePage string // Page rendered at / (default "forside")
	Debug    bool

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/storefront.db")
	StaticDir    string // Public asset root (default "public")

	UploadDir       string        // default <StaticDir>/uploads
	UploadURLPrefix string        // default "/uploads"
	MaxUploadSize   int64         // bytes, default 10MB
	ImageQuality    int           // default 80
	ImageSizes      []media.Size  // default small/medium/large
	Thumbnail       *media.Box    // optional crop variant
	UploadTimeout   time.Duration // server write timeout, default 2min

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	PageCacheTTL time.Duration // Rendered page cache TTL (default 5min)

	S3 objstore.Config // mirror target, disabled when Bucket is empty
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Storefront"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.HomePage == "" {
		c.HomePage = "forside"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/storefront.db"
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.UploadDir == "" {
		c.UploadDir = c.StaticDir + "/uploads"
	}
	if c.UploadURLPrefix == "" {
		c.UploadURLPrefix = "/uploads"
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 10 << 20
	}
	if c.ImageQuality == 0 {
		c.ImageQuality = 80
	}
	if c.UploadTimeout == 0 {
		c.UploadTimeout = 2 * time.Minute
	}
	if c.PageCacheTTL == 0 {
		c.PageCacheTTL = 5 * time.Minute
	}
}

// MediaConfig derives the image pipeline configuration.
func (c SiteConfig) MediaConfig() media.Config {
	return media.Config{
		Root:      c.UploadDir,
		URLPrefix: c.UploadURLPrefix,
		MaxSize:   c.MaxUploadSize,
		Quality:   c.ImageQuality,
		Sizes:     c.ImageSizes,
		Thumbnail: c.Thumbnail,
	}
}

// LoadConfig reads a SiteConfig from the environment. Missing values fall
// back to the defaults applied by New.
func LoadConfig() (SiteConfig, error) {
	cfg := SiteConfig{
		Name:            os.Getenv("SITE_NAME"),
		URL:             os.Getenv("SITE_URL"),
		HomePage:        os.Getenv("HOME_PAGE"),
		Debug:           envBool("DEBUG"),
		Addr:            os.Getenv("ADDR"),
		DatabasePath:    os.Getenv("DATABASE_PATH"),
		StaticDir:       os.Getenv("STATIC_DIR"),
		UploadDir:       os.Getenv("UPLOAD_DIR"),
		UploadURLPrefix: os.Getenv("UPLOAD_URL_PREFIX"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		SessionSecret:   os.Getenv("ADMIN_SESSION_SECRET"),
		CookieSecure:    envBool("COOKIE_SECURE"),
		S3: objstore.Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          os.Getenv("S3_REGION"),
			Prefix:          os.Getenv("S3_PREFIX"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
	}

	var err error
	if cfg.MaxUploadSize, err = envInt64("MAX_UPLOAD_SIZE"); err != nil {
		return cfg, err
	}
	q, err := envInt64("IMAGE_QUALITY")
	if err != nil {
		return cfg, err
	}
	cfg.ImageQuality = int(q)
	if cfg.PageCacheTTL, err = envDuration("PAGE_CACHE_TTL"); err != nil {
		return cfg, err
	}
	if cfg.UploadTimeout, err = envDuration("UPLOAD_TIMEOUT"); err != nil {
		return cfg, err
	}

	if file := os.Getenv("IMAGE_SIZES_FILE"); file != "" {
		if cfg.ImageSizes, cfg.Thumbnail, err = LoadSizesFile(file); err != nil {
			return cfg, err
		}
	}
	if v := os.Getenv("IMAGE_SIZES"); v != "" {
		if cfg.ImageSizes, err = ParseSizes(v); err != nil {
			return cfg, err
		}
	}
	if v := os.Getenv("THUMBNAIL_SIZE"); v != "" {
		w, h, err := parseBox(v)
		if err != nil {
			return cfg, err
		}
		cfg.Thumbnail = &media.Box{Name: "thumb", Width: w, Height: h}
	}
	return cfg, nil
}

// ParseSizes parses "small=640,medium=1024" into a size table.
func ParseSizes(s string) ([]media.Size, error) {
	var sizes []media.Size
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, width, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("image size %q: want name=width", part)
		}
		w, err := strconv.Atoi(strings.TrimSpace(width))
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("image size %q: width must be a positive integer", part)
		}
		sizes = append(sizes, media.Size{Name: media.Slug(name, ""), Width: w})
	}
	for _, sz := range sizes {
		if sz.Name == "" {
			return nil, fmt.Errorf("image sizes %q: every size needs a name", s)
		}
	}
	return sizes, nil
}

type sizesFile struct {
	Sizes     []media.Size `yaml:"sizes"`
	Thumbnail *media.Box   `yaml:"thumbnail"`
}

// LoadSizesFile reads a YAML breakpoint table:
//
//	sizes:
//	  - {name: small, width: 640}
//	thumbnail: {name: thumb, width: 300, height: 300}
func LoadSizesFile(path string) ([]media.Size, *media.Box, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read sizes file: %w", err)
	}
	var f sizesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse sizes file %s: %w", path, err)
	}
	for i, sz := range f.Sizes {
		if sz.Width <= 0 {
			return nil, nil, fmt.Errorf("sizes file %s: size %q needs a positive width", path, sz.Name)
		}
		f.Sizes[i].Name = media.Slug(sz.Name, fmt.Sprintf("w%d", sz.Width))
	}
	return f.Sizes, f.Thumbnail, nil
}

func parseBox(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("thumbnail size %q: want WIDTHxHEIGHT", s)
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("thumbnail size %q: want WIDTHxHEIGHT", s)
	}
	return w, h, nil
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func envInt64(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// NewLogger returns a console logger in debug mode and JSON otherwise.
func NewLogger(debug bool) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if debug {
		return logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(zerolog.DebugLevel)
	}
	return logger.Level(zerolog.InfoLevel)
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithTranscoder sets the WebP encoder used by the image pipeline.
func WithTranscoder(t media.Transcoder) Option {
	return func(a *App) {
		a.mediaOpts = append(a.mediaOpts, media.WithTranscoder(t))
	}
}

// WithMirror copies finished uploads to secondary storage.
func WithMirror(m media.Mirror) Option {
	return func(a *App) {
		a.mediaOpts = append(a.mediaOpts, media.WithMirror(m))
	}
}

// WithMetricsRegistry records HTTP metrics on reg and serves /metrics from
// it instead of the process-wide default registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(a *App) {
		a.metricsReg = reg
		a.metricsGather = reg
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
