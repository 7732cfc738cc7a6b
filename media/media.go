// Package media is the image upload pipeline: it validates an uploaded
// file by content, moves it under a collision-resistant name, generates
// responsive derivatives, and transcodes the original to WebP when an
// encoder is available.
package media

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultMaxSize   = 10 << 20 // 10MB
	defaultQuality   = 80
	defaultURLPrefix = "/uploads"
	defaultCategory  = "general"
)

// Size is one named responsive breakpoint.
type Size struct {
	Name  string `yaml:"name" json:"name"`
	Width int    `yaml:"width" json:"width"`
}

// DefaultSizes is the breakpoint table used when none is configured.
func DefaultSizes() []Size {
	return []Size{
		{Name: "small", Width: 640},
		{Name: "medium", Width: 1024},
		{Name: "large", Width: 1920},
	}
}

// Box is a fixed-size crop target.
type Box struct {
	Name   string `yaml:"name" json:"name"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config controls where uploads land and which derivatives are produced.
type Config struct {
	Root      string // filesystem directory holding uploads
	URLPrefix string // public path Root is served under
	MaxSize   int64  // bytes
	Quality   int    // lossy encoder quality, 1-100
	Sizes     []Size
	Thumbnail *Box // optional square-ish crop variant
}

func (c *Config) setDefaults() {
	if c.Root == "" {
		c.Root = filepath.Join("public", "uploads")
	}
	if c.URLPrefix == "" {
		c.URLPrefix = defaultURLPrefix
	}
	c.URLPrefix = "/" + strings.Trim(c.URLPrefix, "/")
	if c.MaxSize <= 0 {
		c.MaxSize = defaultMaxSize
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = defaultQuality
	}
	if c.Sizes == nil {
		c.Sizes = DefaultSizes()
	}
}

// Upload describes a raw uploaded file waiting in a temp location.
type Upload struct {
	Path         string
	DeclaredMIME string
	Size         int64
	OriginalName string
}

// Derivative is one generated size variant.
type Derivative struct {
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Path     string `json:"path"`
	WebPPath string `json:"webp_path,omitempty"`

	file     string
	webpFile string
}

// Result is what a completed upload returns to the caller.
type Result struct {
	Path        string       `json:"path"`
	Transcoded  bool         `json:"transcoded"`
	Metadata    Metadata     `json:"metadata"`
	Derivatives []Derivative `json:"derivatives"`
	Thumbnail   *Derivative  `json:"thumbnail,omitempty"`

	file string
}

// Transcoder encodes image bytes as WebP.
type Transcoder interface {
	ToWebP(data []byte, quality int) ([]byte, error)
}

// Mirror copies a finished file to secondary storage.
type Mirror interface {
	Put(ctx context.Context, key, localPath, contentType string) error
}

// Pipeline runs uploads through validation, storage and derivative
// generation. It holds no per-upload state and is safe for concurrent use.
type Pipeline struct {
	cfg        Config
	transcoder Transcoder
	mirror     Mirror
	log        zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTranscoder sets the WebP encoder. Without one, originals and
// derivatives stay in their legacy encoding.
func WithTranscoder(t Transcoder) Option {
	return func(p *Pipeline) { p.transcoder = t }
}

// WithMirror copies every finished file to secondary storage.
func WithMirror(m Mirror) Option {
	return func(p *Pipeline) { p.mirror = m }
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a Pipeline.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.setDefaults()
	p := &Pipeline{
		cfg: cfg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("component", "media_pipeline").Logger()
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// PublicPath converts a file under Root to its canonical public path.
func (p *Pipeline) PublicPath(file string) string {
	rel, err := filepath.Rel(p.cfg.Root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return path.Join(p.cfg.URLPrefix, filepath.ToSlash(rel))
}

// LocalPath converts a canonical public path back to a file under Root.
// It reports false for paths outside the upload prefix.
func (p *Pipeline) LocalPath(public string) (string, bool) {
	prefix := p.cfg.URLPrefix + "/"
	if !strings.HasPrefix(public, prefix) {
		return "", false
	}
	rel := path.Clean("/" + strings.TrimPrefix(public, prefix))
	return filepath.Join(p.cfg.Root, filepath.FromSlash(strings.TrimPrefix(rel, "/"))), true
}
