package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Process runs the full pipeline for one upload: validate, store, read
// metadata, generate derivatives from the stored original, then transcode
// the original. Only validation and storage failures fail the upload.
func (p *Pipeline) Process(ctx context.Context, u Upload, category string) (*Result, error) {
	if _, err := p.Validate(u); err != nil {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	stored, err := p.Store(u, category)
	if err != nil {
		uploadsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	res := &Result{Metadata: p.ExtractMetadata(stored)}
	res.Derivatives = p.GenerateDerivatives(stored, p.cfg.Sizes)
	if res.Derivatives == nil {
		res.Derivatives = []Derivative{}
	}
	thumb, err := p.Thumbnail(stored)
	if err != nil {
		derivativeFailures.Inc()
		p.log.Warn().Err(err).Str("file", stored).Msg("thumbnail failed")
	}
	res.Thumbnail = thumb

	final := p.Transcode(stored)
	if final != stored {
		res.Transcoded = true
		res.Metadata.MIME = "image/webp"
		if fi, err := os.Stat(final); err == nil {
			res.Metadata.Size = fi.Size()
		}
	}
	res.file = final
	res.Path = p.PublicPath(final)

	if p.mirror != nil {
		p.mirrorAll(ctx, res)
	}

	uploadsTotal.WithLabelValues("stored").Inc()
	p.log.Info().
		Str("path", res.Path).
		Int("derivatives", len(res.Derivatives)).
		Bool("transcoded", res.Transcoded).
		Msg("image processed")
	return res, nil
}

// mirrorAll copies every file the upload produced. Mirror failures are
// logged; the local copy stays authoritative.
func (p *Pipeline) mirrorAll(ctx context.Context, res *Result) {
	files := []string{res.file}
	for _, d := range res.Derivatives {
		files = append(files, d.file, d.webpFile)
	}
	if res.Thumbnail != nil {
		files = append(files, res.Thumbnail.file, res.Thumbnail.webpFile)
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		key := strings.TrimPrefix(p.PublicPath(f), "/")
		if err := p.mirror.Put(ctx, key, f, contentType(f)); err != nil {
			p.log.Warn().Err(err).Str("key", key).Msg("mirror upload failed")
		}
	}
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
