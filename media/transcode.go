package media

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var errEmptyOutput = errors.New("encoder returned no data")

// Transcode converts the file at file to WebP, removes the original and
// returns the new path. On any failure the original is kept and its path
// returned; the upload still succeeds.
func (p *Pipeline) Transcode(file string) string {
	if strings.EqualFold(filepath.Ext(file), ".webp") {
		return file
	}
	log := p.log.With().Str("file", file).Logger()
	if p.transcoder == nil {
		transcodeFallbacks.Inc()
		log.Warn().Msg("no WebP encoder configured, keeping original encoding")
		return file
	}

	data, err := os.ReadFile(file)
	if err != nil {
		transcodeFallbacks.Inc()
		log.Warn().Err(err).Msg("read original for transcoding")
		return file
	}
	out, err := p.encodeWebP(data)
	if err != nil {
		transcodeFallbacks.Inc()
		log.Warn().Err(err).Msg("WebP transcoding failed, keeping original encoding")
		return file
	}

	dst := strings.TrimSuffix(file, filepath.Ext(file)) + ".webp"
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		os.Remove(dst)
		transcodeFallbacks.Inc()
		log.Warn().Err(err).Msg("write transcoded original")
		return file
	}
	if err := os.Remove(file); err != nil {
		log.Warn().Err(err).Msg("remove original after transcoding")
	}
	return dst
}

func (p *Pipeline) encodeWebP(data []byte) ([]byte, error) {
	out, err := p.transcoder.ToWebP(data, p.cfg.Quality)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errEmptyOutput
	}
	return out, nil
}
