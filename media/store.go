package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/eringen/storefront/apperr"
)

const maxBaseLen = 60

// Store moves the upload to <Root>/<category>/<base>-<token><ext> and
// returns the absolute file path. The base is derived from the original
// name; the token makes concurrent uploads of the same name distinct.
func (p *Pipeline) Store(u Upload, category string) (string, error) {
	mime, err := sniff(u.Path)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(p.cfg.Root, Slug(category, defaultCategory))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Storage(err, "create upload directory")
	}

	name := fmt.Sprintf("%s-%s%s", baseName(u.OriginalName), token(), allowed[mime])
	dst := filepath.Join(dir, name)
	if err := moveFile(u.Path, dst); err != nil {
		return "", apperr.Storage(err, "store %s", name)
	}
	p.log.Debug().Str("file", dst).Str("mime", mime).Msg("upload stored")
	return dst, nil
}

// Slug lowercases s and collapses every run of characters outside
// [a-z0-9] into a single hyphen. An empty result becomes fallback.
func Slug(s, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}

func baseName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	s := Slug(base, "image")
	if len(s) > maxBaseLen {
		s = strings.TrimRight(s[:maxBaseLen], "-")
	}
	return s
}

// token returns 12 hex characters of a random UUID.
func token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// moveFile renames src to dst, falling back to copy and remove when the
// two are on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
