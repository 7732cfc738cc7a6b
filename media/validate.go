package media

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/eringen/storefront/apperr"
)

// allowed maps accepted content types to the extension used on disk.
var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Validate checks the upload's size and sniffed content type and returns
// the detected MIME type. The declared type is never trusted.
func (p *Pipeline) Validate(u Upload) (string, error) {
	fi, err := os.Stat(u.Path)
	if err != nil {
		return "", apperr.Validation("upload %q could not be read", u.OriginalName)
	}
	if fi.Size() > p.cfg.MaxSize {
		return "", apperr.SizeLimit("file is %s, the limit is %s",
			humanize.IBytes(uint64(fi.Size())), humanize.IBytes(uint64(p.cfg.MaxSize)))
	}
	if fi.Size() == 0 {
		return "", apperr.Validation("upload %q is empty", u.OriginalName)
	}

	mime, err := sniff(u.Path)
	if err != nil {
		return "", err
	}
	if u.DeclaredMIME != "" && u.DeclaredMIME != mime {
		p.log.Debug().Str("declared", u.DeclaredMIME).Str("detected", mime).
			Msg("declared content type ignored")
	}
	return mime, nil
}

// sniff detects the content type from the file's leading bytes and rejects
// anything that is not an accepted image type.
func sniff(file string) (string, error) {
	mt, err := mimetype.DetectFile(file)
	if err != nil {
		return "", apperr.Validation("could not detect file type")
	}
	for mime := range allowed {
		if mt.Is(mime) {
			return mime, nil
		}
	}
	return "", apperr.Validation("unsupported file type %s, only JPEG, PNG and WebP images are accepted", mt.String())
}
