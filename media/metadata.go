package media

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is what can be learned about a stored image. Fields that could
// not be read stay zero and the reason is recorded in Errors.
type Metadata struct {
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Size        int64     `json:"size"`
	MIME        string    `json:"mime"`
	Camera      string    `json:"camera,omitempty"`
	Description string    `json:"description,omitempty"`
	Artist      string    `json:"artist,omitempty"`
	TakenAt     time.Time `json:"taken_at,omitzero"`
	Errors      []string  `json:"errors,omitempty"`
}

// ExtractMetadata reads dimensions, size, content type and, for JPEG, the
// capture fields from EXIF. It never fails.
func (p *Pipeline) ExtractMetadata(file string) Metadata {
	var m Metadata

	if fi, err := os.Stat(file); err != nil {
		m.Errors = append(m.Errors, "size: "+err.Error())
	} else {
		m.Size = fi.Size()
	}

	if mt, err := mimetype.DetectFile(file); err != nil {
		m.Errors = append(m.Errors, "mime: "+err.Error())
	} else {
		m.MIME = mt.String()
	}

	f, err := os.Open(file)
	if err != nil {
		m.Errors = append(m.Errors, "open: "+err.Error())
		return m
	}
	defer f.Close()

	if cfg, _, err := image.DecodeConfig(f); err != nil {
		m.Errors = append(m.Errors, "dimensions: "+err.Error())
	} else {
		m.Width, m.Height = cfg.Width, cfg.Height
	}

	if m.MIME != "image/jpeg" {
		return m
	}
	if _, err := f.Seek(0, 0); err != nil {
		m.Errors = append(m.Errors, "exif: "+err.Error())
		return m
	}
	x, err := exif.Decode(f)
	if err != nil {
		// Most web images carry no EXIF block.
		p.log.Debug().Err(err).Str("file", file).Msg("no EXIF data")
		return m
	}
	m.Camera = strings.TrimSpace(exifString(x, exif.Make) + " " + exifString(x, exif.Model))
	m.Description = exifString(x, exif.ImageDescription)
	m.Artist = exifString(x, exif.Artist)
	if t, err := x.DateTime(); err == nil {
		m.TakenAt = t
	}
	return m
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
