package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// GenerateDerivatives writes one downscaled variant per size narrower than
// the source, named <base>_<size>.<ext>. Sizes at or above the source
// width are skipped. Sources with transparency produce PNG variants,
// everything else JPEG; a WebP twin is written next to each when an
// encoder is configured. A failing size is logged and skipped.
func (p *Pipeline) GenerateDerivatives(file string, sizes []Size) []Derivative {
	log := p.log.With().Str("file", file).Logger()
	src, format, err := decodeFile(file)
	if err != nil {
		log.Warn().Err(err).Msg("decode source for derivatives")
		return nil
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	ext := ".jpg"
	if format == "png" || hasAlpha(src) {
		ext = ".png"
	}
	base := strings.TrimSuffix(file, filepath.Ext(file))

	var out []Derivative
	for _, s := range sizes {
		if s.Width <= 0 || s.Width >= w {
			log.Debug().Str("size", s.Name).Int("width", s.Width).Int("source_width", w).
				Msg("size not smaller than source, skipped")
			continue
		}
		th := scaledHeight(w, h, s.Width)
		d, err := p.writeVariant(base+"_"+s.Name, ext, resize(src, b, s.Width, th))
		if err != nil {
			derivativeFailures.Inc()
			log.Warn().Err(err).Str("size", s.Name).Msg("derivative failed")
			continue
		}
		d.Name, d.Width, d.Height = s.Name, s.Width, th
		out = append(out, d)
	}
	return out
}

// Thumbnail writes the configured fixed-size crop: the source is scaled to
// cover the box and center-cropped to exactly its dimensions. It returns
// nil when no thumbnail is configured or the source is smaller than the box.
func (p *Pipeline) Thumbnail(file string) (*Derivative, error) {
	box := p.cfg.Thumbnail
	if box == nil || box.Width <= 0 || box.Height <= 0 {
		return nil, nil
	}
	src, format, err := decodeFile(file)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < box.Width || h < box.Height {
		return nil, nil
	}

	cropW, cropH := w, h
	if w*box.Height > h*box.Width {
		cropW = int(math.Round(float64(h) * float64(box.Width) / float64(box.Height)))
	} else {
		cropH = int(math.Round(float64(w) * float64(box.Height) / float64(box.Width)))
	}
	x0 := b.Min.X + (w-cropW)/2
	y0 := b.Min.Y + (h-cropH)/2
	sr := image.Rect(x0, y0, x0+cropW, y0+cropH)

	ext := ".jpg"
	if format == "png" || hasAlpha(src) {
		ext = ".png"
	}
	name := Slug(box.Name, "thumb")
	base := strings.TrimSuffix(file, filepath.Ext(file))
	d, err := p.writeVariant(base+"_"+name, ext, resize(src, sr, box.Width, box.Height))
	if err != nil {
		return nil, err
	}
	d.Name, d.Width, d.Height = name, box.Width, box.Height
	return &d, nil
}

// writeVariant encodes img at base+ext and, when possible, base+".webp".
func (p *Pipeline) writeVariant(base, ext string, img image.Image) (Derivative, error) {
	data, err := encode(img, ext, p.cfg.Quality)
	if err != nil {
		return Derivative{}, err
	}
	file := base + ext
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return Derivative{}, err
	}
	d := Derivative{Path: p.PublicPath(file), file: file}

	if p.transcoder == nil {
		return d, nil
	}
	webp, err := p.encodeWebP(data)
	if err != nil {
		p.log.Warn().Err(err).Str("file", file).Msg("WebP variant failed")
		return d, nil
	}
	twin := base + ".webp"
	if err := os.WriteFile(twin, webp, 0o644); err != nil {
		p.log.Warn().Err(err).Str("file", twin).Msg("write WebP variant")
		os.Remove(twin)
		return d, nil
	}
	d.WebPPath, d.webpFile = p.PublicPath(twin), twin
	return d, nil
}

func decodeFile(file string) (image.Image, string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", filepath.Base(file), err)
	}
	return img, format, nil
}

// resize scales the sr region of src into a w x h canvas.
func resize(src image.Image, sr image.Rectangle, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
	return dst
}

func scaledHeight(w, h, targetW int) int {
	th := int(math.Round(float64(h) * float64(targetW) / float64(w)))
	if th < 1 {
		return 1
	}
	return th
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

func encode(img image.Image, ext string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if ext == ".png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
