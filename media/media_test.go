package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/eringen/storefront/apperr"
)

// fakeWebP is the smallest byte sequence content sniffing accepts as WebP.
var fakeWebP = []byte("RIFF\x1a\x00\x00\x00WEBPVP8 \x0e\x00\x00\x00")

type stubTranscoder struct {
	err   error
	calls int
}

func (s *stubTranscoder) ToWebP(data []byte, quality int) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return fakeWebP, nil
}

type recordingMirror struct {
	keys []string
}

func (m *recordingMirror) Put(_ context.Context, key, _, _ string) error {
	m.keys = append(m.keys, key)
	return errors.New("bucket unavailable")
}

func writeJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	file := filepath.Join(dir, name)
	f, err := os.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 70}); err != nil {
		t.Fatal(err)
	}
	return file
}

func writePNG(t *testing.T, dir, name string, w, h int, transparent bool) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	a := uint8(255)
	if transparent {
		a = 0
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{200, 40, 40, a})
		}
	}
	file := filepath.Join(dir, name)
	f, err := os.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return file
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	return New(Config{Root: filepath.Join(t.TempDir(), "uploads")}, opts...)
}

func upload(file, name string) Upload {
	return Upload{Path: file, OriginalName: name}
}

func exists(file string) bool {
	_, err := os.Stat(file)
	return err == nil
}

func TestProcessLargeJPEG(t *testing.T) {
	tc := &stubTranscoder{}
	p := newTestPipeline(t, WithTranscoder(tc))
	src := writeJPEG(t, t.TempDir(), "hero.jpg", 3000, 2000)

	res, err := p.Process(context.Background(), upload(src, "Hero Shot.jpg"), "slides")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := map[string][2]int{
		"small":  {640, 427},
		"medium": {1024, 683},
		"large":  {1920, 1280},
	}
	if len(res.Derivatives) != len(want) {
		t.Fatalf("got %d derivatives, want %d", len(res.Derivatives), len(want))
	}
	for _, d := range res.Derivatives {
		dims, ok := want[d.Name]
		if !ok {
			t.Errorf("unexpected derivative %q", d.Name)
			continue
		}
		if d.Width != dims[0] || d.Height != dims[1] {
			t.Errorf("%s = %dx%d, want %dx%d", d.Name, d.Width, d.Height, dims[0], dims[1])
		}
		if !strings.HasSuffix(d.Path, "_"+d.Name+".jpg") {
			t.Errorf("%s path = %q", d.Name, d.Path)
		}
		if !strings.HasSuffix(d.WebPPath, "_"+d.Name+".webp") {
			t.Errorf("%s webp path = %q", d.Name, d.WebPPath)
		}
		local, _ := p.LocalPath(d.Path)
		f, err := os.Open(local)
		if err != nil {
			t.Fatalf("open derivative: %v", err)
		}
		cfg, _, err := image.DecodeConfig(f)
		f.Close()
		if err != nil || cfg.Width != dims[0] || cfg.Height != dims[1] {
			t.Errorf("%s on disk = %dx%d (%v)", d.Name, cfg.Width, cfg.Height, err)
		}
	}

	if !res.Transcoded || !strings.HasSuffix(res.Path, ".webp") {
		t.Errorf("original not transcoded: %+v", res)
	}
	if !strings.HasPrefix(res.Path, "/uploads/slides/hero-shot-") {
		t.Errorf("path = %q", res.Path)
	}
	if res.Metadata.Width != 3000 || res.Metadata.Height != 2000 {
		t.Errorf("metadata dims = %dx%d", res.Metadata.Width, res.Metadata.Height)
	}
	jpg, _ := p.LocalPath(strings.TrimSuffix(res.Path, ".webp") + ".jpg")
	if exists(jpg) {
		t.Error("legacy original should be removed after transcoding")
	}
	if exists(src) {
		t.Error("temp upload should have been moved")
	}
}

func TestProcessSmallPNGHasNoDerivatives(t *testing.T) {
	p := newTestPipeline(t)
	src := writePNG(t, t.TempDir(), "icon.png", 500, 500, false)

	res, err := p.Process(context.Background(), upload(src, "icon.png"), "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Derivatives) != 0 {
		t.Errorf("got %d derivatives, want none", len(res.Derivatives))
	}
	if res.Transcoded {
		t.Error("no transcoder configured, original must stay PNG")
	}
	if !strings.HasPrefix(res.Path, "/uploads/general/icon-") || !strings.HasSuffix(res.Path, ".png") {
		t.Errorf("path = %q", res.Path)
	}
	local, _ := p.LocalPath(res.Path)
	if !exists(local) {
		t.Error("stored original missing")
	}
}

func TestProcessTranscodeFailureKeepsOriginal(t *testing.T) {
	p := newTestPipeline(t, WithTranscoder(&stubTranscoder{err: errors.New("encoder crashed")}))
	src := writeJPEG(t, t.TempDir(), "a.jpg", 800, 600)

	res, err := p.Process(context.Background(), upload(src, "a.jpg"), "products")
	if err != nil {
		t.Fatalf("upload must succeed when transcoding fails: %v", err)
	}
	if res.Transcoded || !strings.HasSuffix(res.Path, ".jpg") {
		t.Errorf("expected legacy original, got %+v", res)
	}
	local, _ := p.LocalPath(res.Path)
	if !exists(local) {
		t.Error("original must be kept")
	}
	if len(res.Derivatives) != 1 || res.Derivatives[0].WebPPath != "" {
		t.Errorf("derivatives = %+v", res.Derivatives)
	}
}

func TestProcessMirrorFailureIsNotFatal(t *testing.T) {
	m := &recordingMirror{}
	p := newTestPipeline(t, WithMirror(m))
	src := writeJPEG(t, t.TempDir(), "a.jpg", 700, 300)

	res, err := p.Process(context.Background(), upload(src, "a.jpg"), "slides")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(m.keys) != 2 {
		t.Fatalf("mirrored %v, want original and one derivative", m.keys)
	}
	if m.keys[0] != strings.TrimPrefix(res.Path, "/") {
		t.Errorf("first key = %q, path = %q", m.keys[0], res.Path)
	}
}

func TestProcessRejectsWhatValidateRejects(t *testing.T) {
	p := newTestPipeline(t)
	file := filepath.Join(t.TempDir(), "notes.jpg")
	os.WriteFile(file, []byte("just some text, not an image"), 0o644)

	_, err := p.Process(context.Background(), Upload{Path: file, DeclaredMIME: "image/jpeg", OriginalName: "notes.jpg"}, "slides")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	entries, _ := os.ReadDir(p.Config().Root)
	if len(entries) != 0 {
		t.Errorf("nothing should be stored, found %d entries", len(entries))
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	p := New(Config{Root: dir, MaxSize: 2048})

	jpg := writeJPEG(t, dir, "ok.jpg", 20, 20)
	mime, err := p.Validate(Upload{Path: jpg, DeclaredMIME: "image/png"})
	if err != nil || mime != "image/jpeg" {
		t.Errorf("Validate(jpeg) = %q, %v", mime, err)
	}

	big := filepath.Join(dir, "big.png")
	os.WriteFile(big, make([]byte, 4096), 0o644)
	if _, err := p.Validate(Upload{Path: big}); !apperr.Is(err, apperr.KindSizeLimit) {
		t.Errorf("oversized: err = %v, want size limit", err)
	}

	gif := filepath.Join(dir, "anim.gif")
	os.WriteFile(gif, []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"), 0o644)
	if _, err := p.Validate(Upload{Path: gif, DeclaredMIME: "image/jpeg"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("gif: err = %v, want validation", err)
	}

	if _, err := p.Validate(Upload{Path: filepath.Join(dir, "missing")}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing: err = %v, want validation", err)
	}
}

func TestStoreNaming(t *testing.T) {
	p := newTestPipeline(t)
	tmp := t.TempDir()
	pattern := regexp.MustCompile(`^my-photo-1-[0-9a-f]{12}\.png$`)

	var names []string
	for i := 0; i < 2; i++ {
		src := writePNG(t, tmp, "upload.tmp", 10, 10, false)
		got, err := p.Store(upload(src, "../My Photo (1).JPG"), "Slides!")
		if err != nil {
			t.Fatalf("Store: %v", err)
		}
		if filepath.Base(filepath.Dir(got)) != "slides" {
			t.Errorf("category dir = %q", filepath.Dir(got))
		}
		if !pattern.MatchString(filepath.Base(got)) {
			t.Errorf("name %q does not match %s", filepath.Base(got), pattern)
		}
		names = append(names, got)
	}
	if names[0] == names[1] {
		t.Error("two uploads of the same name must not collide")
	}
}

func TestStoreFallbackNames(t *testing.T) {
	p := newTestPipeline(t)
	src := writeJPEG(t, t.TempDir(), "x", 10, 10)
	got, err := p.Store(upload(src, "ßßß.jpeg"), "  ")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.Contains(got, string(filepath.Separator)+"general"+string(filepath.Separator)+"image-") {
		t.Errorf("got %q", got)
	}
}

func TestStoreUnwritableRoot(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "uploads")
	os.WriteFile(blocker, []byte("a file, not a directory"), 0o644)
	p := New(Config{Root: blocker})
	src := writeJPEG(t, dir, "a.jpg", 10, 10)

	_, err := p.Store(upload(src, "a.jpg"), "slides")
	if !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("err = %v, want storage error", err)
	}
	if apperr.Message(err) != "could not store file" {
		t.Errorf("message leaks internals: %q", apperr.Message(err))
	}
}

func TestDerivativesKeepAlpha(t *testing.T) {
	p := newTestPipeline(t)
	dir := t.TempDir()
	src := writePNG(t, dir, "logo.png", 1200, 600, true)

	ds := p.GenerateDerivatives(src, []Size{{Name: "small", Width: 300}})
	if len(ds) != 1 {
		t.Fatalf("got %d derivatives", len(ds))
	}
	if !strings.HasSuffix(ds[0].file, "logo_small.png") {
		t.Errorf("alpha source should produce PNG, got %q", ds[0].file)
	}
	f, _ := os.Open(ds[0].file)
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := img.At(10, 10).RGBA(); a != 0 {
		t.Errorf("alpha = %d, want transparent", a)
	}
}

func TestDerivativesPartialFailure(t *testing.T) {
	p := newTestPipeline(t)
	dir := t.TempDir()
	src := writeJPEG(t, dir, "wide.jpg", 1400, 700)
	// A directory squatting on the medium name makes that write fail.
	os.Mkdir(filepath.Join(dir, "wide_medium.jpg"), 0o755)

	ds := p.GenerateDerivatives(src, []Size{{"small", 640}, {"medium", 1024}, {"large", 1920}})
	if len(ds) != 1 || ds[0].Name != "small" {
		t.Fatalf("derivatives = %+v, want only small", ds)
	}
}

func TestDerivativesUndecodableSource(t *testing.T) {
	p := newTestPipeline(t)
	file := filepath.Join(t.TempDir(), "broken.jpg")
	os.WriteFile(file, []byte{0xff, 0xd8, 0xff, 0x00}, 0o644)
	if ds := p.GenerateDerivatives(file, DefaultSizes()); ds != nil {
		t.Errorf("got %v, want nil", ds)
	}
}

func TestThumbnailCoverCrop(t *testing.T) {
	p := New(Config{Root: t.TempDir(), Thumbnail: &Box{Name: "thumb", Width: 200, Height: 200}})
	src := writeJPEG(t, p.Config().Root, "wide.jpg", 900, 300)

	d, err := p.Thumbnail(src)
	if err != nil || d == nil {
		t.Fatalf("Thumbnail = %v, %v", d, err)
	}
	f, _ := os.Open(d.file)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Width != 200 || cfg.Height != 200 {
		t.Errorf("thumbnail = %dx%d (%v), want 200x200", cfg.Width, cfg.Height, err)
	}

	small := writeJPEG(t, p.Config().Root, "tiny.jpg", 100, 400)
	if d, err := p.Thumbnail(small); d != nil || err != nil {
		t.Errorf("source narrower than box should be skipped, got %v, %v", d, err)
	}
}

func TestExtractMetadata(t *testing.T) {
	p := newTestPipeline(t)
	src := writeJPEG(t, t.TempDir(), "a.jpg", 320, 240)

	m := p.ExtractMetadata(src)
	if m.Width != 320 || m.Height != 240 || m.MIME != "image/jpeg" || m.Size == 0 {
		t.Errorf("metadata = %+v", m)
	}
	if len(m.Errors) != 0 {
		t.Errorf("unexpected errors: %v", m.Errors)
	}

	missing := p.ExtractMetadata(filepath.Join(t.TempDir(), "gone.jpg"))
	if len(missing.Errors) == 0 {
		t.Error("missing file should record errors, not fail")
	}
}

func TestOrphans(t *testing.T) {
	p := newTestPipeline(t)
	dir := filepath.Join(p.Config().Root, "slides")
	os.MkdirAll(dir, 0o755)
	for _, name := range []string{
		"kept-aaaaaaaaaaaa.webp",
		"kept-aaaaaaaaaaaa_small.jpg",
		"kept-aaaaaaaaaaaa_small.webp",
		"gone-bbbbbbbbbbbb.jpg",
		"gone-bbbbbbbbbbbb_large.jpg",
	} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644)
	}

	got, err := p.Orphans([]string{"/uploads/slides/kept-aaaaaaaaaaaa.webp", "https://cdn.example.com/x.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/uploads/slides/gone-bbbbbbbbbbbb.jpg", "/uploads/slides/gone-bbbbbbbbbbbb_large.jpg"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Orphans = %v, want %v", got, want)
	}

	for _, o := range got {
		if err := p.Remove(o); err != nil {
			t.Errorf("Remove(%s): %v", o, err)
		}
	}
	if got, _ := p.Orphans([]string{"/uploads/slides/kept-aaaaaaaaaaaa.webp"}); len(got) != 0 {
		t.Errorf("after removal: %v", got)
	}
}

func TestPublicAndLocalPath(t *testing.T) {
	p := New(Config{Root: "/srv/public/uploads", URLPrefix: "uploads/"})
	if got := p.PublicPath("/srv/public/uploads/slides/a.webp"); got != "/uploads/slides/a.webp" {
		t.Errorf("PublicPath = %q", got)
	}
	if got := p.PublicPath("/etc/passwd"); got != "" {
		t.Errorf("outside root = %q", got)
	}
	local, ok := p.LocalPath("/uploads/../../etc/passwd")
	if !ok || local != filepath.Join("/srv/public/uploads", "etc/passwd") {
		t.Errorf("LocalPath escaped root: %q", local)
	}
	if _, ok := p.LocalPath("/static/a.jpg"); ok {
		t.Error("non-upload path should not resolve")
	}
}

func TestDiscardRemovesEveryFile(t *testing.T) {
	p := newTestPipeline(t)
	src := writePNG(t, t.TempDir(), "banner.png", 800, 400, false)

	res, err := p.Process(context.Background(), upload(src, "banner.png"), "bands")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	files := res.Files()
	if len(files) < 2 {
		t.Fatalf("expected original and derivatives, got %v", files)
	}
	if err := p.Discard(res); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	for _, f := range files {
		local, _ := p.LocalPath(f)
		if exists(local) {
			t.Errorf("%s still on disk", f)
		}
	}
	if err := p.Discard(res); err != nil {
		t.Errorf("second Discard: %v", err)
	}
}
