package storefront

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/storefront/apperr"
	"github.com/eringen/storefront/media"
)

// maxFilesPerRequest caps how many images one multipart request may carry.
const maxFilesPerRequest = 20

// uploadBodyLimit is the largest multipart body the upload routes accept.
func (a *App) uploadBodyLimit() string {
	return strconv.FormatInt(a.Config.MaxUploadSize*maxFilesPerRequest+(1<<20), 10) + "B"
}

// spoolUpload copies one multipart file to a temp file the pipeline can
// sniff and move. The caller removes u.Path if it is still there.
func (a *App) spoolUpload(fh *multipart.FileHeader) (media.Upload, error) {
	if fh.Size > a.Config.MaxUploadSize {
		return media.Upload{}, apperr.SizeLimit("%s exceeds the maximum upload size", fh.Filename)
	}
	src, err := fh.Open()
	if err != nil {
		return media.Upload{}, apperr.Validation("could not read upload %s", fh.Filename)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "storefront-upload-*")
	if err != nil {
		return media.Upload{}, apperr.Storage(err, "create temp file")
	}
	// One byte past the limit is enough for validation to reject it.
	n, err := io.Copy(tmp, io.LimitReader(src, a.Config.MaxUploadSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return media.Upload{}, apperr.Storage(err, "spool upload %s", fh.Filename)
	}
	return media.Upload{
		Path:         tmp.Name(),
		DeclaredMIME: fh.Header.Get(echo.HeaderContentType),
		Size:         n,
		OriginalName: fh.Filename,
	}, nil
}

// processBatch stores a set of uploads all or nothing: every file is
// spooled and validated before the first one is stored, and a failure
// while processing discards the files already written.
func (a *App) processBatch(ctx context.Context, files []*multipart.FileHeader, category string) ([]*media.Result, error) {
	uploads := make([]media.Upload, 0, len(files))
	defer func() {
		for _, u := range uploads {
			os.Remove(u.Path)
		}
	}()
	for _, fh := range files {
		u, err := a.spoolUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
		if _, err := a.Pipeline.Validate(u); err != nil {
			return nil, fmt.Errorf("upload %s: %w", fh.Filename, err)
		}
	}

	results := make([]*media.Result, 0, len(uploads))
	for _, u := range uploads {
		res, err := a.Pipeline.Process(ctx, u, category)
		if err != nil {
			a.discard(results)
			return nil, fmt.Errorf("upload %s: %w", u.OriginalName, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// discard removes uploads that will never be referenced.
func (a *App) discard(results []*media.Result) {
	for _, res := range results {
		if err := a.Pipeline.Discard(res); err != nil {
			a.logger.Warn().Err(err).Str("path", res.Path).Msg("discard upload")
		}
	}
}

func (a *App) uploadContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), a.Config.UploadTimeout)
}

// handleImageUpload accepts one or more files under "images" (or "image")
// and returns the processed result of each, in order. A bad file rejects
// the whole request and nothing is stored.
func (a *App) handleImageUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		if isBodyTooLarge(err) {
			return apperr.SizeLimit("request body too large")
		}
		return apperr.Validation("expected a multipart form with image files")
	}
	defer form.RemoveAll()

	files := append(form.File["images"], form.File["image"]...)
	if len(files) == 0 {
		return apperr.Validation("no image files provided")
	}
	if len(files) > maxFilesPerRequest {
		return apperr.Validation("at most %d files per request", maxFilesPerRequest)
	}
	category := firstValue(form.Value["category"])

	ctx, cancel := a.uploadContext(c)
	defer cancel()

	results, err := a.processBatch(ctx, files, category)
	if err != nil {
		return err
	}
	return Success(c, http.StatusCreated, results)
}

func firstValue(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
