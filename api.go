package storefront

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/storefront/apperr"
	"github.com/eringen/storefront/band"
	"github.com/eringen/storefront/media"
	"github.com/eringen/storefront/views"
)

// maxJSONBody bounds JSON request bodies on the API.
const maxJSONBody = 1 << 20

// bandRequest is the editor's band payload. band_content may be an object
// or a JSON-encoded string; the whole payload may also arrive wrapped in
// band_data.
type bandRequest struct {
	Type    string          `json:"band_type"`
	Height  *int            `json:"band_height"`
	Order   *int            `json:"band_order"`
	Content json.RawMessage `json:"band_content"`
	Data    json.RawMessage `json:"band_data"`
}

// unwrap replaces r with the payload carried in band_data, if any.
func (r *bandRequest) unwrap() error {
	if len(bytes.TrimSpace(r.Data)) == 0 {
		return nil
	}
	inner, err := band.Normalize(r.Data)
	if err != nil {
		return err
	}
	var next bandRequest
	if err := json.Unmarshal(inner, &next); err != nil {
		return apperr.MalformedContent(err)
	}
	*r = next
	return nil
}

func (a *App) actor(c echo.Context) Actor {
	return a.actorFunc(c)
}

func pageParam(c echo.Context) (string, error) {
	return ParsePageID(c.Param("page"))
}

// readBandRequest decodes a band payload from JSON or multipart. For
// multipart requests the attached images are processed and their public
// paths written into the decoded content.
func (a *App) readBandRequest(c echo.Context) (bandRequest, *bandImages, error) {
	var req bandRequest
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			if isBodyTooLarge(err) {
				return req, nil, apperr.SizeLimit("request body too large")
			}
			return req, nil, apperr.Validation("invalid multipart form")
		}
		defer form.RemoveAll()
		req.Data = json.RawMessage(firstValue(form.Value["band_data"]))
		if err := req.unwrap(); err != nil {
			return req, nil, err
		}
		images, err := a.uploadBandImages(c, form.File)
		return req, images, err
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxJSONBody+1))
	if err != nil {
		return req, nil, apperr.Validation("could not read request body")
	}
	if len(body) > maxJSONBody {
		return req, nil, apperr.SizeLimit("request body too large")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, nil, apperr.MalformedContent(err)
	}
	return req, nil, req.unwrap()
}

// bandImages are the files uploaded with a multipart band save, keyed by
// form field.
type bandImages struct {
	paths   map[string]string
	results []*media.Result
}

// uploadBandImages processes "image" and "slide_image_<n>" files as one
// batch.
func (a *App) uploadBandImages(c echo.Context, files map[string][]*multipart.FileHeader) (*bandImages, error) {
	var fields []string
	for field, fhs := range files {
		if len(fhs) > 0 && (field == "image" || strings.HasPrefix(field, "slide_image_")) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	batch := make([]*multipart.FileHeader, len(fields))
	for i, field := range fields {
		batch[i] = files[field][0]
	}

	ctx, cancel := a.uploadContext(c)
	defer cancel()
	results, err := a.processBatch(ctx, batch, "bands")
	if err != nil {
		return nil, err
	}
	imgs := &bandImages{paths: make(map[string]string, len(fields)), results: results}
	for i, field := range fields {
		imgs.paths[field] = results[i].Path
	}
	return imgs, nil
}

// discardUnsaved drops the uploads of a band save that never reached the
// store.
func (a *App) discardUnsaved(imgs *bandImages, saved *bool) {
	if !*saved && imgs != nil {
		a.discard(imgs.results)
	}
}

// attachImages writes uploaded image paths into decoded content. "image"
// targets a product's image or a slideshow's first slide; slide_image_<n>
// targets slide n, counted from zero.
func attachImages(content band.Content, imgs *bandImages) (band.Content, error) {
	if imgs == nil || len(imgs.paths) == 0 {
		return content, nil
	}
	images := imgs.paths
	switch v := content.(type) {
	case band.Product:
		if p, ok := images["image"]; ok {
			v.Image = p
		}
		return v, nil
	case band.Slideshow:
		slides := append([]band.Slide(nil), v.Slides...)
		for field, p := range images {
			n := 0
			if field != "image" {
				i, err := strconv.Atoi(strings.TrimPrefix(field, "slide_image_"))
				if err != nil || i < 0 {
					return nil, apperr.Validation("invalid image field %q", field)
				}
				n = i
			}
			if n >= len(slides) {
				return nil, apperr.Validation("%s has no matching slide", field)
			}
			slides[n].Image = p
		}
		v.Slides = slides
		return v, nil
	}
	return nil, apperr.Validation("%s bands do not take images", content.Type())
}

// --- bands ---

func (a *App) handleListBands(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	bands, err := a.Store.ListBands(c.Request().Context(), pageID)
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, bands)
}

func (a *App) handleGetBand(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"), "band")
	if err != nil {
		return err
	}
	b, err := a.Store.GetBand(c.Request().Context(), pageID, id)
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, b)
}

func (a *App) handleCreateBand(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	req, images, err := a.readBandRequest(c)
	if err != nil {
		return err
	}
	saved := false
	defer a.discardUnsaved(images, &saved)
	t, err := band.ParseType(req.Type)
	if err != nil {
		return err
	}
	content, err := band.Decode(t, req.Content)
	if err != nil {
		return err
	}
	if content, err = attachImages(content, images); err != nil {
		return err
	}

	ctx := c.Request().Context()
	b := band.Band{PageID: pageID, Type: t, Height: band.MinHeight, Content: content}
	if req.Height != nil {
		b.Height = *req.Height
	}
	if req.Order != nil {
		b.Order = *req.Order
	} else {
		existing, err := a.Store.ListBands(ctx, pageID)
		if err != nil {
			return err
		}
		b.Order = nextOrder(existing)
	}

	created, err := a.Store.CreateBand(ctx, a.actor(c), b)
	if err != nil {
		return err
	}
	saved = true
	a.Cache.Invalidate(pageID)
	return Success(c, http.StatusCreated, created)
}

// nextOrder appends after the last band.
func nextOrder(bands []band.Band) int {
	next := 0
	for _, b := range bands {
		if b.Order >= next {
			next = b.Order + 1
		}
	}
	return next
}

func (a *App) handleUpdateBand(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"), "band")
	if err != nil {
		return err
	}
	req, images, err := a.readBandRequest(c)
	if err != nil {
		return err
	}
	saved := false
	defer a.discardUnsaved(images, &saved)

	ctx := c.Request().Context()
	current, err := a.Store.GetBand(ctx, pageID, id)
	if err != nil {
		return err
	}
	// Omitted fields keep their stored values.
	b := current
	if req.Type != "" {
		if b.Type, err = band.ParseType(req.Type); err != nil {
			return err
		}
	}
	if req.Height != nil {
		b.Height = *req.Height
	}
	if req.Order != nil {
		b.Order = *req.Order
	}
	if len(req.Content) > 0 || b.Type != current.Type {
		if b.Content, err = band.Decode(b.Type, req.Content); err != nil {
			return err
		}
	}
	if b.Content, err = attachImages(b.Content, images); err != nil {
		return err
	}

	updated, err := a.Store.UpdateBand(ctx, a.actor(c), b)
	if err != nil {
		return err
	}
	saved = true
	a.Cache.Invalidate(pageID)
	return Success(c, http.StatusOK, updated)
}

func (a *App) handleDeleteBand(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	id, err := parseID(c.Param("id"), "band")
	if err != nil {
		return err
	}
	if err := a.Store.DeleteBand(c.Request().Context(), a.actor(c), pageID, id); err != nil {
		return err
	}
	a.Cache.Invalidate(pageID)
	return Success(c, http.StatusOK, map[string]int64{"id": id})
}

type orderItem struct {
	ID    int64 `json:"id" validate:"required,gt=0"`
	Order int   `json:"band_order"`
}

type reorderRequest struct {
	Bands []orderItem `json:"bands" validate:"required,min=1,dive"`
}

func (a *App) handleReorderBands(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	orders := make(map[int64]int, len(req.Bands))
	for _, it := range req.Bands {
		if _, dup := orders[it.ID]; dup {
			return apperr.Validation("band %d listed twice", it.ID)
		}
		orders[it.ID] = it.Order
	}

	ctx := c.Request().Context()
	if err := a.Store.ReorderBands(ctx, a.actor(c), pageID, orders); err != nil {
		return err
	}
	a.Cache.Invalidate(pageID)
	bands, err := a.Store.ListBands(ctx, pageID)
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, bands)
}

// --- snapshots ---

type snapshotRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

func (a *App) handleCreateSnapshot(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	var req snapshotRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return err
		}
		if err := c.Validate(&req); err != nil {
			return err
		}
	}
	snap, err := a.Store.SnapshotBands(c.Request().Context(), a.actor(c), pageID, strings.TrimSpace(req.Reason))
	if err != nil {
		return err
	}
	return Success(c, http.StatusCreated, snap)
}

func (a *App) handleListSnapshots(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	snaps, err := a.Store.ListSnapshots(c.Request().Context(), pageID)
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, snaps)
}

func (a *App) handleRestoreSnapshot(c echo.Context) error {
	id, err := parseID(c.Param("id"), "snapshot")
	if err != nil {
		return err
	}
	snap, err := a.Store.RestoreSnapshot(c.Request().Context(), a.actor(c), id)
	if err != nil {
		return err
	}
	a.Cache.Invalidate(snap.PageID)
	return Success(c, http.StatusOK, snap)
}

// --- pages and styles ---

type pageRequest struct {
	Title           string                `json:"title" validate:"max=200"`
	MetaDescription string                `json:"meta_description" validate:"max=500"`
	ColorPalette    map[string]string     `json:"color_palette" validate:"dive,keys,required,endkeys,hexcolor"`
	FontConfig      map[string]views.Font `json:"font_config"`
	GlobalStyles    map[string]string     `json:"global_styles"`
}

type pageResponse struct {
	PageConfig
	Bands []band.Band `json:"bands"`
}

func (a *App) handleListPages(c echo.Context) error {
	pages, err := a.Store.ListPageConfigs(c.Request().Context())
	if err != nil {
		return err
	}
	if pages == nil {
		pages = []PageConfig{}
	}
	return Success(c, http.StatusOK, pages)
}

func (a *App) handleGetPage(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	cfg, err := a.Store.GetPageConfig(ctx, pageID)
	if err != nil {
		return err
	}
	bands, err := a.Store.ListBands(ctx, pageID)
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, pageResponse{PageConfig: cfg, Bands: bands})
}

func (a *App) handleSavePage(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	saved, err := a.Store.SavePageConfig(c.Request().Context(), a.actor(c), PageConfig{
		PageID:          pageID,
		Title:           strings.TrimSpace(req.Title),
		MetaDescription: strings.TrimSpace(req.MetaDescription),
		ColorPalette:    req.ColorPalette,
		FontConfig:      req.FontConfig,
		GlobalStyles:    req.GlobalStyles,
	})
	if err != nil {
		return err
	}
	a.Cache.Invalidate(pageID)
	return Success(c, http.StatusOK, saved)
}

func (a *App) handleDeletePage(c echo.Context) error {
	pageID, err := pageParam(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeletePage(c.Request().Context(), a.actor(c), pageID); err != nil {
		return err
	}
	a.Cache.Invalidate(pageID)
	return Success(c, http.StatusOK, map[string]string{"page_id": pageID})
}

func (a *App) handleGetGlobalStyles(c echo.Context) error {
	styles, err := a.Store.GetGlobalStyles(c.Request().Context())
	if err != nil {
		return err
	}
	return Success(c, http.StatusOK, styles)
}

func (a *App) handleSaveGlobalStyles(c echo.Context) error {
	var req StyleUpdate
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	saved, err := a.Store.SaveGlobalStyles(c.Request().Context(), a.actor(c), req)
	if err != nil {
		return err
	}
	a.Cache.InvalidateAll()
	return Success(c, http.StatusOK, saved)
}
