package band

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/eringen/storefront/apperr"
)

var (
	boolType = reflect.TypeOf(false)
	intType  = reflect.TypeOf(0)
)

// DefaultInterval is the slideshow autoplay interval in milliseconds used
// when the payload has none.
const DefaultInterval = 5000

// Content is the closed set of band payload variants.
type Content interface {
	Type() Type
	isContent()
}

// Slide is one entry of a slideshow, in display order.
type Slide struct {
	Image          string `json:"image,omitempty"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	Link           string `json:"link"`
	Alt            string `json:"alt"`
	SEOTitle       string `json:"seo_title"`
	SEODescription string `json:"seo_description"`
}

// Slideshow is the payload of a slideshow band.
type Slideshow struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	SEOSchema   json.RawMessage `json:"seo_schema,omitempty"`
	Slides      []Slide         `json:"slides"`
	Autoplay    Flag            `json:"autoplay"`
	Interval    Millis          `json:"interval"`
}

// Product is the payload of a product band.
type Product struct {
	Image           string `json:"image"`
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	Link            string `json:"link"`
	Alt             string `json:"alt"`
	SEOTitle        string `json:"seo_title"`
	SEODescription  string `json:"seo_description"`
	BackgroundColor string `json:"background_color"`
	ButtonText      string `json:"button_text"`
}

// Renderable reports whether the product has the fields the renderer
// needs. Missing fields are tolerated at storage time.
func (p Product) Renderable() bool {
	return strings.TrimSpace(p.Image) != "" && strings.TrimSpace(p.Title) != ""
}

// HTML is the payload of an html band. Markup is trusted admin input and is
// emitted verbatim.
type HTML struct {
	Background string `json:"background"`
	Alignment  string `json:"alignment"`
	Markup     string `json:"html"`
}

// Link is the payload of a link band.
type Link struct {
	URL        string `json:"url"`
	Label      string `json:"label"`
	Style      string `json:"style"`
	Target     string `json:"target"`
	Background string `json:"background"`
	Alignment  string `json:"alignment"`
}

// Invalid stands in for stored content that no longer decodes. It is never
// written; the renderer turns it into a placeholder.
type Invalid struct {
	Kind   Type   `json:"band_type"`
	Reason string `json:"error"`
}

func (Slideshow) Type() Type { return TypeSlideshow }
func (Product) Type() Type   { return TypeProduct }
func (HTML) Type() Type      { return TypeHTML }
func (Link) Type() Type      { return TypeLink }
func (i Invalid) Type() Type { return i.Kind }

func (Slideshow) isContent() {}
func (Product) isContent()   {}
func (HTML) isContent()      {}
func (Link) isContent()      {}
func (Invalid) isContent()   {}

// Flag is a bool that also accepts "true"/"false"/"1"/"0" strings and 0/1,
// which is what form-based editors send.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "true", "1", "on", "yes":
		*f = true
	case "false", "0", "off", "no", "", "null":
		*f = false
	default:
		return &json.UnmarshalTypeError{Value: string(b), Type: boolType}
	}
	return nil
}

// Millis is an integer millisecond count that also accepts numeric strings.
type Millis int

func (m *Millis) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return &json.UnmarshalTypeError{Value: string(b), Type: intType}
	}
	*m = Millis(int(f))
	return nil
}

// Normalize accepts band_content either as a JSON object or as a JSON string
// holding an encoded object, and returns the object bytes. Empty or null
// input yields "{}".
func Normalize(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, apperr.MalformedContent(err)
		}
		trimmed = bytes.TrimSpace([]byte(s))
		if len(trimmed) == 0 {
			return json.RawMessage("{}"), nil
		}
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, apperr.MalformedContent(err)
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, apperr.Validation("band_content must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

// Validate checks the per-type shape rules on a normalized payload.
func Validate(t Type, raw json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return apperr.MalformedContent(err)
	}
	switch t {
	case TypeSlideshow:
		slidesRaw, ok := obj["slides"]
		if !ok || bytes.Equal(bytes.TrimSpace(slidesRaw), []byte("null")) {
			return apperr.Validation("slideshow requires a slides array")
		}
		var slides []map[string]json.RawMessage
		if err := json.Unmarshal(slidesRaw, &slides); err != nil {
			return apperr.Validation("slides must be an array of objects")
		}
		for i, s := range slides {
			img, ok := s["image"]
			if !ok {
				continue
			}
			var str string
			if err := json.Unmarshal(img, &str); err != nil || strings.TrimSpace(str) == "" {
				return apperr.Validation("slide %d: image must be a non-empty string", i+1)
			}
		}
	case TypeProduct, TypeHTML, TypeLink:
	default:
		return apperr.Validation("unknown band_type %q", t)
	}
	return nil
}

// Decode turns an editor payload into a typed Content value.
func Decode(t Type, raw []byte) (Content, error) {
	norm, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(t, norm); err != nil {
		return nil, err
	}
	switch t {
	case TypeSlideshow:
		var s Slideshow
		if err := decodeInto(norm, &s); err != nil {
			return nil, err
		}
		if s.Interval <= 0 {
			s.Interval = DefaultInterval
		}
		if s.Slides == nil {
			s.Slides = []Slide{}
		}
		return s, nil
	case TypeProduct:
		var p Product
		if err := decodeInto(norm, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeHTML:
		var h HTML
		if err := decodeInto(norm, &h); err != nil {
			return nil, err
		}
		return h, nil
	default:
		var l Link
		if err := decodeInto(norm, &l); err != nil {
			return nil, err
		}
		return l, nil
	}
}

// DecodeStored decodes a persisted row. It never fails: content that no
// longer matches the schema comes back as Invalid.
func DecodeStored(bandType string, raw []byte) Content {
	t, err := ParseType(bandType)
	if err != nil {
		return Invalid{Kind: Type(bandType), Reason: err.Error()}
	}
	c, err := Decode(t, raw)
	if err != nil {
		return Invalid{Kind: t, Reason: err.Error()}
	}
	return c
}

// Encode serializes c for storage.
func Encode(c Content) (json.RawMessage, error) {
	if c == nil {
		return nil, apperr.Validation("band_content is required")
	}
	if inv, ok := c.(Invalid); ok {
		return nil, apperr.Validation("cannot store invalid content: %s", inv.Reason)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Images returns the image paths referenced by c.
func Images(c Content) []string {
	var out []string
	switch v := c.(type) {
	case Slideshow:
		for _, s := range v.Slides {
			if s.Image != "" {
				out = append(out, s.Image)
			}
		}
	case Product:
		if v.Image != "" {
			out = append(out, v.Image)
		}
	}
	return out
}

func decodeInto(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if typeErr.Field != "" {
				return apperr.Validation("field %s: expected %s", typeErr.Field, typeErr.Type)
			}
			return apperr.Validation("unexpected value %s", typeErr.Value)
		}
		return apperr.MalformedContent(err)
	}
	return nil
}
