package band

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/storefront/apperr"
)

func TestParseType(t *testing.T) {
	for _, s := range []string{"slideshow", "product", "html", "link", " Product "} {
		_, err := ParseType(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseType("carousel")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestClampHeight(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{3, 3},
		{4, 4},
		{5, 4},
		{99, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampHeight(tt.in), "ClampHeight(%d)", tt.in)
	}
}

func TestNormalizeAcceptsObjectAndEncodedString(t *testing.T) {
	obj, err := Normalize([]byte(`{"title":"Sale"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Sale"}`, string(obj))

	str, err := Normalize([]byte(`"{\"title\":\"Sale\"}"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Sale"}`, string(str))

	empty, err := Normalize(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func TestNormalizeMalformed(t *testing.T) {
	for _, in := range []string{`{"title":`, `"{\"title\": }"`, `{'a':1}`} {
		_, err := Normalize([]byte(in))
		require.Error(t, err, in)
		assert.True(t, apperr.Is(err, apperr.KindMalformedContent), "input %s: %v", in, err)
		assert.Contains(t, apperr.Message(err), "malformed band content")
	}
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	_, err := Normalize([]byte(`[1,2,3]`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestValidateSlideshow(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"empty slides", `{"slides":[]}`, false},
		{"slide without image", `{"slides":[{"title":"a"}]}`, false},
		{"slide with image", `{"slides":[{"image":"/uploads/a.jpg"}]}`, false},
		{"missing slides", `{"title":"x"}`, true},
		{"null slides", `{"slides":null}`, true},
		{"slides not array", `{"slides":"a.jpg"}`, true},
		{"empty image", `{"slides":[{"image":"  "}]}`, true},
		{"numeric image", `{"slides":[{"image":42}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(TypeSlideshow, []byte(tt.payload))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestDecodeSlideshowLenientScalars(t *testing.T) {
	c, err := Decode(TypeSlideshow, []byte(`{"title":"Hero","slides":[{"image":"a.jpg","title":"One"}],"autoplay":"1","interval":"3000"}`))
	require.NoError(t, err)
	s, ok := c.(Slideshow)
	require.True(t, ok)
	assert.True(t, bool(s.Autoplay))
	assert.Equal(t, Millis(3000), s.Interval)
	require.Len(t, s.Slides, 1)
	assert.Equal(t, "One", s.Slides[0].Title)
}

func TestDecodeSlideshowDefaultInterval(t *testing.T) {
	c, err := Decode(TypeSlideshow, []byte(`{"slides":[]}`))
	require.NoError(t, err)
	s := c.(Slideshow)
	assert.Equal(t, Millis(DefaultInterval), s.Interval)
	assert.NotNil(t, s.Slides)
}

func TestDecodeTypeMismatch(t *testing.T) {
	_, err := Decode(TypeProduct, []byte(`{"title":{"nested":true}}`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "%v", err)
}

func TestDecodeProductToleratesMissingFields(t *testing.T) {
	c, err := Decode(TypeProduct, []byte(`{}`))
	require.NoError(t, err)
	p := c.(Product)
	assert.False(t, p.Renderable())

	c, err = Decode(TypeProduct, []byte(`{"image":"/uploads/p.webp","title":"Chair"}`))
	require.NoError(t, err)
	assert.True(t, c.(Product).Renderable())
}

func TestDecodeStoredNeverFails(t *testing.T) {
	c := DecodeStored("slideshow", []byte(`{"slides":`))
	inv, ok := c.(Invalid)
	require.True(t, ok)
	assert.Equal(t, TypeSlideshow, inv.Type())
	assert.NotEmpty(t, inv.Reason)

	c = DecodeStored("banner", []byte(`{}`))
	_, ok = c.(Invalid)
	assert.True(t, ok)
}

func TestEncodeRoundTripKeepsSlidesWithoutImage(t *testing.T) {
	in := Slideshow{Slides: []Slide{{Title: "text only"}}, Interval: 4000}
	raw, err := Encode(in)
	require.NoError(t, err)

	out := DecodeStored("slideshow", raw)
	s, ok := out.(Slideshow)
	require.True(t, ok, "got %#v", out)
	assert.Equal(t, "text only", s.Slides[0].Title)
}

func TestEncodeRejectsInvalid(t *testing.T) {
	_, err := Encode(Invalid{Kind: TypeHTML, Reason: "x"})
	require.Error(t, err)
	_, err = Encode(nil)
	require.Error(t, err)
}

func TestImages(t *testing.T) {
	s := Slideshow{Slides: []Slide{{Image: "/uploads/a.jpg"}, {Title: "none"}, {Image: "/uploads/b.jpg"}}}
	assert.Equal(t, []string{"/uploads/a.jpg", "/uploads/b.jpg"}, Images(s))
	assert.Equal(t, []string{"/uploads/p.jpg"}, Images(Product{Image: "/uploads/p.jpg"}))
	assert.Empty(t, Images(HTML{Markup: "<p>x</p>"}))
}
