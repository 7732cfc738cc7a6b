// Package vips encodes WebP through libvips.
package vips

import (
	"fmt"

	"github.com/h2non/bimg"
)

// Encoder implements media.Transcoder with bimg.
type Encoder struct{}

// New returns an Encoder, or an error when the linked libvips cannot
// write WebP.
func New() (*Encoder, error) {
	if !bimg.IsTypeSupportedSave(bimg.WEBP) {
		return nil, fmt.Errorf("libvips %s has no WebP save support", bimg.VipsVersion)
	}
	return &Encoder{}, nil
}

// ToWebP re-encodes data as WebP at the given quality.
func (Encoder) ToWebP(data []byte, quality int) ([]byte, error) {
	out, err := bimg.NewImage(data).Process(bimg.Options{
		Type:    bimg.WEBP,
		Quality: quality,
	})
	if err != nil {
		return nil, fmt.Errorf("vips webp: %w", err)
	}
	return out, nil
}
