package storefront

import "embed"

// EmbeddedAssets contains static assets shipped with the binary:
// slideshow.js, the controller for rendered slideshow bands.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
