package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_image_uploads_total",
		Help: "Image uploads by outcome (stored, rejected, failed).",
	}, []string{"result"})

	transcodeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_image_transcode_fallbacks_total",
		Help: "Uploads kept in their original encoding because WebP transcoding failed.",
	})

	derivativeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_image_derivative_failures_total",
		Help: "Size variants that could not be generated.",
	})
)
