package dropbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	uploadModeSingle  = "single"
	uploadModeSession = "session"
)

type metrics struct {
	requests     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	uploadBytes  *prometheus.CounterVec
	uploadChunks prometheus.Counter
}

// newMetrics creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filestorage_dropbox_requests_total",
				Help: "Total number of Dropbox API requests",
			},
			[]string{"op"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filestorage_dropbox_errors_total",
				Help: "Total number of failed Dropbox API requests by error kind",
			},
			[]string{"op", "kind"},
		),
		uploadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filestorage_dropbox_upload_bytes_total",
				Help: "Total bytes uploaded to Dropbox",
			},
			[]string{"mode"},
		),
		uploadChunks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "filestorage_dropbox_upload_chunks_total",
				Help: "Total number of upload session requests carrying a chunk",
			},
		),
	}
}
