package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing the registered metrics in
// Prometheus exposition format, typically mounted at "/metrics".
func (pm *PolicyMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		pm.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
