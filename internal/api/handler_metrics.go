package api

import "net/http"

// HandleMetrics wraps the Prometheus exposition handler. A nil handler
// serves 404 so /metrics stays optional.
func HandleMetrics(h http.Handler) http.Handler {
	if h == nil {
		return http.NotFoundHandler()
	}
	return h
}
