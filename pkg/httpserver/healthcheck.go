package httpserver

import (
	"context"
	"net/http"
)

// HealthcheckHandler aggregates dependency probes into a single endpoint.
// Returns 200 when every probe passes and 503 with the failing detail
// otherwise.
func HealthcheckHandler(probes map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, probe := range probes {
			if err := probe(r.Context()); err != nil {
				http.Error(w, name+": "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
