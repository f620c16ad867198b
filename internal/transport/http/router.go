package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"provenance/internal/registry/handler"
)

// NewRouter wires the registry endpoints plus operational routes. Transport
// concerns stay here; the handler owns request decoding and the service owns
// every state decision.
func NewRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	h.Register(r)
	return r
}
