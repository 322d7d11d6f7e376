package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the HTTP router. metrics may be nil.
func NewRouter(sess Session, bus EventBus, metrics http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{sess: sess, events: bus}

	// Session state
	r.Get("/api", h.getState)
	r.Get("/api/", h.getState)

	// Modes
	r.Get("/api/modes", h.getModes)
	r.Get("/api/mode", h.getMode)
	r.Put("/api/mode", h.setMode)
	r.Get("/api/selection/{target}", h.getSelection)

	// Controls
	r.Get("/api/controls", h.getControls)
	r.Patch("/api/controls", h.setControls)
	r.Get("/api/controls/{name}", h.getControl)
	r.Patch("/api/controls/{name}", h.setControl)

	// Lifecycle
	r.Post("/api/stream/{state}", h.setStream)
	r.Post("/api/power/{state}", h.setPower)
	r.Post("/api/identify", h.identify)

	// Raw registers
	r.Get("/api/registers/{addr}", h.readRegister)
	r.Put("/api/registers/{addr}", h.writeRegister)

	// SSE
	r.Get("/api/subscribe", h.sseEvents)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
