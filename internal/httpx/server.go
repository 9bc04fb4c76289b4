package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-orderwise/internal/identity"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(identity.Headers)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Registrar is implemented by every handler group mounted under /api/v1.
type Registrar interface {
	Register(r chi.Router)
}

// Mount attaches the handler groups under /api/v1.
func Mount(r *chi.Mux, hs ...Registrar) {
	r.Route("/api/v1", func(api chi.Router) {
		for _, h := range hs {
			h.Register(api)
		}
	})
}

// staffOnly rejects requests without the staff role.
func staffOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := identity.RequireStaff(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// signedIn rejects anonymous requests.
func signedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := identity.Require(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
