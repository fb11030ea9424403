/*
server.go - HTTP router, middleware and identity resolution

ROUTER: chi
  Middleware stack: Logger, Recoverer, RequestID, CORS.

IDENTITY:
  Session issuance lives outside this service. Requests arrive already
  authenticated; the X-User-ID header names the caller and the identity
  middleware resolves it against the user directory. Missing or unknown
  user -> 401. Admin-only routes additionally require the hr_admin role
  -> 403.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/peoplekit/hr-engine/identity"
)

type ctxKey int

const userKey ctxKey = 0

// userFrom returns the authenticated caller. The identity middleware
// guarantees presence on every route it wraps.
func userFrom(r *http.Request) *identity.User {
	u, _ := r.Context().Value(userKey).(*identity.User)
	return u
}

// NewRouter creates the router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.withUser)

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/check-in", h.CheckIn)
			r.Post("/check-out", h.CheckOut)
			r.Get("/today", h.Today)
			r.Get("/history", h.History)
		})

		r.Route("/leave", func(r chi.Router) {
			r.Post("/requests", h.SubmitLeave)
			r.Get("/requests", h.MyLeaveRequests)
			r.Post("/requests/{id}/cancel", h.CancelLeave)
			r.Get("/balance", h.GetBalance)
			r.Get("/types", h.ListLeaveTypes)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/requests/pending", h.PendingLeaveRequests)
				r.Post("/requests/{id}/approve", h.ApproveLeave)
				r.Post("/requests/{id}/reject", h.RejectLeave)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/users", h.CreateUser)
			r.Post("/allocations", h.CreateAllocation)
		})
	})

	return r
}

// withUser resolves the caller from the X-User-ID header.
func (h *Handler) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-ID")
		if id == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		user, err := h.Store.UserByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve user", err)
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// requireAdmin gates HR-admin operations.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r)
		if user == nil || !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "hr_admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
