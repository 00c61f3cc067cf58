// Package httpapi exposes the bank-cards HTTP API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/imalykh/bankcards/internal/model"
	"github.com/imalykh/bankcards/internal/service"
)

// Handlers wires services into HTTP handlers.
type Handlers struct {
	auth  service.AuthService
	cards service.CardService
	users service.UserService
}

// NewHandlers constructs the handler set with injected services.
func NewHandlers(auth service.AuthService, cards service.CardService, users service.UserService) *Handlers {
	return &Handlers{auth: auth, cards: cards, users: users}
}

// NewRouter builds the service router: public auth endpoints, the USER card
// surface, and the ADMIN surface. Role enforcement lives here, not in the core.
func NewRouter(log *zap.Logger, h *Handlers, signKey []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(Recover(log))
	r.Use(Logging(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
	})

	r.Route("/api/cards", func(r chi.Router) {
		r.Use(Authenticate(signKey))
		r.Use(RequireRole(model.RoleUser))

		r.Get("/", h.handleListOwnCards)
		r.Get("/{cardID}/balance", h.handleBalance)
		r.Post("/{cardID}/block-request", h.handleRequestBlock)
		r.Post("/transfer", h.handleTransfer)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(Authenticate(signKey))
		r.Use(RequireRole(model.RoleAdmin))

		r.Post("/cards", h.handleCreateCard)
		r.Get("/cards", h.handleListAllCards)
		r.Patch("/cards/{cardID}/block", h.handleBlockCard)
		r.Patch("/cards/{cardID}/activate", h.handleActivateCard)
		r.Delete("/cards/{cardID}", h.handleDeleteCard)

		r.Get("/users", h.handleListUsers)
		r.Get("/users/{userID}", h.handleGetUser)
		r.Get("/users/username/{username}", h.handleGetUserByUsername)
		r.Patch("/users/{userID}", h.handleUpdateUser)
		r.Delete("/users/{userID}", h.handleDeleteUser)
	})

	return r
}
