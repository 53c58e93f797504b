package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/middleware"
	"github.com/vaughan-dsouza/usersapi/internal/models"
	"github.com/vaughan-dsouza/usersapi/internal/service"
	"github.com/vaughan-dsouza/usersapi/internal/utils"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Auth        *service.AuthService
	Users       *service.UserService
	Verifier    *auth.Verifier
	Revocations auth.RevocationList
	DB          Pinger
	Logger      logging.Logger
}

type Handler struct {
	Auth  *AuthHandler
	Users *UserHandler

	deps Deps
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:  NewAuthHandler(d.Auth, d.Logger),
		Users: NewUserHandler(d.Users, d.Logger),
		deps:  d,
	}
}

// Routes wires every endpoint behind its guards.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(h.deps.Logger))
	r.Use(chimw.Recoverer)

	protect := middleware.AuthMiddleware(h.deps.Verifier, h.deps.Revocations, h.deps.Logger)
	adminOnly := middleware.RequireRole(models.RoleAdmin, h.deps.Logger)

	// Public
	r.Get("/", h.welcome)
	r.Get("/healthz", h.health)
	r.Post("/api/auth/register", h.Auth.Register)
	r.Post("/api/auth/login", h.Auth.Login)

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(protect)

		r.Get("/api/auth/me", h.Auth.Me)
		r.Post("/api/auth/logout", h.Auth.Logout)

		r.Get("/api/user/{id}", h.Users.GetUserByID)
		r.Put("/api/user/update", h.Users.UpdateSelf)
		r.Delete("/api/user/delete", h.Users.DeleteSelf)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)

			r.Get("/api/user/all", h.Users.GetUsers)
			r.Delete("/api/user/{id}", h.Users.DeleteUserByID)
			r.Put("/api/user/{id}/role", h.Users.UpdateRole)
		})
	})

	return r
}

func (h *Handler) welcome(w http.ResponseWriter, r *http.Request) {
	utils.JSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to Backend API",
		"status":  "Server is running successfully!",
		"version": "1.0.0",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.DB != nil {
		if err := h.deps.DB.PingContext(r.Context()); err != nil {
			h.deps.Logger.Error(r.Context(), "health check failed", "error", err)
			utils.JSONError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	utils.OK(w, http.StatusOK, "ok", nil)
}
