package handlers

import (
	"net/http"

	"github.com/vaughan-dsouza/usersapi/internal/apperrors"
	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/models"
	"github.com/vaughan-dsouza/usersapi/internal/service"
	"github.com/vaughan-dsouza/usersapi/internal/utils"
)

type AuthHandler struct {
	svc *service.AuthService
	log logging.Logger
}

func NewAuthHandler(svc *service.AuthService, log logging.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// authResp is what register and login hand back to the client.
type authResp struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expires_at"`
}

func newAuthResp(res *service.AuthResult) authResp {
	return authResp{
		ID:        res.User.ID,
		Name:      res.User.Name,
		Email:     res.User.Email,
		Role:      res.User.Role,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.Unix(),
	}
}

// -------------- REGISTER ----------------------

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	utils.OK(w, http.StatusCreated, "User registered successfully!", newAuthResp(res))
}

// -------------- LOGIN ------------------------

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	res, err := h.svc.Login(r.Context(), req)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	utils.OK(w, http.StatusOK, "Login successful!", newAuthResp(res))
}

// -------------- ME (protected) ----------------

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		utils.WriteError(w, r, h.log, apperrors.Authentication("not authorized", nil))
		return
	}
	utils.OK(w, http.StatusOK, "", id)
}

// -------------- LOGOUT (protected) -------------

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		utils.WriteError(w, r, h.log, apperrors.Authentication("not authorized", nil))
		return
	}

	if err := h.svc.Logout(r.Context(), claims); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
