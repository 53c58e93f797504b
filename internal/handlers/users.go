package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vaughan-dsouza/usersapi/internal/apperrors"
	"github.com/vaughan-dsouza/usersapi/internal/auth"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
	"github.com/vaughan-dsouza/usersapi/internal/models"
	"github.com/vaughan-dsouza/usersapi/internal/service"
	"github.com/vaughan-dsouza/usersapi/internal/utils"
)

type UserHandler struct {
	svc *service.UserService
	log logging.Logger
}

func NewUserHandler(svc *service.UserService, log logging.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: log}
}

// ---------------------- LIST (admin) ----------------------

func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	f, err := service.ParseUserFilter(r.URL.Query())
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	users, err := h.svc.List(r.Context(), f)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	msg := "All users fetched successfully"
	filters := map[string]string{}
	var applied []string
	for key, v := range map[string]string{"name": f.Name, "email": f.Email, "role": string(f.Role)} {
		if v != "" {
			filters[key] = v
			applied = append(applied, key)
		}
	}
	if len(applied) > 0 {
		sort.Strings(applied)
		msg = "Users filtered by: " + strings.Join(applied, ", ")
	}

	utils.OKList(w, msg, users, filters)
}

// ---------------------- GET ONE ----------------------

func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	utils.OK(w, http.StatusOK, "User fetched successfully", u)
}

// ---------------------- UPDATE SELF ----------------------

func (h *UserHandler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	who, ok := h.identity(w, r)
	if !ok {
		return
	}

	var body service.UpdateInput
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		return
	}

	u, err := h.svc.UpdateSelf(r.Context(), who, body)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	utils.OK(w, http.StatusOK, "User updated successfully", u)
}

// ---------------------- DELETE SELF ----------------------

func (h *UserHandler) DeleteSelf(w http.ResponseWriter, r *http.Request) {
	who, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteSelf(r.Context(), who); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	utils.OK(w, http.StatusOK, "User deleted successfully", nil)
}

// ---------------------- DELETE OTHER (admin) ----------------------

func (h *UserHandler) DeleteUserByID(w http.ResponseWriter, r *http.Request) {
	who, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteByID(r.Context(), who, id); err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	utils.OK(w, http.StatusOK, "User deleted successfully", nil)
}

// ---------------------- ROLE (admin) ----------------------

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	who, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body struct {
		Role models.Role `json:"role"`
	}
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		return
	}

	u, err := h.svc.UpdateRole(r.Context(), who, id, body.Role)
	if err != nil {
		utils.WriteError(w, r, h.log, err)
		return
	}

	utils.OK(w, http.StatusOK, "User role updated successfully", u)
}

func (h *UserHandler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		utils.WriteError(w, r, h.log, apperrors.Authentication("not authorized", nil))
	}
	return id, ok
}

func (h *UserHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, r, h.log, apperrors.Validation("Invalid user ID", map[string]string{"id": "must be a positive integer"}))
		return 0, false
	}
	return id, true
}
