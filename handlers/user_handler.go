package handlers

import (
	"net/http"

	"github.com/letsplay/tournament-hub/services"
)

type UserHandler struct {
	*Responder
	authService services.AuthService
}

func NewUserHandler(responder *Responder, authService services.AuthService) *UserHandler {
	return &UserHandler{Responder: responder, authService: authService}
}

// GetUserData godoc
// @Summary Current player account
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /user/data [get]
func (h *UserHandler) GetUserData(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if identity.IsOrganizer() {
		h.Error(w, r, services.ErrForbidden)
		return
	}

	user, err := h.authService.GetUser(r.Context(), identity.ID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"userData": jsonResponse{
		"name":              user.Name,
		"email":             user.Email,
		"isAccountVerified": user.IsVerified,
		"isAdmin":           user.IsAdmin,
	}})
}
