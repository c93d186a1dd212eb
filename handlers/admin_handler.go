package handlers

import (
	"net/http"

	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/services"
)

type AdminHandler struct {
	*Responder
	organizerService services.OrganizerService
	adminService     services.AdminService
}

func NewAdminHandler(responder *Responder, organizerService services.OrganizerService, adminService services.AdminService) *AdminHandler {
	return &AdminHandler{Responder: responder, organizerService: organizerService, adminService: adminService}
}

// ListOrganizers godoc
// @Summary List organizer accounts
// @Tags admin
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /admin/organizers [get]
func (h *AdminHandler) ListOrganizers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	organizers, err := h.organizerService.List(r.Context(), limit, offset)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"organizers": organizers})
}

// ListUsers godoc
// @Summary List player accounts
// @Tags admin
// @Produce json
// @Param search query string false "Name or email fragment"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} models.UserListResponse
// @Failure 403 {object} map[string]interface{}
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	filter := models.UserFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}

	res, err := h.adminService.ListUsers(r.Context(), filter)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"users": res.Users, "total_count": res.TotalCount, "limit": res.Limit, "offset": res.Offset})
}
