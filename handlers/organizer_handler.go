package handlers

import (
	"net/http"

	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/services"
)

type OrganizerHandler struct {
	*Responder
	cookies          *SessionCookies
	organizerService services.OrganizerService
}

func NewOrganizerHandler(responder *Responder, cookies *SessionCookies, organizerService services.OrganizerService) *OrganizerHandler {
	return &OrganizerHandler{Responder: responder, cookies: cookies, organizerService: organizerService}
}

// Register godoc
// @Summary Register an organizer account
// @Description Multipart form with identity documents.
// @Tags organizers
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Name"
// @Param email formData string true "Email"
// @Param password formData string true "Password"
// @Param contactNumber formData string true "Contact number"
// @Param documentImage formData file true "Identity document"
// @Param holdingDocumentImage formData file true "Selfie holding the document"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /organizers/register [post]
func (h *OrganizerHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		h.Error(w, r, err)
		return
	}
	document, docCloser, err := formFile(r, "documentImage")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	holding, holdingCloser, err := formFile(r, "holdingDocumentImage")
	if err != nil {
		closeAll(docCloser)
		h.Error(w, r, err)
		return
	}
	defer closeAll(docCloser, holdingCloser)

	organizer, err := h.organizerService.Register(r.Context(), services.OrganizerRegisterInput{
		Name:            r.FormValue("name"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		ContactNumber:   r.FormValue("contactNumber"),
		DocumentImage:   document,
		HoldingDocument: holding,
	})
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if err := h.cookies.set(w, organizer.ID, models.PrincipalOrganizer); err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusCreated, jsonResponse{"organizer": organizer})
}

// Login godoc
// @Summary Log in as an organizer
// @Tags organizers
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "Credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /organizers/login [post]
func (h *OrganizerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	organizer, err := h.organizerService.Login(r.Context(), input)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if err := h.cookies.set(w, organizer.ID, models.PrincipalOrganizer); err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"organizer": organizer})
}

// GetProfile godoc
// @Summary Current organizer profile
// @Tags organizers
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /organizers/profile [get]
func (h *OrganizerHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	organizer, err := h.organizerService.GetProfile(r.Context(), identity.ID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"organizer": organizer})
}

// UpdateProfile godoc
// @Summary Update the organizer profile
// @Description Multipart form; documents are replaced only when sent.
// @Tags organizers
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /organizers/profile [put]
func (h *OrganizerHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if err := parseMultipart(w, r); err != nil {
		h.Error(w, r, err)
		return
	}
	document, docCloser, err := formFile(r, "documentImage")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	holding, holdingCloser, err := formFile(r, "holdingDocumentImage")
	if err != nil {
		closeAll(docCloser)
		h.Error(w, r, err)
		return
	}
	defer closeAll(docCloser, holdingCloser)

	input := services.OrganizerUpdateInput{DocumentImage: document, HoldingDocument: holding}
	if values, ok := r.MultipartForm.Value["name"]; ok && len(values) > 0 {
		input.Name = &values[0]
	}
	if values, ok := r.MultipartForm.Value["contactNumber"]; ok && len(values) > 0 {
		input.ContactNumber = &values[0]
	}

	organizer, err := h.organizerService.UpdateProfile(r.Context(), identity.ID, input)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"organizer": organizer})
}
