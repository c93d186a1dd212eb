package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/services"
)

type ApplicantHandler struct {
	*Responder
	registrationService services.RegistrationService
}

func NewApplicantHandler(responder *Responder, registrationService services.RegistrationService) *ApplicantHandler {
	return &ApplicantHandler{Responder: responder, registrationService: registrationService}
}

// SubmitApplication godoc
// @Summary Apply to a tournament as a team
// @Description Multipart form; members is a JSON array of {name, email, user_id, game_handle}.
// @Tags applicants
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Tournament ID"
// @Param teamName formData string true "Team name"
// @Param name formData string true "Captain name"
// @Param email formData string true "Captain email"
// @Param phone formData string true "Captain phone"
// @Param esewaNumber formData string true "eSewa number"
// @Param esewaName formData string true "eSewa account name"
// @Param members formData string false "Team members (JSON array)"
// @Param paymentScreenshot formData file true "Payment proof"
// @Success 201 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Already applied or tournament full"
// @Failure 423 {object} map[string]interface{} "Registration closed"
// @Router /tournaments/{id}/applicants [post]
func (h *ApplicantHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	identity, tournamentID, err := h.actorAndTournament(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if err := parseMultipart(w, r); err != nil {
		h.Error(w, r, err)
		return
	}
	proof, proofCloser, err := formFile(r, "paymentScreenshot")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	defer closeAll(proofCloser)

	input := services.ApplicationInput{
		TeamName:          r.FormValue("teamName"),
		CaptainName:       r.FormValue("name"),
		CaptainEmail:      r.FormValue("email"),
		CaptainPhone:      r.FormValue("phone"),
		EsewaNumber:       r.FormValue("esewaNumber"),
		EsewaName:         r.FormValue("esewaName"),
		PaymentScreenshot: proof,
	}
	if raw := r.FormValue("members"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input.Members); err != nil {
			h.Error(w, r, badRequest("members must be a JSON array"))
			return
		}
	}

	applicant, err := h.registrationService.SubmitApplication(r.Context(), tournamentID, identity, input)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusCreated, jsonResponse{"applicant": applicant})
}

// ListApplicants godoc
// @Summary List applications
// @Tags applicants
// @Produce json
// @Param id path string true "Tournament ID"
// @Param status query string false "Pending, Approved or Rejected"
// @Param search query string false "Team, captain name or email"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{id}/applicants [get]
func (h *ApplicantHandler) ListApplicants(w http.ResponseWriter, r *http.Request) {
	identity, tournamentID, err := h.actorAndTournament(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	filter := models.ApplicantFilter{Search: r.URL.Query().Get("search"), Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.ApplicantStatus(v)
		filter.Status = &status
	}

	applicants, err := h.registrationService.ListApplicants(r.Context(), tournamentID, filter, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"applicants": applicants})
}

// ExportApplicants godoc
// @Summary Download applications as XLSX
// @Tags applicants
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Tournament ID"
// @Success 200 {file} file
// @Router /tournaments/{id}/applicants/export [get]
func (h *ApplicantHandler) ExportApplicants(w http.ResponseWriter, r *http.Request) {
	identity, tournamentID, err := h.actorAndTournament(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	export, err := h.registrationService.ExportApplicants(r.Context(), tournamentID, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

// GetApplicant godoc
// @Summary Application details
// @Tags applicants
// @Produce json
// @Param id path string true "Tournament ID"
// @Param applicantID path string true "Applicant ID"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{id}/applicants/{applicantID} [get]
func (h *ApplicantHandler) GetApplicant(w http.ResponseWriter, r *http.Request) {
	identity, tournamentID, applicantID, err := h.applicantParams(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	applicant, err := h.registrationService.GetApplicant(r.Context(), tournamentID, applicantID, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"applicant": applicant})
}

// UpdateApplicantStatus godoc
// @Summary Approve or reject an application
// @Tags applicants
// @Accept json
// @Produce json
// @Param id path string true "Tournament ID"
// @Param applicantID path string true "Applicant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Tournament full or invalid transition"
// @Router /tournaments/{id}/applicants/{applicantID}/status [patch]
func (h *ApplicantHandler) UpdateApplicantStatus(w http.ResponseWriter, r *http.Request) {
	identity, tournamentID, applicantID, err := h.applicantParams(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var input struct {
		Status models.ApplicantStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	applicant, err := h.registrationService.UpdateApplicantStatus(r.Context(), tournamentID, applicantID, input.Status, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"applicant": applicant})
}

// SetPaymentVerified godoc
// @Summary Mark the payment proof as checked
// @Tags applicants
// @Accept json
// @Produce json
// @Param id path string true "Tournament ID"
// @Param applicantID path string true "Applicant ID"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{id}/applicants/{applicantID}/payment [patch]
func (h *ApplicantHandler) SetPaymentVerified(w http.ResponseWriter, r *http.Request) {
	identity, tournamentID, applicantID, err := h.applicantParams(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var input struct {
		Verified bool `json:"verified"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	applicant, err := h.registrationService.SetPaymentVerified(r.Context(), tournamentID, applicantID, input.Verified, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"applicant": applicant})
}

// ListTeams godoc
// @Summary Approved teams of a tournament
// @Description Visible to members of approved teams and admins.
// @Tags applicants
// @Produce json
// @Param id path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{id}/teams [get]
func (h *ApplicantHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := uuidParam(r, "id")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	teams, err := h.registrationService.ListApprovedTeams(r.Context(), tournamentID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"teams": teams})
}

func (h *ApplicantHandler) actorAndTournament(r *http.Request) (*models.Identity, uuid.UUID, error) {
	identity, err := currentIdentity(r)
	if err != nil {
		return nil, uuid.Nil, err
	}
	tournamentID, err := uuidParam(r, "id")
	if err != nil {
		return nil, uuid.Nil, err
	}
	return identity, tournamentID, nil
}

func (h *ApplicantHandler) applicantParams(r *http.Request) (*models.Identity, uuid.UUID, uuid.UUID, error) {
	identity, tournamentID, err := h.actorAndTournament(r)
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, err
	}
	applicantID, err := uuidParam(r, "applicantID")
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, err
	}
	return identity, tournamentID, applicantID, nil
}
