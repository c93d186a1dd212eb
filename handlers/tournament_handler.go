package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/letsplay/tournament-hub/models"
	"github.com/letsplay/tournament-hub/services"
)

type TournamentHandler struct {
	*Responder
	tournamentService services.TournamentService
}

func NewTournamentHandler(responder *Responder, tournamentService services.TournamentService) *TournamentHandler {
	return &TournamentHandler{Responder: responder, tournamentService: tournamentService}
}

// ListTournaments godoc
// @Summary List tournaments
// @Tags tournaments
// @Produce json
// @Param game query string false "Game"
// @Param status query string false "Registration status (open, closed, full)"
// @Param organizer query string false "Organizer user ID"
// @Param search query string false "Title search"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments [get]
func (h *TournamentHandler) ListTournaments(w http.ResponseWriter, r *http.Request) {
	filter, err := tournamentFilter(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	tournaments, err := h.tournamentService.ListTournaments(r.Context(), filter)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"tournaments": tournaments})
}

func tournamentFilter(r *http.Request) (models.TournamentFilter, error) {
	var filter models.TournamentFilter
	limit, offset, err := pagination(r)
	if err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset = limit, offset

	q := r.URL.Query()
	if v := q.Get("game"); v != "" {
		game := models.Game(v)
		filter.Game = &game
	}
	if v := q.Get("status"); v != "" {
		status := models.RegistrationStatus(v)
		filter.Status = &status
	}
	if v := q.Get("organizer"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, badRequest("invalid organizer id")
		}
		filter.OrganizerID = &id
	}
	filter.Search = q.Get("search")
	return filter, nil
}

// GetTournament godoc
// @Summary Tournament details
// @Tags tournaments
// @Produce json
// @Param id path string true "Tournament ID or slug"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /tournaments/{id} [get]
func (h *TournamentHandler) GetTournament(w http.ResponseWriter, r *http.Request) {
	details, err := h.tournamentService.GetTournament(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"tournament": details})
}

// CreateTournament godoc
// @Summary Create a tournament
// @Tags tournaments
// @Accept json
// @Produce json
// @Param body body services.TournamentInput true "Tournament"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /tournaments [post]
func (h *TournamentHandler) CreateTournament(w http.ResponseWriter, r *http.Request) {
	identity, err := currentIdentity(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var input services.TournamentInput
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), identity, input)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusCreated, jsonResponse{"tournament": tournament})
}

// EditTournament godoc
// @Summary Edit a tournament
// @Description Only the fields present in the body change.
// @Tags tournaments
// @Accept json
// @Produce json
// @Param id path string true "Tournament ID"
// @Param body body models.TournamentUpdate true "Changes"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "Concurrent edit"
// @Router /tournaments/{id} [patch]
func (h *TournamentHandler) EditTournament(w http.ResponseWriter, r *http.Request) {
	identity, id, err := h.actorAndID(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var patch models.TournamentUpdate
	if err := readJSON(w, r, &patch); err != nil {
		h.Error(w, r, err)
		return
	}

	tournament, err := h.tournamentService.EditTournament(r.Context(), id, patch, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}

// SetRegistrationStatus godoc
// @Summary Open or close registration manually
// @Tags tournaments
// @Accept json
// @Produce json
// @Param id path string true "Tournament ID"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{id}/registration [patch]
func (h *TournamentHandler) SetRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	identity, id, err := h.actorAndID(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var input struct {
		Status models.RegistrationStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	tournament, err := h.tournamentService.SetRegistrationStatus(r.Context(), id, input.Status, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}

// AddOrganizer godoc
// @Summary Add a co-organizer or change their role
// @Tags tournaments
// @Accept json
// @Produce json
// @Param id path string true "Tournament ID"
// @Param body body models.TournamentOrganizer true "Organizer"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{id}/organizers [post]
func (h *TournamentHandler) AddOrganizer(w http.ResponseWriter, r *http.Request) {
	identity, id, err := h.actorAndID(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var input models.TournamentOrganizer
	if err := readJSON(w, r, &input); err != nil {
		h.Error(w, r, err)
		return
	}

	tournament, err := h.tournamentService.AddOrganizer(r.Context(), id, input, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}

// RemoveOrganizer godoc
// @Summary Remove a co-organizer
// @Tags tournaments
// @Produce json
// @Param id path string true "Tournament ID"
// @Param userID path string true "Organizer user ID"
// @Success 200 {object} map[string]interface{}
// @Router /tournaments/{id}/organizers/{userID} [delete]
func (h *TournamentHandler) RemoveOrganizer(w http.ResponseWriter, r *http.Request) {
	identity, id, err := h.actorAndID(r)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		h.Error(w, r, err)
		return
	}

	tournament, err := h.tournamentService.RemoveOrganizer(r.Context(), id, userID, identity)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.success(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}

func (h *TournamentHandler) actorAndID(r *http.Request) (*models.Identity, uuid.UUID, error) {
	identity, err := currentIdentity(r)
	if err != nil {
		return nil, uuid.Nil, err
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		return nil, uuid.Nil, err
	}
	return identity, id, nil
}
