package handlers

import (
	"net/http"

	"github.com/Dosada05/grid-league/services"
)

type SeasonHandler struct {
	seasonService services.SeasonService
	raceService   services.RaceService
}

func NewSeasonHandler(ss services.SeasonService, rs services.RaceService) *SeasonHandler {
	return &SeasonHandler{
		seasonService: ss,
		raceService:   rs,
	}
}

func (h *SeasonHandler) ListSeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.seasonService.ListSeasons(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"seasons": seasons})
}

func (h *SeasonHandler) CreateSeason(w http.ResponseWriter, r *http.Request) {
	var input services.SeasonInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	season, err := h.seasonService.CreateSeason(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"season": season})
}

// ActivateSeason godoc
// @Summary Сделать сезон активным
// @Tags seasons
// @Description Снимает флаг с прежнего сезона и пересобирает таблицу нового.
// @Produce json
// @Param seasonID path int true "Season ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Сезон не найден"
// @Security BearerAuth
// @Router /api/admin/seasons/{seasonID}/activate [post]
func (h *SeasonHandler) ActivateSeason(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	season, err := h.seasonService.ActivateSeason(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"season": season})
}

func (h *SeasonHandler) ListRaces(w http.ResponseWriter, r *http.Request) {
	seasonID, err := queryInt(r, "season_id", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	races, err := h.raceService.ListRaces(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"races": races})
}

func (h *SeasonHandler) GetRace(w http.ResponseWriter, r *http.Request) {
	raceID, err := getIDFromURL(r, "raceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	race, err := h.raceService.GetRace(r.Context(), raceID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"race": race})
}

func (h *SeasonHandler) CreateRace(w http.ResponseWriter, r *http.Request) {
	var input services.CreateRaceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	race, err := h.raceService.CreateRace(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"race": race})
}
