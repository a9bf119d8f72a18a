package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/grid-league/middleware"
	"github.com/Dosada05/grid-league/services"
	"github.com/go-chi/chi/v5"
)

type StandingsHandler struct {
	standingsService services.StandingsService
	exportService    services.ExportService
}

func NewStandingsHandler(ss services.StandingsService, es services.ExportService) *StandingsHandler {
	return &StandingsHandler{
		standingsService: ss,
		exportService:    es,
	}
}

type submitResultsRequest struct {
	Results []services.ResultInput `json:"results"`
}

// GetStandings godoc
// @Summary Личный зачёт сезона
// @Tags standings
// @Produce json
// @Param season_id query int false "Season ID (по умолчанию активный сезон)"
// @Success 200 {object} map[string]interface{} "Таблица"
// @Failure 404 {object} map[string]string "Сезон не найден / нет активного сезона"
// @Router /api/standings [get]
func (h *StandingsHandler) GetStandings(w http.ResponseWriter, r *http.Request) {
	seasonID, err := queryInt(r, "season_id", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.standingsService.GetStandings(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, jsonResponse{
		"season_id": view.Season.ID,
		"season":    view.Season,
		"standings": view.Standings,
	})
}

func (h *StandingsHandler) GetTeamStandings(w http.ResponseWriter, r *http.Request) {
	table, err := h.standingsService.GetTeamStandings(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"standings": table})
}

// SubmitRaceResults godoc
// @Summary Загрузить результаты гонки
// @Tags standings
// @Description Заменяет результаты гонки целиком. Повторная отправка того же набора ничего не меняет.
// @Accept json
// @Produce json
// @Param raceID path int true "Race ID"
// @Success 200 {object} map[string]interface{} "Начисленные очки и новая таблица"
// @Failure 404 {object} map[string]string "Гонка не найдена"
// @Failure 409 {object} map[string]string "Гонка не из активного сезона / таблица пересобирается"
// @Failure 422 {object} map[string]interface{} "Ошибка валидации результатов"
// @Security BearerAuth
// @Router /api/admin/races/{raceID}/results [put]
func (h *StandingsHandler) SubmitRaceResults(w http.ResponseWriter, r *http.Request) {
	raceID, err := getIDFromURL(r, "raceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input submitResultsRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.standingsService.SubmitRaceResults(r.Context(), raceID, input.Results)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if adminID, err := middleware.GetUserIDFromContext(r.Context()); err == nil {
		slog.InfoContext(r.Context(), "race results submitted",
			slog.Int("race_id", raceID), slog.Int("admin_id", adminID), slog.Bool("replaced", result.Replaced))
	}

	respond(w, r, http.StatusOK, jsonResponse{"submission": result})
}

func (h *StandingsHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.standingsService.GetLeaderboard(r.Context(), chi.URLParam(r, "metric"), limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"leaderboard": view})
}

func (h *StandingsHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	view, err := h.standingsService.GetOverview(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"overview": view})
}

func (h *StandingsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.standingsService.Reload(r.Context()); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"message": "standings reloaded"})
}

func (h *StandingsHandler) ExportStandings(w http.ResponseWriter, r *http.Request) {
	seasonID, err := queryInt(r, "season_id", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	export, err := h.exportService.ExportStandings(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"export": export})
}
