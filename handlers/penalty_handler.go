package handlers

import (
	"net/http"

	"github.com/Dosada05/grid-league/middleware"
	"github.com/Dosada05/grid-league/repositories"
	"github.com/Dosada05/grid-league/services"
)

type PenaltyHandler struct {
	penaltyService services.PenaltyService
}

func NewPenaltyHandler(ps services.PenaltyService) *PenaltyHandler {
	return &PenaltyHandler{penaltyService: ps}
}

// ListPenalties godoc
// @Summary Список штрафов
// @Tags penalties
// @Produce json
// @Param driver_id query int false "Фильтр по пилоту"
// @Param race_id query int false "Фильтр по гонке"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/admin/penalties [get]
func (h *PenaltyHandler) ListPenalties(w http.ResponseWriter, r *http.Request) {
	driverID, err := queryInt(r, "driver_id", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	raceID, err := queryInt(r, "race_id", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	penalties, err := h.penaltyService.ListPenalties(r.Context(), repositories.PenaltyFilter{DriverID: driverID, RaceID: raceID})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"penalties": penalties})
}

// ApplyPenalty godoc
// @Summary Назначить штраф
// @Tags penalties
// @Description Штраф очками за гонку активного сезона сразу пересчитывает таблицу.
// @Accept json
// @Produce json
// @Param input body services.PenaltyInput true "Решение стюардов"
// @Success 201 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Пилот, гонка или результат не найдены"
// @Failure 409 {object} map[string]string "Гонка не из активного сезона"
// @Failure 422 {object} map[string]interface{} "Ошибка валидации"
// @Security BearerAuth
// @Router /api/admin/penalties [post]
func (h *PenaltyHandler) ApplyPenalty(w http.ResponseWriter, r *http.Request) {
	var input services.PenaltyInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Без пользователя в контексте штраф сохраняется без автора
	adminID, _ := middleware.GetUserIDFromContext(r.Context())

	result, err := h.penaltyService.ApplyPenalty(r.Context(), input, adminID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"penalty": result})
}

// RevokePenalty godoc
// @Summary Отменить штраф
// @Tags penalties
// @Produce json
// @Param penaltyID path int true "Penalty ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Штраф не найден"
// @Security BearerAuth
// @Router /api/admin/penalties/{penaltyID} [delete]
func (h *PenaltyHandler) RevokePenalty(w http.ResponseWriter, r *http.Request) {
	penaltyID, err := getIDFromURL(r, "penaltyID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.penaltyService.RevokePenalty(r.Context(), penaltyID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"penalty": result})
}
