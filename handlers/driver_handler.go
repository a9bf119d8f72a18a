package handlers

import (
	"net/http"

	"github.com/Dosada05/grid-league/services"
)

type DriverHandler struct {
	driverService    services.DriverService
	standingsService services.StandingsService
}

func NewDriverHandler(ds services.DriverService, ss services.StandingsService) *DriverHandler {
	return &DriverHandler{
		driverService:    ds,
		standingsService: ss,
	}
}

// ListDrivers godoc
// @Summary Список пилотов
// @Tags drivers
// @Produce json
// @Param include_retired query bool false "Включать ушедших пилотов"
// @Success 200 {object} map[string]interface{}
// @Router /api/drivers [get]
func (h *DriverHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	includeRetired, err := queryBool(r, "include_retired")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	drivers, err := h.driverService.ListDrivers(r.Context(), includeRetired)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"drivers": drivers})
}

func (h *DriverHandler) SearchDrivers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	drivers, err := h.driverService.SearchDrivers(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"drivers": drivers})
}

// GetDriver godoc
// @Summary Профиль пилота со статистикой активного сезона
// @Tags drivers
// @Produce json
// @Param driverID path int true "Driver ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "Пилот не найден"
// @Router /api/drivers/{driverID} [get]
func (h *DriverHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	driverID, err := getIDFromURL(r, "driverID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	detail, err := h.standingsService.GetDriverStatistics(r.Context(), driverID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"driver": detail})
}

func (h *DriverHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var input services.CreateDriverInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	driver, err := h.driverService.CreateDriver(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"driver": driver})
}

func (h *DriverHandler) UpdateDriver(w http.ResponseWriter, r *http.Request) {
	driverID, err := getIDFromURL(r, "driverID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateDriverInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	driver, err := h.driverService.UpdateDriver(r.Context(), driverID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"driver": driver})
}

func (h *DriverHandler) RetireDriver(w http.ResponseWriter, r *http.Request) {
	driverID, err := getIDFromURL(r, "driverID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.driverService.RetireDriver(r.Context(), driverID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadLivery godoc
// @Summary Загрузить ливрею пилота
// @Tags drivers
// @Accept multipart/form-data
// @Produce json
// @Param driverID path int true "Driver ID"
// @Param livery formData file true "Изображение (jpeg, png, gif, webp)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Неверный файл"
// @Failure 503 {object} map[string]string "Хранилище не настроено"
// @Security BearerAuth
// @Router /api/admin/drivers/{driverID}/livery [post]
func (h *DriverHandler) UploadLivery(w http.ResponseWriter, r *http.Request) {
	driverID, err := getIDFromURL(r, "driverID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	file, contentType, err := readUpload(w, r, "livery")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	driver, err := h.driverService.UploadLivery(r.Context(), driverID, file, contentType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"driver": driver})
}
