// Package docs отдаёт OpenAPI-описание API для swagger UI.
package docs

import (
	_ "embed"
	"net/http"
)

//go:embed swagger.json
var swaggerJSON []byte

// Handler отдаёт swagger.json по адресу, на который смотрит httpSwagger.URL.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(swaggerJSON)
}
