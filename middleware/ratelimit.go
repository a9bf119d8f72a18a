package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit ограничивает число запросов с одного IP за окно. IP берётся из
// RemoteAddr, поэтому за прокси перед ним нужен chi middleware.RealIP.
// Возвращённый middleware держит общий счётчик для всех групп, где он подключён.
// requests <= 0 отключает ограничение.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
		}),
	)
}
