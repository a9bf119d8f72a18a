package middleware

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"github.com/Dosada05/grid-league/utils"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth проверяет ключ бота против bcrypt-хешей из конфигурации.
// Уже проверенные ключи запоминаются по sha256, чтобы не гонять bcrypt на каждый запрос.
type APIKeyAuth struct {
	hashes   []string
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]bool
}

func NewAPIKeyAuth(hashes []string) *APIKeyAuth {
	return &APIKeyAuth{
		hashes:   hashes,
		verified: make(map[[sha256.Size]byte]bool),
	}
}

// Enabled сообщает, настроены ли ключи. Без ключей чтение публичное.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.hashes) > 0
}

func (a *APIKeyAuth) Valid(key string) bool {
	if key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))

	a.mu.RLock()
	ok := a.verified[digest]
	a.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range a.hashes {
		if utils.CheckAPIKeyHash(key, h) {
			a.mu.Lock()
			a.verified[digest] = true
			a.mu.Unlock()
			return true
		}
	}
	return false
}

// Middleware принимает ключ из X-API-Key или "Authorization: Bearer <key>".
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := strings.TrimSpace(r.Header.Get(apiKeyHeader))
		if key == "" {
			key, _ = bearerToken(r)
		}
		if key == "" {
			writeError(w, http.StatusUnauthorized, "api key required")
			return
		}
		if !a.Valid(key) {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
