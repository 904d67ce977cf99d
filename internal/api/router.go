package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// NewRouter registers the API handlers. Every /api route requires the shared bearer secret.
func NewRouter(h *Handlers, secret string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /api/cron/check-prices", bearerAuth(secret, http.HandlerFunc(h.CheckPrices)))
	mux.Handle("POST /api/listings/{id}/check", bearerAuth(secret, http.HandlerFunc(h.CheckListing)))
	mux.Handle("GET /api/health", bearerAuth(secret, http.HandlerFunc(h.Health)))
	mux.HandleFunc("GET /healthz", h.Healthz)

	return mux
}

// bearerAuth rejects the request before the handler runs. An empty secret locks the route.
func bearerAuth(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "endpoint disabled: no secret configured"})
			return
		}
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pricewatch"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing Authorization header"})
			return
		}
		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pricewatch", error="invalid_token"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
