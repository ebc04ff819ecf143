package api

import (
	"net/http"

	"SRTrack/utils"
)

// RequireBearer rejects requests whose Authorization bearer token does not
// match secret. An empty secret rejects everything.
func (h *Handlers) RequireBearer(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !utils.SecureCompare(utils.BearerToken(r.Header.Get("Authorization")), secret) {
				h.log.Warn("Unauthorized request", "path", r.URL.Path, "remote", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handlers) RequireCronSecret() func(http.Handler) http.Handler {
	return h.RequireBearer(h.cfg.CronSecret)
}

func (h *Handlers) RequireAPIToken() func(http.Handler) http.Handler {
	return h.RequireBearer(h.cfg.APIToken)
}
