package api

import (
	"encoding/json"
	"io"
	"net/http"

	"SRTrack/internal/telegram"
	"SRTrack/utils"
)

func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("✅ SRTrack is alive"))
}

// HandleTelegramWebhook processes one update. Infrastructure failures answer
// 503 so Telegram redelivers; the update id makes the redelivery safe.
func (h *Handlers) HandleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if !utils.SecureCompare(r.Header.Get(webhookSecretHeader), h.cfg.WebhookSecret) {
		h.log.Warn("Webhook rejected, bad secret token", "remote", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	var update telegram.Update
	if err := json.Unmarshal(body, &update); err != nil || update.UpdateID == 0 {
		writeError(w, http.StatusBadRequest, "Invalid update format")
		return
	}

	if err := h.bot.HandleUpdate(r.Context(), update); err != nil {
		h.log.Error("Update failed, asking for redelivery", "update", update.UpdateID, "err", err)
		writeError(w, http.StatusServiceUnavailable, "Temporary failure")
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
