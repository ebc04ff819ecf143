package api

import (
	"net/http"
	"strings"
)

// HandleComplianceCheck runs the overdue sweep. Before the cutoff the sweep
// reports skipped without touching any session.
func (h *Handlers) HandleComplianceCheck(w http.ResponseWriter, r *http.Request) {
	report := h.sweeper.CheckAndMarkOverdue(r.Context())

	status := http.StatusOK
	if report.Err != nil && report.Processed == 0 {
		status = storeErrorStatus(report.Err)
	}
	writeJSON(w, status, complianceResponse{Success: status == http.StatusOK, Report: report})
}

func (h *Handlers) HandleSetWebhook(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimRight(h.cfg.WebhookURL, "/")
	if base == "" {
		writeError(w, http.StatusBadRequest, "WEBHOOK_URL is not configured")
		return
	}

	target := base + WebhookPath
	if err := h.webhooks.SetWebhook(r.Context(), target, h.cfg.WebhookSecret); err != nil {
		h.log.Error("Failed to set Telegram webhook", "url", target, "err", err)
		writeError(w, http.StatusBadGateway, "Failed to set webhook")
		return
	}

	h.log.Info("Telegram webhook registered", "url", target)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": target})
}
