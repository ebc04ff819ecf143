package api

const (
	webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	WebhookPath         = "/telegram/webhook"
	maxUpdateBytes      = 1 << 20
	clockLayout         = "15:04:05"
)
