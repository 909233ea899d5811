package domain

// Webhook event types sent by the provider for creator search exports.
const (
	WebhookExportSuccess  = "CREATOR_SEARCH_EXPORT.SUCCESS"
	WebhookExportFailed   = "CREATOR_SEARCH_EXPORT.FAILED"
	WebhookExportProgress = "CREATOR_SEARCH_EXPORT.PROGRESS"
)

// WebhookEvent is the provider's callback body.
type WebhookEvent struct {
	EventType string         `json:"event_type"`
	Payload   WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	ExportID          string `json:"export_id"`
	Status            string `json:"status"`
	DownloadURL       string `json:"download_url,omitempty"`
	TotalProfiles     *int   `json:"total_profiles,omitempty"`
	ProcessedProfiles *int   `json:"processed_profiles,omitempty"`
	Error             string `json:"error,omitempty"`
}

// WebhookAction is what the receiver did with an event.
type WebhookAction string

const (
	WebhookActionEnqueued  WebhookAction = "enqueued"
	WebhookActionDuplicate WebhookAction = "duplicate"
	WebhookActionLogged    WebhookAction = "logged"
	WebhookActionIgnored   WebhookAction = "ignored"
)
