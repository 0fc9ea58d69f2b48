package messaging

import "github.com/google/uuid"

// ProcessResult summarizes one pass over the email queue
type ProcessResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// WelcomeEmailRequest is the body of POST /api/send-welcome-email
type WelcomeEmailRequest struct {
	Email string `json:"email" binding:"required,email,max=320"`
	Name  string `json:"name" binding:"required,max=200"`
}

// ListingActivatedEmailRequest is the body of
// POST /api/send-listing-activated-email
type ListingActivatedEmailRequest struct {
	Email        string `json:"email" binding:"required,email,max=320"`
	Name         string `json:"name" binding:"required,max=200"`
	ListingTitle string `json:"listingTitle" binding:"required,max=300"`
	ListingURL   string `json:"listingUrl" binding:"omitempty,url"`
}

// SendResult reports what happened to a transactional email. Queued is
// true when the immediate send failed and the queue will retry it.
type SendResult struct {
	Success   bool      `json:"success"`
	Queued    bool      `json:"queued"`
	EmailID   uuid.UUID `json:"emailId"`
	Provider  string    `json:"provider,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
}

// QueueStats counts queue rows per status
type QueueStats struct {
	Pending int64 `json:"pending"`
	Sending int64 `json:"sending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}
