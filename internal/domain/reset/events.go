package reset

import (
	"github.com/a2zsellr/backend/internal/domain/shared"
)

const (
	AggregateTypeResetHistory = "ResetHistory"
	EventTypeContentReset     = "ProfileContentReset"
)

// ContentResetEvent is published after a profile's content was wiped.
type ContentResetEvent struct {
	shared.BaseDomainEvent
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	ResetType ResetType     `json:"reset_type"`
	Deleted   ContentCounts `json:"deleted"`
}

// NewContentResetEvent creates a ContentResetEvent for h.
func NewContentResetEvent(h *History, email, name string) *ContentResetEvent {
	return &ContentResetEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContentReset, AggregateTypeResetHistory, h.ID, h.ProfileID),
		Email:           email,
		Name:            name,
		ResetType:       h.Type,
		Deleted:         h.Deleted,
	}
}
