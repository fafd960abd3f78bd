package events

import (
	"context"
	"time"

	"dppapi/internal/model"
)

// StatusChanged describes one document status transition on an entity. It is
// published after the conditional write succeeds, so subscribers only ever
// see committed state.
type StatusChanged struct {
	EntityID   string               `json:"entity_id"`
	DocumentID string               `json:"document_id"`
	Type       model.DocumentType   `json:"type"`
	OldStatus  model.DocumentStatus `json:"old_status"`
	NewStatus  model.DocumentStatus `json:"new_status"`
	At         time.Time            `json:"at"`
}

// Publisher emits document lifecycle events for reviewer notification.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt StatusChanged) error
	Close()
}
