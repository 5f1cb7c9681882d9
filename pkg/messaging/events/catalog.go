package events

import (
	"encoding/json"
	"time"
)

// CatalogChangedEvent announces that a console workspace changed the remote catalog
// and that its product list was asked to refresh.
type CatalogChangedEvent struct {
	WorkspaceID string    `json:"workspace_id"`
	Version     uint64    `json:"version"`
	ChangedAt   time.Time `json:"changed_at"`

	subject string
}

// NewCatalogChangedEvent creates an event published on the given subject.
func NewCatalogChangedEvent(subject, workspaceID string, version uint64, at time.Time) CatalogChangedEvent {
	return CatalogChangedEvent{
		WorkspaceID: workspaceID,
		Version:     version,
		ChangedAt:   at.UTC(),
		subject:     subject,
	}
}

func (e CatalogChangedEvent) Subject() string {
	return e.subject
}

func (e CatalogChangedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
