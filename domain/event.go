package domain

import (
	"encoding/json"
	"time"
)

// EventType tags the concrete kind of a change notification.
type EventType string

const (
	EventEntityUpdated   EventType = "ENTITY_UPDATED"
	EventEntityDeleted   EventType = "ENTITY_DELETED"
	EventSettingsUpdated EventType = "SETTINGS_UPDATED"
	EventSyncCompleted   EventType = "SYNC_COMPLETED"
)

// Event is the change notification fanned out to sibling processes. Origin
// identifies the publishing service instance so receivers can drop their own
// echoes. Timestamp is unix milliseconds and exists for display and debugging
// only; it carries no ordering guarantee.
type Event struct {
	Type      EventType       `json:"type"`
	Domain    string          `json:"domain,omitempty"`
	Origin    string          `json:"origin,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func newEvent(t EventType, domain, origin string, data json.RawMessage) Event {
	return Event{
		Type:      t,
		Domain:    domain,
		Origin:    origin,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewEntityUpdated announces that an entity was inserted or replaced.
func NewEntityUpdated(domain, origin string, entity *Entity) Event {
	var data json.RawMessage
	if entity != nil {
		data, _ = json.Marshal(entity)
	}
	return newEvent(EventEntityUpdated, domain, origin, data)
}

// NewEntityDeleted announces that an entity was removed.
func NewEntityDeleted(domain, origin, id string) Event {
	data, _ := json.Marshal(map[string]string{"id": id})
	return newEvent(EventEntityDeleted, domain, origin, data)
}

// NewSettingsUpdated announces a change to a domain's settings aspect.
func NewSettingsUpdated(domain, origin string) Event {
	return newEvent(EventSettingsUpdated, domain, origin, nil)
}

// NewSyncCompleted announces that pending remote operations were drained.
func NewSyncCompleted(domain, origin string, drained int) Event {
	data, _ := json.Marshal(map[string]int{"drained": drained})
	return newEvent(EventSyncCompleted, domain, origin, data)
}
