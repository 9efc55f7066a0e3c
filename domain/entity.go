package domain

import (
	"time"
)

// Entity is one persisted content record within a domain. The sync core only
// understands ID, the view counter and the two timestamps; everything else
// (title, body, status, ...) travels opaquely in Fields.
type Entity struct {
	ID        string         `json:"id"`
	Views     int64          `json:"views,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Touch refreshes UpdatedAt and backfills CreatedAt on first persist.
func (e *Entity) Touch() {
	if e == nil {
		return
	}
	e.UpdatedAt = time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = e.UpdatedAt
	}
}

// StringField returns the named field when it holds a string, else "".
func (e *Entity) StringField(name string) string {
	if e == nil || e.Fields == nil {
		return ""
	}
	if v, ok := e.Fields[name].(string); ok {
		return v
	}
	return ""
}

// SortKey returns the value entities are ordered by for the given field,
// falling back to CreatedAt when the field is absent. Date fields are stored
// as ISO strings, so lexicographic comparison matches chronological order.
func (e *Entity) SortKey(field string) string {
	if v := e.StringField(field); v != "" {
		return v
	}
	return e.CreatedAt.UTC().Format(time.RFC3339Nano)
}
