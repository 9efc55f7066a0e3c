package pending

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	OperationUpsert = "upsert"
	OperationDelete = "delete"
)

// Item represents a remote-store operation that failed and should be retried
// once the remote becomes reachable again.
type Item struct {
	ID        string          `json:"id"`
	Domain    string          `json:"domain"`
	Operation string          `json:"operation"`
	EntityID  string          `json:"entity_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
