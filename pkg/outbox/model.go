package outbox

import "time"

// Kind separates task families drained by independent relays: domain events
// published to kafka, and stock figures pushed to the external catalog.
type Kind string

const (
	KindEvent     Kind = "event"
	KindStockPush Kind = "stock_push"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

type Task struct {
	ID            int64
	Kind          Kind
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RetryCount    int
	LastError     *string
}
