package ports

import (
	"context"
	"time"

	"relmap/domain/events"
)

// NotificationLevel is the severity of a user notification
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is a short user-facing message. It never carries raw technical payloads.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"-"`
	Level     NotificationLevel `json:"level"`
	Operation string            `json:"operation"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Notifier delivers notifications to a user
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Principal is the authenticated caller
type Principal struct {
	UserID string
	Email  string
}

// IdentityProvider resolves a bearer token into a principal
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// Table is one named sheet of a tabular document
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Workbook is a tabular document made of named tables
type Workbook struct {
	Tables []Table
}

// Table looks up a table by name
func (w *Workbook) Table(name string) (*Table, bool) {
	for i := range w.Tables {
		if w.Tables[i].Name == name {
			return &w.Tables[i], true
		}
	}
	return nil, false
}

// WorkbookCodec encodes and decodes tabular documents
type WorkbookCodec interface {
	Encode(workbook *Workbook) ([]byte, error)
	Decode(data []byte) (*Workbook, error)
	ContentType() string
	Extension() string
}

// Metrics records operational measurements
type Metrics interface {
	// ObserveRemoteCall records one call to the table service
	ObserveRemoteCall(operation string, duration time.Duration, err error)

	// AddQueueDepth moves the pending sync operation gauge
	AddQueueDepth(delta int)

	// SetActiveSessions reports the number of loaded sessions
	SetActiveSessions(n int)

	// ObserveRequest records one HTTP request
	ObserveRequest(method, route string, status int, duration time.Duration)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) ObserveRemoteCall(string, time.Duration, error)   {}
func (NoopMetrics) AddQueueDepth(int)                                {}
func (NoopMetrics) SetActiveSessions(int)                            {}
func (NoopMetrics) ObserveRequest(string, string, int, time.Duration) {}
