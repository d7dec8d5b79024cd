package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"relmap/domain/events"
)

// Source is the EventBridge source of every published event
const Source = "relmap.sync"

// EventBridge limits PutEvents to 10 entries
const batchSize = 10

// API is the subset of the EventBridge client used by the publisher
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher mirrors persisted changes to an EventBridge bus.
// Details carry identifiers only, never person contents.
type Publisher struct {
	client       API
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
}

// Detail is the JSON payload of an entry
type Detail struct {
	OwnerID   string   `json:"owner_id"`
	EventType string   `json:"event_type"`
	Version   int      `json:"version"`
	Subjects  []string `json:"subjects,omitempty"`
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends multiple events to EventBridge
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishBatch(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	for _, event := range domainEvents {
		payload, err := json.Marshal(Detail{
			OwnerID:   event.GetAggregateID(),
			EventType: event.GetEventType(),
			Version:   event.GetVersion(),
			Subjects:  Subjects(event),
		})
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(payload)),
			Time:         aws.Time(event.GetTimestamp()),
		})
	}

	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(domainEvents) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", domainEvents[i].GetEventType()),
					zap.String("errorCode", *entry.ErrorCode),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}

// Subjects lists the ids an event is about
func Subjects(event events.DomainEvent) []string {
	switch e := event.(type) {
	case events.PersonAdded:
		return []string{e.Person.ID()}
	case events.PersonUpdated:
		return []string{e.Person.ID()}
	case events.PersonMoved:
		return []string{e.PersonID}
	case events.PersonDeleted:
		return append([]string{e.PersonID}, e.RelationIDs...)
	case events.RelationAdded:
		return []string{e.Relation.ID()}
	case events.RelationUpdated:
		return []string{e.RelationID}
	case events.RelationDeleted:
		return []string{e.RelationID}
	default:
		return nil
	}
}
