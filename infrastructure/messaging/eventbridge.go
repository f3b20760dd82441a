package messaging

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"atlas-graph/application/ports"
	"atlas-graph/domain/events"
)

// eventBridgeBatchLimit is the PutEvents entry cap.
const eventBridgeBatchLimit = 10

// EventBridgePublisher pushes domain events onto an EventBridge bus so
// downstream consumers (notification push, per-vertical ingestors) react
// to graph mutations without polling.
type EventBridgePublisher struct {
	client  *eventbridge.Client
	busName string
	source  string
	logger  *zap.Logger
}

var _ ports.EventPublisher = (*EventBridgePublisher)(nil)

// NewEventBridgePublisher creates a publisher for the named bus
func NewEventBridgePublisher(client *eventbridge.Client, busName, source string, logger *zap.Logger) *EventBridgePublisher {
	return &EventBridgePublisher{
		client:  client,
		busName: busName,
		source:  source,
		logger:  logger,
	}
}

type eventEnvelope struct {
	AggregateID string      `json:"aggregateId"`
	EventType   string      `json:"eventType"`
	Timestamp   string      `json:"timestamp"`
	Version     int         `json:"version"`
	Payload     interface{} `json:"payload"`
}

func (p *EventBridgePublisher) entry(event events.DomainEvent) (types.PutEventsRequestEntry, error) {
	detail, err := json.Marshal(eventEnvelope{
		AggregateID: event.GetAggregateID(),
		EventType:   event.GetEventType(),
		Timestamp:   event.GetTimestamp().UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:     event.GetVersion(),
		Payload:     event,
	})
	if err != nil {
		return types.PutEventsRequestEntry{}, err
	}
	return types.PutEventsRequestEntry{
		EventBusName: aws.String(p.busName),
		Source:       aws.String(p.source),
		DetailType:   aws.String(event.GetEventType()),
		Detail:       aws.String(string(detail)),
	}, nil
}

// Publish sends one event.
func (p *EventBridgePublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in PutEvents-sized chunks. A partial failure
// is returned after the remaining chunks are attempted.
func (p *EventBridgePublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	var firstErr error

	for start := 0; start < len(batch); start += eventBridgeBatchLimit {
		end := start + eventBridgeBatchLimit
		if end > len(batch) {
			end = len(batch)
		}

		entries := make([]types.PutEventsRequestEntry, 0, end-start)
		for _, event := range batch[start:end] {
			entry, err := p.entry(event)
			if err != nil {
				p.logger.Warn("Failed to encode domain event",
					zap.String("eventType", event.GetEventType()),
					zap.Error(err),
				)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			entries = append(entries, entry)
		}
		if len(entries) == 0 {
			continue
		}

		out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if out.FailedEntryCount > 0 {
			p.logger.Warn("EventBridge rejected entries",
				zap.Int32("failedCount", out.FailedEntryCount),
			)
		}
	}

	return firstErr
}
