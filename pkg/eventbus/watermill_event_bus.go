package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/quendro/forgeflow/pkg/events"
)

// WatermillEventBus carries lifecycle events over a Watermill Pub/Sub. The
// engine is single-process, so the gochannel transport is used; no
// external broker is involved.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
	logger        *slog.Logger
}

// NewGoChannelEventBus creates an in-process event bus.
func NewGoChannelEventBus(logger *slog.Logger) *WatermillEventBus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))

	return NewWatermillEventBus(pubsub, pubsub, logger)
}

// NewWatermillEventBus wires an event bus over an existing publisher and
// subscriber pair.
func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
		logger:        logger,
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

// Handle registers a handler for one event type. Registration must happen
// before Subscribe.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) {
	eb.subscriptions[eventType] = handler
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event, err := decodeEvent(eventType, msg.Payload)
			if err != nil {
				eb.logger.Error("Failed to decode event", "event_type", eventType, "error", err)
				msg.Ack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				eb.logger.Error("Event handler failed", "event_type", eventType, "error", err)
			}

			msg.Ack()
		}
	}()

	return nil
}

func decodeEvent(eventType events.EventType, payload []byte) (any, error) {
	var event any

	switch eventType {
	case events.WorkflowStartedEvent:
		event = &events.WorkflowStarted{}
	case events.WorkflowCompletedEvent:
		event = &events.WorkflowCompleted{}
	case events.WorkflowFailedEvent:
		event = &events.WorkflowFailed{}
	case events.WorkflowResumedEvent:
		event = &events.WorkflowResumed{}
	case events.StageStartedEvent:
		event = &events.StageStarted{}
	case events.StageCompletedEvent:
		event = &events.StageCompleted{}
	case events.StageFailedEvent:
		event = &events.StageFailed{}
	case events.RetryScheduledEvent:
		event = &events.RetryScheduled{}
	default:
		event = &events.BaseEvent{}
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, err
	}

	return event, nil
}

func (eb *WatermillEventBus) Close() error {
	return eb.publisher.Close()
}
