package eventBus

import (
	"context"
	"testing"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/logger"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus/eventBusTypes"
	"github.com/stretchr/testify/assert"
)

func Test_EventBus(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("Delivers only subscribed events", func(t *testing.T) {
		eb := NewEventBus(l)
		consumer := &eventBusTypes.Consumer{
			Id:      "scheduler",
			Context: context.Background(),
			Channel: make(chan *eventBusTypes.Event, 10),
			Events:  []string{eventBusTypes.Event_ProposalCreated},
		}
		eb.Subscribe(consumer)

		eb.PublishProposalEvent(eventBusTypes.Event_ProposalCreated, &eventBusTypes.ProposalEventData{ProposalId: "p-1"})
		eb.PublishProposalEvent(eventBusTypes.Event_ProposalExecuted, &eventBusTypes.ProposalEventData{ProposalId: "p-1"})

		assert.Len(t, consumer.Channel, 1)
		event := <-consumer.Channel
		assert.Equal(t, eventBusTypes.Event_ProposalCreated, event.Name)
		assert.Equal(t, "p-1", event.Data.(*eventBusTypes.ProposalEventData).ProposalId)
	})
	t.Run("Full channels drop events without blocking", func(t *testing.T) {
		eb := NewEventBus(l)
		consumer := &eventBusTypes.Consumer{
			Id:      "slow",
			Context: context.Background(),
			Channel: make(chan *eventBusTypes.Event, 1),
		}
		eb.Subscribe(consumer)

		for i := 0; i < 5; i++ {
			eb.Publish(&eventBusTypes.Event{Name: "anything"})
		}
		assert.Len(t, consumer.Channel, 1)
	})
	t.Run("Unsubscribed and cancelled consumers receive nothing", func(t *testing.T) {
		eb := NewEventBus(l)
		ctx, cancel := context.WithCancel(context.Background())
		cancelled := &eventBusTypes.Consumer{Id: "cancelled", Context: ctx, Channel: make(chan *eventBusTypes.Event, 1)}
		removed := &eventBusTypes.Consumer{Id: "removed", Context: context.Background(), Channel: make(chan *eventBusTypes.Event, 1)}
		eb.Subscribe(cancelled)
		eb.Subscribe(removed)
		eb.Unsubscribe(removed)
		cancel()

		eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_ProposalRejected})
		assert.Len(t, cancelled.Channel, 0)
		assert.Len(t, removed.Channel, 0)
	})
}
