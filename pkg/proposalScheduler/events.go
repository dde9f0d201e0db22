package proposalScheduler

import (
	"context"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/eventBus/eventBusTypes"
	"go.uber.org/zap"
)

// ListenForEvents schedules proposals as they are created or activated and clears timers for
// proposals that reached a terminal state. It blocks until ctx is done.
func (ps *ProposalScheduler) ListenForEvents(ctx context.Context, bus eventBusTypes.IEventBus) {
	consumer := &eventBusTypes.Consumer{
		Id:      "proposalScheduler",
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, 100),
		Events: []string{
			eventBusTypes.Event_ProposalCreated,
			eventBusTypes.Event_ProposalActivated,
			eventBusTypes.Event_ProposalExecuted,
			eventBusTypes.Event_ProposalRejected,
		},
	}
	bus.Subscribe(consumer)
	defer bus.Unsubscribe(consumer)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-consumer.Channel:
			ps.handleEvent(ctx, event)
		}
	}
}

func (ps *ProposalScheduler) handleEvent(ctx context.Context, event *eventBusTypes.Event) {
	data, ok := event.Data.(*eventBusTypes.ProposalEventData)
	if !ok {
		ps.logger.Sugar().Warnw("Unexpected event payload", zap.String("eventName", event.Name))
		return
	}
	switch event.Name {
	case eventBusTypes.Event_ProposalExecuted, eventBusTypes.Event_ProposalRejected:
		ps.Cancel(data.ProposalId)
		return
	}

	proposal, err := ps.store.GetProposal(ctx, data.ProposalId)
	if err != nil {
		ps.logger.Sugar().Errorw("Failed to load proposal for scheduling",
			zap.String("proposalId", data.ProposalId),
			zap.Error(err),
		)
		return
	}
	if err := ps.Schedule(proposal); err != nil {
		ps.logger.Sugar().Errorw("Failed to schedule proposal",
			zap.String("proposalId", data.ProposalId),
			zap.Error(err),
		)
	}
}
