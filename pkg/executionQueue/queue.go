package executionQueue

import (
	"context"

	"go.uber.org/zap"
)

// NewExecutionQueue creates a new ExecutionQueue
func NewExecutionQueue(g Governance, logger *zap.Logger) *ExecutionQueue {
	return &ExecutionQueue{
		logger:     logger,
		governance: g,
		// allow the queue to buffer up to 100 messages
		queue: make(chan *ExecutionMessage, 100),
		done:  make(chan struct{}),
	}
}

// Enqueue adds a new message to the queue and returns immediately
func (eq *ExecutionQueue) Enqueue(payload *ExecutionMessage) {
	eq.logger.Sugar().Infow("Enqueueing execution message",
		zap.String("type", string(payload.Data.Type)),
		zap.String("proposalId", payload.Data.ProposalId),
	)
	eq.queue <- payload
}

// EnqueueAndWait adds a new message to the queue and waits for a response or returns if the context is done
func (eq *ExecutionQueue) EnqueueAndWait(ctx context.Context, data ExecutionData) (*ExecutionResponseData, error) {
	responseChan := make(chan *ExecutionResponse, 1)

	payload := &ExecutionMessage{
		Data:         data,
		ResponseChan: responseChan,
	}
	eq.Enqueue(payload)

	select {
	case response := <-responseChan:
		return response.Data, response.Error
	case <-ctx.Done():
		eq.logger.Sugar().Infow("Received context.Done()", zap.String("type", string(data.Type)))
		return nil, ctx.Err()
	}
}

// ActivateProposal queues an activation. It satisfies the scheduler's handler.
func (eq *ExecutionQueue) ActivateProposal(_ context.Context, proposalId string) error {
	eq.Enqueue(&ExecutionMessage{Data: ExecutionData{Type: MessageType_Activate, ProposalId: proposalId}})
	return nil
}

// CloseVoting queues a vote close. It satisfies the scheduler's handler.
func (eq *ExecutionQueue) CloseVoting(_ context.Context, proposalId string) error {
	eq.Enqueue(&ExecutionMessage{Data: ExecutionData{Type: MessageType_CloseVoting, ProposalId: proposalId}})
	return nil
}

func (eq *ExecutionQueue) Close() {
	eq.logger.Sugar().Infow("Closing execution queue")
	close(eq.done)
}
