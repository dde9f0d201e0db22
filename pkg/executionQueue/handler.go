package executionQueue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Process handles messages until Close is called.
func (eq *ExecutionQueue) Process(ctx context.Context) {
	for {
		select {
		case <-eq.done:
			eq.logger.Sugar().Infow("Execution queue stopped")
			return
		case msg := <-eq.queue:
			response := eq.processMessage(ctx, msg)
			if response.Error != nil {
				eq.logger.Sugar().Errorw("Execution message failed",
					zap.String("type", string(msg.Data.Type)),
					zap.String("proposalId", msg.Data.ProposalId),
					zap.Error(response.Error),
				)
			}

			if msg.ResponseChan != nil {
				select {
				case msg.ResponseChan <- response:
				default:
					eq.logger.Sugar().Infow("No receiver for response, dropping", zap.String("type", string(msg.Data.Type)))
				}
			}
		}
	}
}

func (eq *ExecutionQueue) processMessage(ctx context.Context, msg *ExecutionMessage) *ExecutionResponse {
	response := &ExecutionResponse{Data: &ExecutionResponseData{}}
	id := msg.Data.ProposalId

	if msg.Data.Type != MessageType_RetrySweep && id == "" {
		response.Error = fmt.Errorf("proposalId is required for %s", msg.Data.Type)
		return response
	}

	switch msg.Data.Type {
	case MessageType_Activate:
		response.Error = eq.governance.ActivateProposal(ctx, id)
	case MessageType_CloseVoting:
		response.Error = eq.governance.CloseVoting(ctx, id)
	case MessageType_Execute:
		response.Error = eq.governance.ExecuteProposal(ctx, id)
	case MessageType_RetrySweep:
		response.Data.Sweep, response.Error = eq.governance.RetrySweep(ctx)
	case MessageType_RetryBatches:
		response.Data.Report, response.Data.Retried, response.Error = eq.governance.RetryFailedBatches(ctx, id)
	case MessageType_CompleteTermination:
		response.Error = eq.governance.CompleteTermination(ctx, id)
	default:
		response.Error = fmt.Errorf("unknown message type %s", msg.Data.Type)
	}
	return response
}
