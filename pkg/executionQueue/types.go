package executionQueue

import (
	"context"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/governance"
	"go.uber.org/zap"
)

type MessageType string

var (
	MessageType_Activate            MessageType = "activate"
	MessageType_CloseVoting         MessageType = "closeVoting"
	MessageType_Execute             MessageType = "execute"
	MessageType_RetrySweep          MessageType = "retrySweep"
	MessageType_RetryBatches        MessageType = "retryBatches"
	MessageType_CompleteTermination MessageType = "completeTermination"
)

type ExecutionData struct {
	Type       MessageType
	ProposalId string
}

type ExecutionMessage struct {
	Data         ExecutionData
	ResponseChan chan *ExecutionResponse
}

type ExecutionResponseData struct {
	Sweep   *governance.SweepResult
	Report  *distribution.StatusReport
	Retried int
}

type ExecutionResponse struct {
	Data  *ExecutionResponseData
	Error error
}

// Governance is the set of proposal transitions the queue serializes.
type Governance interface {
	ActivateProposal(ctx context.Context, proposalId string) error
	CloseVoting(ctx context.Context, proposalId string) error
	ExecuteProposal(ctx context.Context, proposalId string) error
	RetrySweep(ctx context.Context) (*governance.SweepResult, error)
	RetryFailedBatches(ctx context.Context, proposalId string) (*distribution.StatusReport, int, error)
	CompleteTermination(ctx context.Context, proposalId string) error
}

// ExecutionQueue runs every governance mutation on a single goroutine so timers, sweeps and
// operator requests never race on the same proposal or custody wallet.
type ExecutionQueue struct {
	logger     *zap.Logger
	governance Governance
	queue      chan *ExecutionMessage
	done       chan struct{}
}
