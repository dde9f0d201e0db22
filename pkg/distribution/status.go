package distribution

import (
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
)

type BatchReport struct {
	BatchNumber    int    `json:"batchNumber"`
	RecipientCount int    `json:"recipientCount"`
	Amount         string `json:"amount"`
	Status         string `json:"status"`
	TxHash         string `json:"txHash,omitempty"`
	RetryCount     int    `json:"retryCount"`
	Error          string `json:"error,omitempty"`
}

type StatusReport struct {
	ProposalId       string        `json:"proposalId"`
	Status           string        `json:"status"`
	TotalAmount      string        `json:"totalAmount"`
	TotalBatches     int           `json:"totalBatches"`
	CompletedBatches int           `json:"completedBatches"`
	FailedBatches    int           `json:"failedBatches"`
	PendingBatches   int           `json:"pendingBatches"`
	ExcludedHolders  int           `json:"excludedHolders"`
	Batches          []BatchReport `json:"batches"`
}

// Report summarises a distribution proposal's batches. Proposals that have not started executing
// report PENDING with no batches.
func Report(proposal *storage.Proposal) *StatusReport {
	report := &StatusReport{
		ProposalId: proposal.Id,
		Status:     string(storage.DistributionStatus_Pending),
		Batches:    []BatchReport{},
	}
	if proposal.Payload.Distribution != nil {
		report.TotalAmount = proposal.Payload.Distribution.Amount
	}
	state := proposal.Execution.Distribution
	if state == nil {
		return report
	}
	report.Status = string(RollupStatus(state.Batches))
	report.TotalAmount = state.TotalAmount
	report.TotalBatches = len(state.Batches)
	report.ExcludedHolders = state.ExcludedCount
	for _, b := range state.Batches {
		switch b.Status {
		case storage.BatchStatus_Completed:
			report.CompletedBatches++
		case storage.BatchStatus_Failed:
			report.FailedBatches++
		default:
			report.PendingBatches++
		}
		report.Batches = append(report.Batches, BatchReport{
			BatchNumber:    b.BatchNumber,
			RecipientCount: b.RecipientCount,
			Amount:         b.Amount,
			Status:         string(b.Status),
			TxHash:         b.TxHash,
			RetryCount:     b.RetryCount,
			Error:          b.Error,
		})
	}
	return report
}
