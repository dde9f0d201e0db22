package distribution

import (
	"math/big"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// PartitionBatches splits claims, in order, into batches of at most batchSize recipients numbered
// from 1. Each claim's BatchId is set to its batch.
func PartitionBatches(claims []*storage.Claim, batchSize int) []storage.DistributionBatch {
	if len(claims) == 0 || batchSize <= 0 {
		return []storage.DistributionBatch{}
	}
	chunks := lo.Chunk(claims, batchSize)
	batches := make([]storage.DistributionBatch, 0, len(chunks))
	for i, chunk := range chunks {
		batchId := uuid.NewString()
		amount := big.NewInt(0)
		for _, c := range chunk {
			c.BatchId = batchId
			if v, ok := new(big.Int).SetString(c.Amount, 10); ok {
				amount.Add(amount, v)
			}
		}
		batches = append(batches, storage.DistributionBatch{
			BatchId:        batchId,
			BatchNumber:    i + 1,
			TotalBatches:   len(chunks),
			RecipientCount: len(chunk),
			Amount:         amount.String(),
			Status:         storage.BatchStatus_Pending,
			ClaimIds: lo.Map(chunk, func(c *storage.Claim, _ int) string {
				return c.Id
			}),
		})
	}
	return batches
}

// rebuildBatches restores batch bookkeeping from claims that were persisted before the proposal
// state was. Claims must be ordered by address, the order they were partitioned in.
func rebuildBatches(claims []*storage.Claim) []storage.DistributionBatch {
	batches := make([]storage.DistributionBatch, 0)
	index := map[string]int{}
	for _, c := range claims {
		i, ok := index[c.BatchId]
		if !ok {
			i = len(batches)
			index[c.BatchId] = i
			batches = append(batches, storage.DistributionBatch{
				BatchId:     c.BatchId,
				BatchNumber: i + 1,
				Status:      storage.BatchStatus_Pending,
				Amount:      "0",
			})
		}
		b := &batches[i]
		b.ClaimIds = append(b.ClaimIds, c.Id)
		b.RecipientCount++
		total, _ := new(big.Int).SetString(b.Amount, 10)
		if v, ok := new(big.Int).SetString(c.Amount, 10); ok {
			total.Add(total, v)
		}
		b.Amount = total.String()
		if c.Status == storage.ClaimStatus_Claimed {
			b.Status = storage.BatchStatus_Completed
			b.TransactionId = c.TransactionId
		}
	}
	for i := range batches {
		batches[i].TotalBatches = len(batches)
	}
	return batches
}

// RollupStatus summarises batch statuses into the distribution status.
func RollupStatus(batches []storage.DistributionBatch) storage.DistributionStatus {
	if len(batches) == 0 {
		return storage.DistributionStatus_Pending
	}
	counts := lo.CountValuesBy(batches, func(b storage.DistributionBatch) storage.BatchStatus {
		return b.Status
	})
	switch {
	case counts[storage.BatchStatus_Completed] == len(batches):
		return storage.DistributionStatus_Completed
	case counts[storage.BatchStatus_Failed] == len(batches):
		return storage.DistributionStatus_Failed
	case counts[storage.BatchStatus_Pending] == len(batches):
		return storage.DistributionStatus_Pending
	case counts[storage.BatchStatus_Failed] > 0:
		return storage.DistributionStatus_PartiallyFailed
	default:
		return storage.DistributionStatus_InProgress
	}
}
