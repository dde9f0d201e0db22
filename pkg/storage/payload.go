package storage

import (
	"fmt"
	"time"
)

// ProposalPayload carries the business parameters of a proposal. Exactly one member is set and
// it must match the proposal type.
type ProposalPayload struct {
	Staking      *StakingPayload      `json:"staking,omitempty"`
	Distribution *DistributionPayload `json:"distribution,omitempty"`
	Termination  *TerminationPayload  `json:"termination,omitempty"`
	Burning      *BurningPayload      `json:"burning,omitempty"`
	Marketplace  *MarketplacePayload  `json:"marketplace,omitempty"`
	Expansion    *ExpansionPayload    `json:"expansion,omitempty"`
}

type StakingAction string

const (
	StakingAction_Stake   StakingAction = "stake"
	StakingAction_Unstake StakingAction = "unstake"
)

type StakingPayload struct {
	Action   StakingAction `json:"action"`
	AssetIds []string      `json:"assetIds"`
}

type DistributionPayload struct {
	// Amount in the smallest unit of the vault's base currency
	Amount string `json:"amount"`
}

type TerminationPayload struct {
	Reason string `json:"reason,omitempty"`
}

type BurningPayload struct {
	AssetIds []string `json:"assetIds"`
}

type MarketAction string

const (
	MarketAction_Sell   MarketAction = "SELL"
	MarketAction_Unlist MarketAction = "UNLIST"
	MarketAction_Update MarketAction = "UPDATE"
	MarketAction_Buy    MarketAction = "BUY"
)

type MarketplaceOperation struct {
	AssetId   string       `json:"assetId"`
	Market    string       `json:"market"`
	Action    MarketAction `json:"action"`
	Price     string       `json:"price,omitempty"`
	ListingId string       `json:"listingId,omitempty"`
}

type SwapRequest struct {
	Id string `json:"id"`
	// Unit of the fungible asset to exchange for base currency
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
	// SlippagePercent tolerated on the quoted output, e.g. "1.5"
	SlippagePercent string `json:"slippagePercent"`
}

type MarketplacePayload struct {
	Operations []MarketplaceOperation `json:"operations,omitempty"`
	Swaps      []SwapRequest          `json:"swaps,omitempty"`
}

type ExpansionPayload struct {
	AssetWhitelist []string      `json:"assetWhitelist,omitempty"`
	MaxAssets      int           `json:"maxAssets"`
	Duration       time.Duration `json:"duration"`
	PriceType      string        `json:"priceType,omitempty"`
}

func (p ProposalPayload) setCount() int {
	n := 0
	for _, set := range []bool{
		p.Staking != nil,
		p.Distribution != nil,
		p.Termination != nil,
		p.Burning != nil,
		p.Marketplace != nil,
		p.Expansion != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Validate checks that the payload carries exactly the member required by the proposal type.
func (p ProposalPayload) Validate(t ProposalType) error {
	if p.setCount() != 1 {
		return fmt.Errorf("proposal payload must carry exactly one variant, found %d", p.setCount())
	}
	var ok bool
	switch t {
	case ProposalType_Staking:
		ok = p.Staking != nil
	case ProposalType_Distribution:
		ok = p.Distribution != nil
	case ProposalType_Termination:
		ok = p.Termination != nil
	case ProposalType_Burning:
		ok = p.Burning != nil
	case ProposalType_MarketplaceAction, ProposalType_BuySell:
		ok = p.Marketplace != nil
	case ProposalType_Expansion:
		ok = p.Expansion != nil
	default:
		return fmt.Errorf("unknown proposal type %s", t)
	}
	if !ok {
		return fmt.Errorf("payload does not match proposal type %s", t)
	}
	return nil
}

// ExecutionState is the machine bookkeeping of a proposal's execution, kept apart from the payload.
type ExecutionState struct {
	RetryCount         int                `json:"retryCount"`
	LastAttempt        *time.Time         `json:"lastAttempt,omitempty"`
	LastError          *ExecutionError    `json:"lastError,omitempty"`
	RejectionReason    string             `json:"rejectionReason,omitempty"`
	AwaitingCompletion bool               `json:"awaitingCompletion,omitempty"`
	ExecutedAt         *time.Time         `json:"executedAt,omitempty"`
	TxHash             string             `json:"txHash,omitempty"`
	Distribution       *DistributionState `json:"distribution,omitempty"`
	Marketplace        *MarketplaceState  `json:"marketplace,omitempty"`
	Swaps              []SwapProgress     `json:"swaps,omitempty"`
	Termination        *TerminationState  `json:"termination,omitempty"`
	Warnings           []string           `json:"warnings,omitempty"`
	// RequestedWindow holds the voting window asked for at creation until the fee is paid
	RequestedWindow *VotingWindow `json:"requestedWindow,omitempty"`
}

type VotingWindow struct {
	StartDate    *time.Time    `json:"startDate,omitempty"`
	VotingPeriod time.Duration `json:"votingPeriod"`
}

// ResetRetries clears retry bookkeeping when a proposal enters PASSED.
func (e *ExecutionState) ResetRetries() {
	e.RetryCount = 0
	e.LastAttempt = nil
	e.LastError = nil
}

type ExecutionError struct {
	Category        string    `json:"category"`
	Message         string    `json:"message"`
	FriendlyMessage string    `json:"friendlyMessage"`
	OccurredAt      time.Time `json:"occurredAt"`
}

type DistributionState struct {
	TotalAmount   string              `json:"totalAmount"`
	TotalBatches  int                 `json:"totalBatches"`
	ExcludedCount int                 `json:"excludedCount"`
	Batches       []DistributionBatch `json:"batches"`
}

type DistributionBatch struct {
	BatchId        string      `json:"batchId"`
	BatchNumber    int         `json:"batchNumber"`
	TotalBatches   int         `json:"totalBatches"`
	RecipientCount int         `json:"recipientCount"`
	Amount         string      `json:"amount"`
	Status         BatchStatus `json:"status"`
	ClaimIds       []string    `json:"claimIds"`
	TransactionId  string      `json:"transactionId,omitempty"`
	TxHash         string      `json:"txHash,omitempty"`
	RetryCount     int         `json:"retryCount"`
	LastAttempt    *time.Time  `json:"lastAttempt,omitempty"`
	Error          string      `json:"error,omitempty"`
}

type MarketplaceState struct {
	ExtractionId string `json:"extractionId,omitempty"`
	Extracted    bool   `json:"extracted,omitempty"`
	TxHash       string `json:"txHash,omitempty"`
	// Settled is set once the submitted transaction is recorded and applied to vault assets
	Settled bool `json:"settled,omitempty"`
}

type SwapStatus string

const (
	SwapStatus_Pending   SwapStatus = "PENDING"
	SwapStatus_Submitted SwapStatus = "SUBMITTED"
	SwapStatus_Completed SwapStatus = "COMPLETED"
)

type SwapProgress struct {
	SwapId string     `json:"swapId"`
	Status SwapStatus `json:"status"`
	TxHash string     `json:"txHash,omitempty"`
	// AssetIds resolved for the swap by largest-first allocation
	AssetIds    []string         `json:"assetIds,omitempty"`
	Allocations []SwapAllocation `json:"allocations,omitempty"`
}

// SwapAllocation is the part of one holding a swap consumed and what the holding keeps afterwards.
type SwapAllocation struct {
	AssetId   string `json:"assetId"`
	Quantity  string `json:"quantity"`
	Remaining string `json:"remaining"`
}

type TerminationPhase string

const (
	TerminationPhase_Started            TerminationPhase = "STARTED"
	TerminationPhase_AssetsReleased     TerminationPhase = "ASSETS_RELEASED"
	TerminationPhase_AwaitingSettlement TerminationPhase = "AWAITING_SETTLEMENT"
	TerminationPhase_Completed          TerminationPhase = "COMPLETED"
)

type TerminationState struct {
	Phase  TerminationPhase `json:"phase"`
	TxHash string           `json:"txHash,omitempty"`
}
