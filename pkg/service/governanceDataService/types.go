package governanceDataService

import (
	"errors"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/distribution"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
)

var (
	ErrProposalNotActive = errors.New("proposal is not open for voting")
	ErrNotEligible       = errors.New("address is not eligible")
	ErrInvalidChoice     = errors.New("invalid vote choice")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrVaultNotGoverned  = errors.New("vault is not under governance")
	ErrNoSnapshot        = errors.New("vault has no snapshot")
	ErrFeeNotRequired    = errors.New("proposal has no unpaid fee")
)

type CreateProposalRequest struct {
	VaultId        string                  `json:"vaultId"`
	CreatorId      string                  `json:"creatorId"`
	CreatorAddress string                  `json:"creatorAddress"`
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	Type           storage.ProposalType    `json:"type"`
	StartDate      *time.Time              `json:"startDate,omitempty"`
	VotingPeriod   time.Duration           `json:"votingPeriod"`
	Payload        storage.ProposalPayload `json:"payload"`
}

type CreateProposalResponse struct {
	Proposal *storage.Proposal `json:"proposal"`
	// Fee in base currency units, zero when the proposal type is free
	Fee      uint64   `json:"fee"`
	Warnings []string `json:"warnings,omitempty"`
}

type CastVoteRequest struct {
	ProposalId   string             `json:"proposalId"`
	VoterId      string             `json:"voterId"`
	VoterAddress string             `json:"voterAddress"`
	Choice       storage.VoteChoice `json:"choice"`
}

type VoteSummary struct {
	Total   string `json:"total"`
	Percent string `json:"percent"`
}

type TallySummary struct {
	Yes                  VoteSummary `json:"yes"`
	No                   VoteSummary `json:"no"`
	Abstain              VoteSummary `json:"abstain"`
	TotalPower           string      `json:"totalPower"`
	ParticipationPercent string      `json:"participationPercent"`
	YesRatioPercent      string      `json:"yesRatioPercent"`
	Passing              bool        `json:"passing"`
}

type ProposalDetail struct {
	Proposal     *storage.Proposal          `json:"proposal"`
	Tally        *TallySummary              `json:"tally,omitempty"`
	VoteCount    int                        `json:"voteCount"`
	LastError    string                     `json:"lastError,omitempty"`
	Distribution *distribution.StatusReport `json:"distribution,omitempty"`
}

type VotingPowerResponse struct {
	VaultId      string `json:"vaultId"`
	Address      string `json:"address"`
	SnapshotId   string `json:"snapshotId,omitempty"`
	Power        string `json:"power"`
	TotalPower   string `json:"totalPower"`
	SharePercent string `json:"sharePercent"`
	CanVote      bool   `json:"canVote"`
	CanPropose   bool   `json:"canPropose"`
	Reason       string `json:"reason,omitempty"`
}

type ShareInfo struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Amount  string `json:"amount"`
}

type DistributionInfo struct {
	VaultId          string      `json:"vaultId"`
	SnapshotId       string      `json:"snapshotId"`
	TotalAmount      string      `json:"totalAmount"`
	TotalSupply      string      `json:"totalSupply"`
	Distributed      string      `json:"distributed"`
	Remainder        string      `json:"remainder"`
	RecipientCount   int         `json:"recipientCount"`
	ExcludedCount    int         `json:"excludedCount"`
	EstimatedBatches int         `json:"estimatedBatches"`
	Shares           []ShareInfo `json:"shares"`
	Excluded         []ShareInfo `json:"excluded,omitempty"`
	Warnings         []string    `json:"warnings,omitempty"`
}

type RetryResponse struct {
	Retried int                        `json:"retried"`
	Report  *distribution.StatusReport `json:"report"`
}
