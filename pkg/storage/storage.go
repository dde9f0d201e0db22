package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateVote = errors.New("address has already voted on this proposal")
)

type VaultStore interface {
	GetVault(ctx context.Context, id string) (*Vault, error)
	SaveVault(ctx context.Context, vault *Vault) error
	ListVaultAssets(ctx context.Context, vaultId string) ([]*VaultAsset, error)
	GetVaultAssets(ctx context.Context, ids []string) ([]*VaultAsset, error)
	SaveVaultAssets(ctx context.Context, assets []*VaultAsset) error
}

type SnapshotStore interface {
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	// GetLatestSnapshot returns the most recently created snapshot for the vault
	GetLatestSnapshot(ctx context.Context, vaultId string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}

type ProposalStore interface {
	CreateProposal(ctx context.Context, proposal *Proposal) error
	GetProposal(ctx context.Context, id string) (*Proposal, error)
	UpdateProposal(ctx context.Context, proposal *Proposal) error
	DeleteProposal(ctx context.Context, id string) error
	ListProposalsByStatus(ctx context.Context, statuses ...ProposalStatus) ([]*Proposal, error)
	ListVaultProposals(ctx context.Context, vaultId string) ([]*Proposal, error)
}

type VoteStore interface {
	// CreateVote returns ErrDuplicateVote when the address already voted on the proposal
	CreateVote(ctx context.Context, vote *Vote) error
	GetVote(ctx context.Context, proposalId string, voterAddress string) (*Vote, error)
	ListVotes(ctx context.Context, proposalId string) ([]*Vote, error)
}

type ClaimStore interface {
	CreateClaims(ctx context.Context, claims []*Claim) error
	ListClaimsByIds(ctx context.Context, ids []string) ([]*Claim, error)
	ListProposalClaims(ctx context.Context, proposalId string) ([]*Claim, error)
	UpdateClaimsStatus(ctx context.Context, ids []string, status ClaimStatus, transactionId string) error
}

type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	ListProposalTransactions(ctx context.Context, proposalId string) ([]*Transaction, error)
}

type GovernanceStore interface {
	VaultStore
	SnapshotStore
	ProposalStore
	VoteStore
	ClaimStore
	TransactionStore
}
