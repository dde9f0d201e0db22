package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
)

// Store is an in-process GovernanceStore used by tests and local runs.
type Store struct {
	mu sync.RWMutex

	vaults       map[string]storage.Vault
	assets       map[string]storage.VaultAsset
	snapshots    map[string]storage.Snapshot
	proposals    map[string]*storage.Proposal
	votes        map[string]storage.Vote
	claims       map[string]storage.Claim
	transactions map[string]storage.Transaction
}

var _ storage.GovernanceStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		vaults:       make(map[string]storage.Vault),
		assets:       make(map[string]storage.VaultAsset),
		snapshots:    make(map[string]storage.Snapshot),
		proposals:    make(map[string]*storage.Proposal),
		votes:        make(map[string]storage.Vote),
		claims:       make(map[string]storage.Claim),
		transactions: make(map[string]storage.Transaction),
	}
}

func voteKey(proposalId string, voterAddress string) string {
	return proposalId + "|" + strings.TrimSpace(voterAddress)
}

func (s *Store) GetVault(_ context.Context, id string) (*storage.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vaults[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

func (s *Store) SaveVault(_ context.Context, vault *storage.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vault.UpdatedAt = time.Now()
	if vault.CreatedAt.IsZero() {
		vault.CreatedAt = vault.UpdatedAt
	}
	s.vaults[vault.Id] = *vault
	return nil
}

func (s *Store) ListVaultAssets(_ context.Context, vaultId string) ([]*storage.VaultAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.VaultAsset, 0)
	for _, a := range s.assets {
		if a.VaultId == vaultId {
			asset := a
			out = append(out, &asset)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (s *Store) GetVaultAssets(_ context.Context, ids []string) ([]*storage.VaultAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.VaultAsset, 0, len(ids))
	for _, id := range ids {
		a, ok := s.assets[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		out = append(out, &a)
	}
	return out, nil
}

func (s *Store) SaveVaultAssets(_ context.Context, assets []*storage.VaultAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, a := range assets {
		a.UpdatedAt = now
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		s.assets[a.Id] = *a
	}
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, id string) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &snap, nil
}

func (s *Store) GetLatestSnapshot(_ context.Context, vaultId string) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *storage.Snapshot
	for _, snap := range s.snapshots {
		if snap.VaultId != vaultId {
			continue
		}
		if latest == nil || snap.CreatedAt.After(latest.CreatedAt) {
			candidate := snap
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snapshot *storage.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now()
	}
	s.snapshots[snapshot.Id] = *snapshot
	return nil
}

func (s *Store) CreateProposal(_ context.Context, proposal *storage.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	proposal.CreatedAt = now
	proposal.UpdatedAt = now
	s.proposals[proposal.Id] = proposal.Clone()
	return nil
}

func (s *Store) GetProposal(_ context.Context, id string) (*storage.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) UpdateProposal(_ context.Context, proposal *storage.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[proposal.Id]; !ok {
		return storage.ErrNotFound
	}
	proposal.UpdatedAt = time.Now()
	s.proposals[proposal.Id] = proposal.Clone()
	return nil
}

func (s *Store) DeleteProposal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.proposals, id)
	return nil
}

func (s *Store) ListProposalsByStatus(_ context.Context, statuses ...storage.ProposalStatus) ([]*storage.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Proposal, 0)
	for _, p := range s.proposals {
		if slices.Contains(statuses, p.Status) {
			out = append(out, p.Clone())
		}
	}
	sortProposals(out)
	return out, nil
}

func (s *Store) ListVaultProposals(_ context.Context, vaultId string) ([]*storage.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Proposal, 0)
	for _, p := range s.proposals {
		if p.VaultId == vaultId {
			out = append(out, p.Clone())
		}
	}
	sortProposals(out)
	return out, nil
}

func sortProposals(p []*storage.Proposal) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].CreatedAt.Equal(p[j].CreatedAt) {
			return p[i].Id < p[j].Id
		}
		return p[i].CreatedAt.Before(p[j].CreatedAt)
	})
}

func (s *Store) CreateVote(_ context.Context, vote *storage.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := voteKey(vote.ProposalId, vote.VoterAddress)
	if _, exists := s.votes[key]; exists {
		return storage.ErrDuplicateVote
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now()
	}
	s.votes[key] = *vote
	return nil
}

func (s *Store) GetVote(_ context.Context, proposalId string, voterAddress string) (*storage.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.votes[voteKey(proposalId, voterAddress)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &v, nil
}

func (s *Store) ListVotes(_ context.Context, proposalId string) ([]*storage.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Vote, 0)
	for _, v := range s.votes {
		if v.ProposalId == proposalId {
			vote := v
			out = append(out, &vote)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VoterAddress < out[j].VoterAddress })
	return out, nil
}

func (s *Store) CreateClaims(_ context.Context, claims []*storage.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, c := range claims {
		c.CreatedAt = now
		c.UpdatedAt = now
		s.claims[c.Id] = *c
	}
	return nil
}

func (s *Store) ListClaimsByIds(_ context.Context, ids []string) ([]*storage.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Claim, 0, len(ids))
	for _, id := range ids {
		c, ok := s.claims[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) ListProposalClaims(_ context.Context, proposalId string) ([]*storage.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Claim, 0)
	for _, c := range s.claims {
		if c.ProposalId == proposalId {
			claim := c
			out = append(out, &claim)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *Store) UpdateClaimsStatus(_ context.Context, ids []string, status storage.ClaimStatus, transactionId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range ids {
		c, ok := s.claims[id]
		if !ok {
			return storage.ErrNotFound
		}
		c.Status = status
		if transactionId != "" {
			c.TransactionId = transactionId
		}
		c.UpdatedAt = now
		s.claims[id] = c
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, tx *storage.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	s.transactions[tx.Id] = *tx
	return nil
}

func (s *Store) ListProposalTransactions(_ context.Context, proposalId string) ([]*storage.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Transaction, 0)
	for _, t := range s.transactions {
		if t.ProposalId == proposalId {
			tx := t
			out = append(out, &tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
