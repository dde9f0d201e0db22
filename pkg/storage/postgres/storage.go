package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/postgres"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/postgres/helpers"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresGovernanceStore struct {
	Db     *gorm.DB
	Logger *zap.Logger
}

var _ storage.GovernanceStore = (*PostgresGovernanceStore)(nil)

func NewPostgresGovernanceStore(db *gorm.DB, l *zap.Logger) *PostgresGovernanceStore {
	return &PostgresGovernanceStore{
		Db:     db,
		Logger: l,
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func (s *PostgresGovernanceStore) GetVault(ctx context.Context, id string) (*storage.Vault, error) {
	vault := &storage.Vault{}
	res := s.Db.WithContext(ctx).Model(&storage.Vault{}).Where("id = ?", id).First(vault)
	if res.Error != nil {
		return nil, notFound(res.Error)
	}
	return vault, nil
}

func (s *PostgresGovernanceStore) SaveVault(ctx context.Context, vault *storage.Vault) error {
	res := s.Db.WithContext(ctx).Save(vault)
	if res.Error != nil {
		return fmt.Errorf("failed to save vault '%s': %w", vault.Id, res.Error)
	}
	return nil
}

func (s *PostgresGovernanceStore) ListVaultAssets(ctx context.Context, vaultId string) ([]*storage.VaultAsset, error) {
	assets := make([]*storage.VaultAsset, 0)
	res := s.Db.WithContext(ctx).Model(&storage.VaultAsset{}).Where("vault_id = ?", vaultId).Order("id asc").Find(&assets)
	if res.Error != nil {
		return nil, res.Error
	}
	return assets, nil
}

func (s *PostgresGovernanceStore) GetVaultAssets(ctx context.Context, ids []string) ([]*storage.VaultAsset, error) {
	assets := make([]*storage.VaultAsset, 0, len(ids))
	res := s.Db.WithContext(ctx).Model(&storage.VaultAsset{}).Where("id in ?", ids).Find(&assets)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(assets) != len(ids) {
		return nil, storage.ErrNotFound
	}
	return assets, nil
}

func (s *PostgresGovernanceStore) SaveVaultAssets(ctx context.Context, assets []*storage.VaultAsset) error {
	if len(assets) == 0 {
		return nil
	}
	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (any, error) {
		for _, a := range assets {
			if res := tx.Save(a); res.Error != nil {
				return nil, fmt.Errorf("failed to save vault asset '%s': %w", a.Id, res.Error)
			}
		}
		return nil, nil
	}, s.Db.WithContext(ctx), nil)
	return err
}

func (s *PostgresGovernanceStore) GetSnapshot(ctx context.Context, id string) (*storage.Snapshot, error) {
	snapshot := &storage.Snapshot{}
	res := s.Db.WithContext(ctx).Model(&storage.Snapshot{}).Where("id = ?", id).First(snapshot)
	if res.Error != nil {
		return nil, notFound(res.Error)
	}
	return snapshot, nil
}

func (s *PostgresGovernanceStore) GetLatestSnapshot(ctx context.Context, vaultId string) (*storage.Snapshot, error) {
	snapshot := &storage.Snapshot{}
	res := s.Db.WithContext(ctx).Model(&storage.Snapshot{}).
		Where("vault_id = ?", vaultId).
		Order("created_at desc").
		First(snapshot)
	if res.Error != nil {
		return nil, notFound(res.Error)
	}
	return snapshot, nil
}

func (s *PostgresGovernanceStore) SaveSnapshot(ctx context.Context, snapshot *storage.Snapshot) error {
	res := s.Db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(snapshot)
	if res.Error != nil {
		return fmt.Errorf("failed to save snapshot '%s': %w", snapshot.Id, res.Error)
	}
	return nil
}

func (s *PostgresGovernanceStore) CreateProposal(ctx context.Context, proposal *storage.Proposal) error {
	res := s.Db.WithContext(ctx).Model(&storage.Proposal{}).Clauses(clause.Returning{}).Create(proposal)
	if res.Error != nil {
		return fmt.Errorf("failed to create proposal: %w", res.Error)
	}
	return nil
}

func (s *PostgresGovernanceStore) GetProposal(ctx context.Context, id string) (*storage.Proposal, error) {
	proposal := &storage.Proposal{}
	res := s.Db.WithContext(ctx).Model(&storage.Proposal{}).Where("id = ?", id).First(proposal)
	if res.Error != nil {
		return nil, notFound(res.Error)
	}
	return proposal, nil
}

func (s *PostgresGovernanceStore) UpdateProposal(ctx context.Context, proposal *storage.Proposal) error {
	res := s.Db.WithContext(ctx).Model(&storage.Proposal{}).
		Where("id = ?", proposal.Id).
		Select("*").
		Omit("created_at").
		Updates(proposal)
	if res.Error != nil {
		return fmt.Errorf("failed to update proposal '%s': %w", proposal.Id, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresGovernanceStore) DeleteProposal(ctx context.Context, id string) error {
	res := s.Db.WithContext(ctx).Where("id = ?", id).Delete(&storage.Proposal{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete proposal '%s': %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresGovernanceStore) ListProposalsByStatus(ctx context.Context, statuses ...storage.ProposalStatus) ([]*storage.Proposal, error) {
	proposals := make([]*storage.Proposal, 0)
	res := s.Db.WithContext(ctx).Model(&storage.Proposal{}).
		Where("status in ?", statuses).
		Order("created_at asc, id asc").
		Find(&proposals)
	if res.Error != nil {
		return nil, res.Error
	}
	return proposals, nil
}

func (s *PostgresGovernanceStore) ListVaultProposals(ctx context.Context, vaultId string) ([]*storage.Proposal, error) {
	proposals := make([]*storage.Proposal, 0)
	res := s.Db.WithContext(ctx).Model(&storage.Proposal{}).
		Where("vault_id = ?", vaultId).
		Order("created_at asc, id asc").
		Find(&proposals)
	if res.Error != nil {
		return nil, res.Error
	}
	return proposals, nil
}

func (s *PostgresGovernanceStore) CreateVote(ctx context.Context, vote *storage.Vote) error {
	res := s.Db.WithContext(ctx).Model(&storage.Vote{}).Create(vote)
	if res.Error != nil {
		if postgres.IsDuplicateKeyError(res.Error) {
			return storage.ErrDuplicateVote
		}
		return fmt.Errorf("failed to create vote: %w", res.Error)
	}
	return nil
}

func (s *PostgresGovernanceStore) GetVote(ctx context.Context, proposalId string, voterAddress string) (*storage.Vote, error) {
	vote := &storage.Vote{}
	res := s.Db.WithContext(ctx).Model(&storage.Vote{}).
		Where("proposal_id = ? and voter_address = ?", proposalId, voterAddress).
		First(vote)
	if res.Error != nil {
		return nil, notFound(res.Error)
	}
	return vote, nil
}

func (s *PostgresGovernanceStore) ListVotes(ctx context.Context, proposalId string) ([]*storage.Vote, error) {
	votes := make([]*storage.Vote, 0)
	res := s.Db.WithContext(ctx).Model(&storage.Vote{}).
		Where("proposal_id = ?", proposalId).
		Order("voter_address asc").
		Find(&votes)
	if res.Error != nil {
		return nil, res.Error
	}
	return votes, nil
}

func (s *PostgresGovernanceStore) CreateClaims(ctx context.Context, claims []*storage.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	res := s.Db.WithContext(ctx).Model(&storage.Claim{}).CreateInBatches(claims, 500)
	if res.Error != nil {
		return fmt.Errorf("failed to create claims: %w", res.Error)
	}
	return nil
}

func (s *PostgresGovernanceStore) ListClaimsByIds(ctx context.Context, ids []string) ([]*storage.Claim, error) {
	claims := make([]*storage.Claim, 0, len(ids))
	res := s.Db.WithContext(ctx).Model(&storage.Claim{}).Where("id in ?", ids).Order("address asc").Find(&claims)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(claims) != len(ids) {
		return nil, storage.ErrNotFound
	}
	return claims, nil
}

func (s *PostgresGovernanceStore) ListProposalClaims(ctx context.Context, proposalId string) ([]*storage.Claim, error) {
	claims := make([]*storage.Claim, 0)
	res := s.Db.WithContext(ctx).Model(&storage.Claim{}).Where("proposal_id = ?", proposalId).Order("address asc").Find(&claims)
	if res.Error != nil {
		return nil, res.Error
	}
	return claims, nil
}

func (s *PostgresGovernanceStore) UpdateClaimsStatus(ctx context.Context, ids []string, status storage.ClaimStatus, transactionId string) error {
	updates := map[string]interface{}{"status": status, "updated_at": gorm.Expr("now()")}
	if transactionId != "" {
		updates["transaction_id"] = transactionId
	}
	res := s.Db.WithContext(ctx).Model(&storage.Claim{}).Where("id in ?", ids).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update claims: %w", res.Error)
	}
	return nil
}

func (s *PostgresGovernanceStore) CreateTransaction(ctx context.Context, tx *storage.Transaction) error {
	res := s.Db.WithContext(ctx).Model(&storage.Transaction{}).Create(tx)
	if res.Error != nil {
		return fmt.Errorf("failed to create transaction record: %w", res.Error)
	}
	return nil
}

func (s *PostgresGovernanceStore) ListProposalTransactions(ctx context.Context, proposalId string) ([]*storage.Transaction, error) {
	txs := make([]*storage.Transaction, 0)
	res := s.Db.WithContext(ctx).Model(&storage.Transaction{}).Where("proposal_id = ?", proposalId).Order("created_at asc").Find(&txs)
	if res.Error != nil {
		return nil, res.Error
	}
	return txs, nil
}
