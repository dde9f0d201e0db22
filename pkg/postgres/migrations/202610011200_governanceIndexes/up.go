package _202610011200_governanceIndexes

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`create index if not exists idx_proposals_status on proposals(status)`,
		`create index if not exists idx_proposals_vault_id on proposals(vault_id)`,
		`create index if not exists idx_snapshots_vault_created on snapshots(vault_id, created_at desc)`,
		`create index if not exists idx_claims_proposal_id on claims(proposal_id)`,
		`create index if not exists idx_transactions_tx_hash on transactions(tx_hash)`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610011200_governanceIndexes"
}
