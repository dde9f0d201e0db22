package _202610010900_governanceTables

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`create table if not exists vaults (
			id varchar primary key,
			name varchar not null default '',
			status varchar not null,
			token_id varchar not null,
			custody_address varchar not null default '',
			pool_address varchar not null default '',
			base_currency varchar not null default 'lovelace',
			creation_threshold_percent numeric not null default 0,
			vote_threshold_percent numeric not null default 0,
			execution_threshold_percent numeric not null default 0,
			participation_threshold_percent numeric not null default 0,
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default null
		)`,
		`create table if not exists vault_assets (
			id varchar primary key,
			vault_id varchar not null references vaults(id) on delete cascade,
			kind varchar not null,
			unit varchar not null,
			quantity numeric not null default 1,
			status varchar not null,
			listing_market varchar not null default '',
			listing_price varchar not null default '',
			listing_tx_hash varchar not null default '',
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default null
		)`,
		`create table if not exists snapshots (
			id varchar primary key,
			vault_id varchar not null references vaults(id) on delete cascade,
			token_id varchar not null,
			address_balances jsonb not null,
			created_at timestamp with time zone default current_timestamp
		)`,
		`create table if not exists proposals (
			id varchar primary key,
			vault_id varchar not null references vaults(id) on delete cascade,
			title varchar not null default '',
			description text not null default '',
			type varchar not null,
			status varchar not null,
			start_date timestamp with time zone default null,
			end_date timestamp with time zone default null,
			snapshot_id varchar not null default '',
			creator_id varchar not null default '',
			payload jsonb not null,
			execution jsonb not null,
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default null
		)`,
		`create table if not exists votes (
			id varchar primary key,
			proposal_id varchar not null references proposals(id) on delete cascade,
			voter_id varchar not null default '',
			voter_address varchar not null,
			vote_weight numeric not null,
			choice varchar not null,
			created_at timestamp with time zone default current_timestamp,
			unique(proposal_id, voter_address)
		)`,
		`create table if not exists claims (
			id varchar primary key,
			user_id varchar default null,
			vault_id varchar not null,
			proposal_id varchar not null,
			type varchar not null,
			status varchar not null,
			amount numeric not null,
			address varchar not null,
			batch_id varchar not null default '',
			transaction_id varchar not null default '',
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default null
		)`,
		`create table if not exists transactions (
			id varchar primary key,
			vault_id varchar not null,
			proposal_id varchar not null default '',
			type varchar not null,
			tx_hash varchar not null,
			metadata jsonb,
			created_at timestamp with time zone default current_timestamp
		)`,
	}
	for _, query := range queries {
		if err := grm.Exec(query).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610010900_governanceTables"
}
