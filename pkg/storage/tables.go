package storage

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ProposalType string

const (
	ProposalType_Staking           ProposalType = "STAKING"
	ProposalType_Distribution      ProposalType = "DISTRIBUTION"
	ProposalType_Termination       ProposalType = "TERMINATION"
	ProposalType_Burning           ProposalType = "BURNING"
	ProposalType_MarketplaceAction ProposalType = "MARKETPLACE_ACTION"
	ProposalType_Expansion         ProposalType = "EXPANSION"
	// ProposalType_BuySell is kept for proposals created before marketplace actions existed
	ProposalType_BuySell ProposalType = "BUY_SELL"
)

var ProposalTypes = []ProposalType{
	ProposalType_Staking,
	ProposalType_Distribution,
	ProposalType_Termination,
	ProposalType_Burning,
	ProposalType_MarketplaceAction,
	ProposalType_Expansion,
	ProposalType_BuySell,
}

type ProposalStatus string

const (
	ProposalStatus_Unpaid   ProposalStatus = "UNPAID"
	ProposalStatus_Upcoming ProposalStatus = "UPCOMING"
	ProposalStatus_Active   ProposalStatus = "ACTIVE"
	ProposalStatus_Passed   ProposalStatus = "PASSED"
	ProposalStatus_Rejected ProposalStatus = "REJECTED"
	ProposalStatus_Executed ProposalStatus = "EXECUTED"
)

func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalStatus_Rejected || s == ProposalStatus_Executed
}

type VoteChoice string

const (
	VoteChoice_Yes     VoteChoice = "YES"
	VoteChoice_No      VoteChoice = "NO"
	VoteChoice_Abstain VoteChoice = "ABSTAIN"
)

type ClaimStatus string

const (
	ClaimStatus_Pending ClaimStatus = "PENDING"
	ClaimStatus_Claimed ClaimStatus = "CLAIMED"
	ClaimStatus_Failed  ClaimStatus = "FAILED"
)

type ClaimType string

const (
	ClaimType_Distribution ClaimType = "DISTRIBUTION"
)

type BatchStatus string

const (
	BatchStatus_Pending      BatchStatus = "PENDING"
	BatchStatus_Processing   BatchStatus = "PROCESSING"
	BatchStatus_Completed    BatchStatus = "COMPLETED"
	BatchStatus_Failed       BatchStatus = "FAILED"
	BatchStatus_RetryPending BatchStatus = "RETRY_PENDING"
)

type DistributionStatus string

const (
	DistributionStatus_Pending         DistributionStatus = "PENDING"
	DistributionStatus_InProgress      DistributionStatus = "IN_PROGRESS"
	DistributionStatus_Completed       DistributionStatus = "COMPLETED"
	DistributionStatus_Failed          DistributionStatus = "FAILED"
	DistributionStatus_PartiallyFailed DistributionStatus = "PARTIALLY_FAILED"
)

type VaultStatus string

const (
	VaultStatus_Locked      VaultStatus = "locked"
	VaultStatus_Governance  VaultStatus = "governance"
	VaultStatus_Expansion   VaultStatus = "expansion"
	VaultStatus_Terminating VaultStatus = "terminating"
	VaultStatus_Terminated  VaultStatus = "terminated"
)

type AssetKind string

const (
	AssetKind_NFT AssetKind = "nft"
	AssetKind_FT  AssetKind = "ft"
)

type AssetStatus string

const (
	AssetStatus_Locked    AssetStatus = "locked"
	AssetStatus_Extracted AssetStatus = "extracted"
	AssetStatus_Listed    AssetStatus = "listed"
	AssetStatus_Sold      AssetStatus = "sold"
	AssetStatus_Staked    AssetStatus = "staked"
	AssetStatus_Burned    AssetStatus = "burned"
	AssetStatus_Released  AssetStatus = "released"
)

type TransactionType string

const (
	TransactionType_Distribution TransactionType = "distribution"
	TransactionType_Marketplace  TransactionType = "marketplace"
	TransactionType_Swap         TransactionType = "swap"
	TransactionType_Burn         TransactionType = "burn"
	TransactionType_Stake        TransactionType = "stake"
	TransactionType_Termination  TransactionType = "termination"
	TransactionType_ProposalFee  TransactionType = "proposal_fee"
)

type Vault struct {
	Id             string `gorm:"primaryKey"`
	Name           string
	Status         VaultStatus
	TokenId        string
	CustodyAddress string
	PoolAddress    string
	BaseCurrency   string
	// Percent of total snapshot supply an address needs to create a proposal
	CreationThresholdPercent decimal.Decimal `gorm:"type:numeric"`
	// Percent of total snapshot supply an address needs to vote
	VoteThresholdPercent          decimal.Decimal `gorm:"type:numeric"`
	ExecutionThresholdPercent     decimal.Decimal `gorm:"type:numeric"`
	ParticipationThresholdPercent decimal.Decimal `gorm:"type:numeric"`
	CreatedAt                     time.Time
	UpdatedAt                     time.Time
}

type VaultAsset struct {
	Id            string `gorm:"primaryKey"`
	VaultId       string
	Kind          AssetKind
	Unit          string
	Quantity      string
	Status        AssetStatus
	ListingMarket string
	ListingPrice  string
	ListingTxHash string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Snapshot struct {
	Id              string `gorm:"primaryKey"`
	VaultId         string
	TokenId         string
	AddressBalances datatypes.JSONType[map[string]string]
	CreatedAt       time.Time
}

func NewSnapshot(id string, vaultId string, tokenId string, balances map[string]string) *Snapshot {
	return &Snapshot{
		Id:              id,
		VaultId:         vaultId,
		TokenId:         tokenId,
		AddressBalances: datatypes.NewJSONType(balances),
		CreatedAt:       time.Now(),
	}
}

func (s *Snapshot) Balances() map[string]string {
	b := s.AddressBalances.Data()
	if b == nil {
		return map[string]string{}
	}
	return b
}

// BalanceOf returns zero for addresses missing from the snapshot or holding an unparsable balance.
func (s *Snapshot) BalanceOf(address string) *big.Int {
	raw, ok := s.Balances()[address]
	if !ok {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return big.NewInt(0)
	}
	return v
}

// TotalPower sums every balance in the snapshot, excluding the given addresses.
func (s *Snapshot) TotalPower(excluded ...string) (*big.Int, error) {
	skip := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		if e != "" {
			skip[e] = true
		}
	}
	total := big.NewInt(0)
	for addr, raw := range s.Balances() {
		if skip[addr] {
			continue
		}
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("invalid balance '%s' for address %s", raw, addr)
		}
		total.Add(total, v)
	}
	return total, nil
}

type Proposal struct {
	Id          string `gorm:"primaryKey"`
	VaultId     string
	Title       string
	Description string
	Type        ProposalType
	Status      ProposalStatus
	StartDate   *time.Time
	EndDate     *time.Time
	SnapshotId  string
	CreatorId   string
	Payload     ProposalPayload `gorm:"type:jsonb;serializer:json"`
	Execution   ExecutionState  `gorm:"type:jsonb;serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (p *Proposal) Clone() *Proposal {
	b, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("failed to clone proposal %s: %v", p.Id, err))
	}
	c := &Proposal{}
	if err := json.Unmarshal(b, c); err != nil {
		panic(fmt.Sprintf("failed to clone proposal %s: %v", p.Id, err))
	}
	return c
}

type Vote struct {
	Id           string `gorm:"primaryKey"`
	ProposalId   string
	VoterId      string
	VoterAddress string
	VoteWeight   string
	Choice       VoteChoice
	CreatedAt    time.Time
}

type Claim struct {
	Id            string `gorm:"primaryKey"`
	UserId        *string
	VaultId       string
	ProposalId    string
	Type          ClaimType
	Status        ClaimStatus
	Amount        string
	Address       string
	BatchId       string
	TransactionId string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Transaction struct {
	Id         string `gorm:"primaryKey"`
	VaultId    string
	ProposalId string
	Type       TransactionType
	TxHash     string
	Metadata   datatypes.JSON
	CreatedAt  time.Time
}
