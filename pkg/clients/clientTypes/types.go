package clientTypes

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPoolNotFound      = errors.New("liquidity pool not found")
	ErrAssetUnavailable  = errors.New("asset unavailable")
	ErrAlreadyListed     = errors.New("asset already listed")
	ErrNoSigningKey      = errors.New("no signing key configured")
)

// ApiError is returned by the HTTP clients when a service responds with a non 2xx status.
type ApiError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%s responded with status %d: %s", e.Service, e.StatusCode, e.Message)
}

type AssetAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type TxOutput struct {
	Address string        `json:"address"`
	Amount  string        `json:"amount"`
	Assets  []AssetAmount `json:"assets,omitempty"`
}

type BuildTransactionRequest struct {
	Outputs       []TxOutput        `json:"outputs"`
	Inputs        []string          `json:"inputs,omitempty"`
	ChangeAddress string            `json:"changeAddress"`
	Signers       []string          `json:"signers"`
	Network       string            `json:"network"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type UnsignedTransaction struct {
	TxHex string `json:"txHex"`
	Fee   string `json:"fee,omitempty"`
}

type TransactionService interface {
	Build(ctx context.Context, req *BuildTransactionRequest) (*UnsignedTransaction, error)
	Submit(ctx context.Context, signedTxHex string) (string, error)
	AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (bool, error)
}

type Holder struct {
	Address  string `json:"address"`
	Quantity string `json:"quantity"`
}

type ChainIndexer interface {
	// GetTokenHolders returns one page of holders, an empty page marks the end
	GetTokenHolders(ctx context.Context, tokenId string, page int, pageSize int) ([]Holder, error)
	GetAddressAssets(ctx context.Context, address string) ([]AssetAmount, error)
}

type Signer interface {
	Address() string
	// Sign returns the transaction with this signer's witness attached
	Sign(ctx context.Context, txHex string) (string, error)
}

type KeyProvider interface {
	GetVaultSigner(ctx context.Context, vaultId string) (Signer, error)
	GetAdminSigner(ctx context.Context) (Signer, error)
}

type ExtractionService interface {
	// ExtractAssets moves the units into the vault's payout wallet and returns the tx hash to await
	ExtractAssets(ctx context.Context, vaultId string, units []AssetAmount, destination string) (string, error)
}

type Listing struct {
	Market    string `json:"market"`
	Unit      string `json:"unit"`
	ListingId string `json:"listingId"`
	Price     string `json:"price"`
	Seller    string `json:"seller"`
}

type MarketOperation struct {
	Action    string `json:"action"`
	Unit      string `json:"unit"`
	Price     string `json:"price,omitempty"`
	ListingId string `json:"listingId,omitempty"`
}

type MarketTransactionRequest struct {
	Address string `json:"address"`
	// Operations are keyed by market, in the order they were requested
	Operations *orderedmap.OrderedMap[string, []MarketOperation] `json:"operations"`
	Network    string                       `json:"network"`
}

type SwapQuoteRequest struct {
	Address         string        `json:"address"`
	Units           []AssetAmount `json:"units"`
	OutputUnit      string        `json:"outputUnit"`
	SlippagePercent string        `json:"slippagePercent"`
	Network         string        `json:"network"`
}

type MarketplaceAdapter interface {
	// GetListing returns nil when the unit has no active listing on the market
	GetListing(ctx context.Context, market string, unit string) (*Listing, error)
	// BuildMarketTransaction returns ErrAssetUnavailable when a targeted listing is gone
	BuildMarketTransaction(ctx context.Context, req *MarketTransactionRequest) (*UnsignedTransaction, error)
	// BuildSwapTransaction returns ErrPoolNotFound when no pool can route the swap
	BuildSwapTransaction(ctx context.Context, req *SwapQuoteRequest) (*UnsignedTransaction, error)
}
