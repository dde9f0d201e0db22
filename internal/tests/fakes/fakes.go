// Package fakes holds in-memory stand-ins for the external services used in tests.
package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
)

type TransactionService struct {
	mu sync.Mutex

	Built     []*clientTypes.BuildTransactionRequest
	Submitted []string
	// BuildErrors and SubmitErrors are consumed in order, one per call
	BuildErrors  []error
	SubmitErrors []error
	Unconfirmed  map[string]bool
	counter      int
}

func NewTransactionService() *TransactionService {
	return &TransactionService{Unconfirmed: map[string]bool{}}
}

func (f *TransactionService) Build(_ context.Context, req *clientTypes.BuildTransactionRequest) (*clientTypes.UnsignedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.BuildErrors) > 0 {
		err := f.BuildErrors[0]
		f.BuildErrors = f.BuildErrors[1:]
		if err != nil {
			return nil, err
		}
	}
	f.Built = append(f.Built, req)
	f.counter++
	return &clientTypes.UnsignedTransaction{TxHex: fmt.Sprintf("tx%d", f.counter)}, nil
}

func (f *TransactionService) Submit(_ context.Context, signedTxHex string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.SubmitErrors) > 0 {
		err := f.SubmitErrors[0]
		f.SubmitErrors = f.SubmitErrors[1:]
		if err != nil {
			return "", err
		}
	}
	f.Submitted = append(f.Submitted, signedTxHex)
	return "hash-" + strings.SplitN(signedTxHex, "|", 2)[0], nil
}

func (f *TransactionService) AwaitConfirmation(_ context.Context, txHash string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Unconfirmed[txHash], nil
}

func (f *TransactionService) BuildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Built)
}

type Signer struct {
	Addr string
}

func (s *Signer) Address() string {
	return s.Addr
}

func (s *Signer) Sign(_ context.Context, txHex string) (string, error) {
	return txHex + "|" + s.Addr, nil
}

type KeyProvider struct {
	VaultSigners map[string]clientTypes.Signer
	Admin        clientTypes.Signer
}

func NewKeyProvider() *KeyProvider {
	return &KeyProvider{
		VaultSigners: map[string]clientTypes.Signer{},
		Admin:        &Signer{Addr: "admin"},
	}
}

func (k *KeyProvider) GetVaultSigner(_ context.Context, vaultId string) (clientTypes.Signer, error) {
	s, ok := k.VaultSigners[vaultId]
	if !ok {
		return &Signer{Addr: "custody-" + vaultId}, nil
	}
	return s, nil
}

func (k *KeyProvider) GetAdminSigner(_ context.Context) (clientTypes.Signer, error) {
	if k.Admin == nil {
		return nil, clientTypes.ErrNoSigningKey
	}
	return k.Admin, nil
}

type ChainIndexer struct {
	mu       sync.Mutex
	Holders  map[string][]clientTypes.Holder
	Holdings map[string][]clientTypes.AssetAmount
	Err      error
}

func NewChainIndexer() *ChainIndexer {
	return &ChainIndexer{
		Holders:  map[string][]clientTypes.Holder{},
		Holdings: map[string][]clientTypes.AssetAmount{},
	}
}

func (c *ChainIndexer) GetTokenHolders(_ context.Context, tokenId string, page int, pageSize int) ([]clientTypes.Holder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	all := c.Holders[tokenId]
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []clientTypes.Holder{}, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], nil
}

func (c *ChainIndexer) GetAddressAssets(_ context.Context, address string) ([]clientTypes.AssetAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Holdings[address], nil
}

// SetHoldings replaces the live holdings reported for an address.
func (c *ChainIndexer) SetHoldings(address string, assets []clientTypes.AssetAmount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Holdings[address] = assets
}

type ExtractionService struct {
	mu        sync.Mutex
	Calls     int
	Extracted []clientTypes.AssetAmount
	Err       error
	// Indexer receives the extracted units on the destination address when set
	Indexer *ChainIndexer
}

func (e *ExtractionService) ExtractAssets(_ context.Context, vaultId string, units []clientTypes.AssetAmount, destination string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return "", e.Err
	}
	e.Extracted = append(e.Extracted, units...)
	if e.Indexer != nil {
		e.Indexer.mu.Lock()
		e.Indexer.Holdings[destination] = append(e.Indexer.Holdings[destination], units...)
		e.Indexer.mu.Unlock()
	}
	return fmt.Sprintf("extract-%s-%d", vaultId, e.Calls), nil
}

type Marketplace struct {
	mu          sync.Mutex
	Listings    map[string]*clientTypes.Listing
	MarketTxs   []*clientTypes.MarketTransactionRequest
	SwapTxs     []*clientTypes.SwapQuoteRequest
	SwapErrors  []error
	MarketError error
}

func NewMarketplace() *Marketplace {
	return &Marketplace{Listings: map[string]*clientTypes.Listing{}}
}

func (m *Marketplace) GetListing(_ context.Context, market string, unit string) (*clientTypes.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Listings[market+"|"+unit], nil
}

func (m *Marketplace) BuildMarketTransaction(_ context.Context, req *clientTypes.MarketTransactionRequest) (*clientTypes.UnsignedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarketError != nil {
		return nil, m.MarketError
	}
	m.MarketTxs = append(m.MarketTxs, req)
	return &clientTypes.UnsignedTransaction{TxHex: fmt.Sprintf("market%d", len(m.MarketTxs))}, nil
}

func (m *Marketplace) BuildSwapTransaction(_ context.Context, req *clientTypes.SwapQuoteRequest) (*clientTypes.UnsignedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SwapErrors) > 0 {
		err := m.SwapErrors[0]
		m.SwapErrors = m.SwapErrors[1:]
		if err != nil {
			return nil, err
		}
	}
	m.SwapTxs = append(m.SwapTxs, req)
	return &clientTypes.UnsignedTransaction{TxHex: fmt.Sprintf("swap%d", len(m.SwapTxs))}, nil
}
