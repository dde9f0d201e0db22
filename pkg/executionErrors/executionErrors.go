package executionErrors

import (
	"context"
	"errors"
	"net"
	"regexp"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
)

type Category string

const (
	Category_InsufficientFunds  Category = "insufficient_funds"
	Category_AssetUnavailable   Category = "asset_unavailable"
	Category_AssetAlreadyListed Category = "asset_already_listed"
	Category_PoolNotFound       Category = "pool_not_found"
	Category_NetworkError       Category = "network_error"
	Category_ApiError           Category = "api_error"
	Category_TransactionError   Category = "transaction_error"
	Category_WalletError        Category = "wallet_error"
	Category_InvalidAssetStatus Category = "invalid_asset_status"
	Category_ContractError      Category = "contract_error"
	Category_ExecutionError     Category = "execution_error"
)

// RejectionError is returned by executors when the proposal can never succeed and should move
// straight to REJECTED.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "proposal rejected: " + e.Reason
}

func Reject(reason string) error {
	return &RejectionError{Reason: reason}
}

func AsRejection(err error) (*RejectionError, bool) {
	var r *RejectionError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

type pattern struct {
	category Category
	regex    *regexp.Regexp
}

// patterns are checked in order, the first match wins.
var patterns = []pattern{
	{Category_InsufficientFunds, regexp.MustCompile(`(?i)insufficient (funds|balance)|not enough (ada|funds|lovelace)|utxo balance insufficient`)},
	{Category_AssetAlreadyListed, regexp.MustCompile(`(?i)already listed`)},
	{Category_PoolNotFound, regexp.MustCompile(`(?i)(pool|liquidity) not found|no (liquidity|pool)`)},
	{Category_AssetUnavailable, regexp.MustCompile(`(?i)asset (not found|unavailable)|not in (wallet|custody)|listing (not found|expired)`)},
	{Category_InvalidAssetStatus, regexp.MustCompile(`(?i)invalid asset status|asset status`)},
	{Category_WalletError, regexp.MustCompile(`(?i)wallet|signing key|private key|signature`)},
	{Category_ContractError, regexp.MustCompile(`(?i)script|validator|contract|redeemer|datum`)},
	{Category_TransactionError, regexp.MustCompile(`(?i)transaction|tx (build|submit)|submission|mempool|collateral`)},
	{Category_NetworkError, regexp.MustCompile(`(?i)timeout|timed out|econnrefused|connection (refused|reset)|network|socket hang up|no such host`)},
	{Category_ApiError, regexp.MustCompile(`(?i)status( code)? [45]\d\d|rate limit|bad gateway|service unavailable|api`)},
}

// Categorize maps a failure to its category, sentinel errors first and message patterns second.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, clientTypes.ErrInsufficientFunds):
		return Category_InsufficientFunds
	case errors.Is(err, clientTypes.ErrAlreadyListed):
		return Category_AssetAlreadyListed
	case errors.Is(err, clientTypes.ErrPoolNotFound):
		return Category_PoolNotFound
	case errors.Is(err, clientTypes.ErrAssetUnavailable):
		return Category_AssetUnavailable
	case errors.Is(err, clientTypes.ErrNoSigningKey):
		return Category_WalletError
	case errors.Is(err, context.DeadlineExceeded):
		return Category_NetworkError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Category_NetworkError
	}
	var apiErr *clientTypes.ApiError
	if errors.As(err, &apiErr) {
		return Category_ApiError
	}

	msg := err.Error()
	for _, p := range patterns {
		if p.regex.MatchString(msg) {
			return p.category
		}
	}
	return Category_ExecutionError
}

var friendlyMessages = map[Category]string{
	Category_InsufficientFunds:  "The vault does not have enough funds to cover this action and its fees.",
	Category_AssetUnavailable:   "One or more assets are no longer available.",
	Category_AssetAlreadyListed: "One or more assets are already listed on the marketplace.",
	Category_PoolNotFound:       "No liquidity pool was found to complete the swap.",
	Category_NetworkError:       "A network problem interrupted execution. It will be retried automatically.",
	Category_ApiError:           "An external service returned an error. It will be retried automatically.",
	Category_TransactionError:   "The transaction could not be built or submitted. It will be retried automatically.",
	Category_WalletError:        "The vault wallet could not sign the transaction.",
	Category_InvalidAssetStatus: "One or more assets are not in the expected state.",
	Category_ContractError:      "The on-chain contract rejected the transaction.",
	Category_ExecutionError:     "Execution failed unexpectedly.",
}

func FriendlyMessage(c Category) string {
	if m, ok := friendlyMessages[c]; ok {
		return m
	}
	return friendlyMessages[Category_ExecutionError]
}

// IsTransient reports categories that are expected to resolve on their own.
func IsTransient(c Category) bool {
	switch c {
	case Category_NetworkError, Category_ApiError, Category_TransactionError:
		return true
	}
	return false
}

// IsStructural reports failures that cannot resolve by retrying. A missing pool only counts once
// it has been seen again on a retry.
func IsStructural(c Category, retryCount int) bool {
	switch c {
	case Category_AssetAlreadyListed, Category_AssetUnavailable, Category_InvalidAssetStatus:
		return true
	case Category_PoolNotFound:
		return retryCount > 0
	}
	return false
}

// ToExecutionError builds the stored representation of a failure.
func ToExecutionError(err error, at time.Time) *storage.ExecutionError {
	c := Categorize(err)
	return &storage.ExecutionError{
		Category:        string(c),
		Message:         err.Error(),
		FriendlyMessage: FriendlyMessage(c),
		OccurredAt:      at,
	}
}
