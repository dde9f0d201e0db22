package distribution

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/samber/lo"
)

type Share struct {
	Address string
	Balance *big.Int
	Amount  *big.Int
}

// Plan is the split of a payout across snapshot holders.
type Plan struct {
	TotalAmount *big.Int
	TotalSupply *big.Int
	// Shares holds every holder at or above the minimum transfer amount, ordered by address
	Shares []Share
	// Excluded holds holders whose share falls below the minimum, ordered by address
	Excluded    []Share
	Distributed *big.Int
	Remainder   *big.Int
	Warnings    []string
}

// CalculateShares splits totalAmount proportionally to balances using floor division.
// Addresses in excluded (e.g. liquidity pools) take no part in the split.
func CalculateShares(totalAmount *big.Int, balances map[string]string, excluded []string, minimum *big.Int) (*Plan, error) {
	if totalAmount == nil || totalAmount.Sign() <= 0 {
		return nil, fmt.Errorf("distribution amount must be positive")
	}
	if minimum == nil {
		minimum = big.NewInt(0)
	}

	holders := make([]Share, 0, len(balances))
	supply := big.NewInt(0)
	for addr, raw := range balances {
		if lo.Contains(excluded, addr) {
			continue
		}
		bal, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("invalid balance '%s' for address %s", raw, addr)
		}
		if bal.Sign() <= 0 {
			continue
		}
		supply.Add(supply, bal)
		holders = append(holders, Share{Address: addr, Balance: bal})
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].Address < holders[j].Address })

	plan := &Plan{
		TotalAmount: new(big.Int).Set(totalAmount),
		TotalSupply: supply,
		Shares:      make([]Share, 0, len(holders)),
		Excluded:    make([]Share, 0),
		Distributed: big.NewInt(0),
	}
	if supply.Sign() == 0 {
		plan.Remainder = new(big.Int).Set(totalAmount)
		plan.Warnings = append(plan.Warnings, "snapshot has no eligible holders")
		return plan, nil
	}

	for _, h := range holders {
		amount := new(big.Int).Mul(totalAmount, h.Balance)
		amount.Quo(amount, supply)
		h.Amount = amount
		if amount.Cmp(minimum) < 0 {
			plan.Excluded = append(plan.Excluded, h)
			continue
		}
		plan.Shares = append(plan.Shares, h)
		plan.Distributed.Add(plan.Distributed, amount)
	}
	plan.Remainder = new(big.Int).Sub(totalAmount, plan.Distributed)

	if len(plan.Excluded) > 0 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"%d holder(s) would receive less than the minimum transfer amount of %s and will be skipped",
			len(plan.Excluded), minimum.String(),
		))
	}
	if len(plan.Shares) == 0 {
		plan.Warnings = append(plan.Warnings, "no holder would receive the minimum transfer amount")
	}
	return plan, nil
}
