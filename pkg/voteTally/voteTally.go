// Package voteTally computes proposal vote results. Weights are arbitrary precision integers and
// threshold checks are exact: a result passes when participation and execution ratio are both
// greater than or equal to their thresholds.
package voteTally

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/shopspring/decimal"
)

// percentScale is the number of decimal places kept in reported percentages.
const percentScale = 4

var (
	ErrNegativeWeight   = errors.New("vote weight must not be negative")
	ErrUnknownChoice    = errors.New("unknown vote choice")
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")
)

type WeightedVote struct {
	Weight *big.Int
	Choice storage.VoteChoice
}

type Thresholds struct {
	// ExecutionPercent is the minimum yes / (yes + no) ratio, abstentions excluded
	ExecutionPercent decimal.Decimal
	// ParticipationPercent is the minimum share of total power that must have voted
	ParticipationPercent decimal.Decimal
}

type ChoiceResult struct {
	Total   *big.Int
	Percent decimal.Decimal
}

type Result struct {
	Yes     ChoiceResult
	No      ChoiceResult
	Abstain ChoiceResult

	TotalCast   *big.Int
	Denominator *big.Int

	ParticipationPercent  decimal.Decimal
	ExecutionRatioPercent decimal.Decimal

	MeetsParticipation bool
	MeetsExecution     bool
	Passed             bool
}

var hundred = big.NewInt(100)

// floorPercent returns floor(part * 100 / whole) with percentScale decimals, zero when whole is zero.
func floorPercent(part *big.Int, whole *big.Int) decimal.Decimal {
	if whole.Sign() == 0 {
		return decimal.Zero
	}
	scaled := new(big.Int).Mul(part, hundred)
	scaled.Mul(scaled, new(big.Int).Exp(big.NewInt(10), big.NewInt(percentScale), nil))
	scaled.Quo(scaled, whole)
	return decimal.NewFromBigInt(scaled, -percentScale)
}

// meets reports part / whole * 100 >= threshold without rounding.
func meets(part *big.Int, whole *big.Int, threshold decimal.Decimal) bool {
	if whole.Sign() == 0 {
		return false
	}
	ratio := new(big.Rat).SetFrac(new(big.Int).Mul(part, hundred), whole)
	return ratio.Cmp(threshold.Rat()) >= 0
}

func validateThreshold(name string, t decimal.Decimal) error {
	if t.IsNegative() || t.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s %s: %w", name, t.String(), ErrInvalidThreshold)
	}
	return nil
}

// Tally sums the votes and evaluates both thresholds. Percentages are relative to totalPower,
// falling back to the votes cast when totalPower is nil, zero or smaller than the votes cast.
func Tally(votes []WeightedVote, thresholds Thresholds, totalPower *big.Int) (*Result, error) {
	if err := validateThreshold("execution threshold", thresholds.ExecutionPercent); err != nil {
		return nil, err
	}
	if err := validateThreshold("participation threshold", thresholds.ParticipationPercent); err != nil {
		return nil, err
	}

	yes, no, abstain := big.NewInt(0), big.NewInt(0), big.NewInt(0)
	for _, v := range votes {
		if v.Weight == nil || v.Weight.Sign() < 0 {
			return nil, ErrNegativeWeight
		}
		switch v.Choice {
		case storage.VoteChoice_Yes:
			yes.Add(yes, v.Weight)
		case storage.VoteChoice_No:
			no.Add(no, v.Weight)
		case storage.VoteChoice_Abstain:
			abstain.Add(abstain, v.Weight)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownChoice, v.Choice)
		}
	}

	cast := new(big.Int).Add(yes, no)
	decisive := new(big.Int).Set(cast)
	cast.Add(cast, abstain)

	denominator := new(big.Int).Set(cast)
	if totalPower != nil && totalPower.Cmp(cast) >= 0 && totalPower.Sign() > 0 {
		denominator.Set(totalPower)
	}

	res := &Result{
		Yes:                   ChoiceResult{Total: yes, Percent: floorPercent(yes, denominator)},
		No:                    ChoiceResult{Total: no, Percent: floorPercent(no, denominator)},
		Abstain:               ChoiceResult{Total: abstain, Percent: floorPercent(abstain, denominator)},
		TotalCast:             cast,
		Denominator:           denominator,
		ParticipationPercent:  floorPercent(cast, denominator),
		ExecutionRatioPercent: floorPercent(yes, decisive),
	}

	if denominator.Sign() == 0 {
		res.MeetsParticipation = thresholds.ParticipationPercent.IsZero()
	} else {
		res.MeetsParticipation = meets(cast, denominator, thresholds.ParticipationPercent)
	}
	// abstain-only or empty votes never satisfy the execution ratio
	res.MeetsExecution = decisive.Sign() > 0 && meets(yes, decisive, thresholds.ExecutionPercent)
	res.Passed = res.MeetsParticipation && res.MeetsExecution
	return res, nil
}

// FromStoredVotes converts persisted votes into weighted votes.
func FromStoredVotes(votes []*storage.Vote) ([]WeightedVote, error) {
	out := make([]WeightedVote, 0, len(votes))
	for _, v := range votes {
		w, ok := new(big.Int).SetString(v.VoteWeight, 10)
		if !ok {
			return nil, fmt.Errorf("invalid vote weight '%s' for vote %s", v.VoteWeight, v.Id)
		}
		out = append(out, WeightedVote{Weight: w, Choice: v.Choice})
	}
	return out, nil
}
