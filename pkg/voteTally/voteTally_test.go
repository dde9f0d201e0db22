package voteTally

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func vote(weight int64, choice storage.VoteChoice) WeightedVote {
	return WeightedVote{Weight: big.NewInt(weight), Choice: choice}
}

func thresholds(execution int64, participation int64) Thresholds {
	return Thresholds{
		ExecutionPercent:     decimal.NewFromInt(execution),
		ParticipationPercent: decimal.NewFromInt(participation),
	}
}

func Test_Tally(t *testing.T) {
	t.Run("Passes when both thresholds are met", func(t *testing.T) {
		res, err := Tally([]WeightedVote{
			vote(300, storage.VoteChoice_Yes),
			vote(100, storage.VoteChoice_No),
		}, thresholds(50, 20), big.NewInt(1000))
		assert.Nil(t, err)

		assert.True(t, res.ParticipationPercent.Equal(decimal.NewFromInt(40)))
		assert.True(t, res.ExecutionRatioPercent.Equal(decimal.NewFromInt(75)))
		assert.True(t, res.Yes.Percent.Equal(decimal.NewFromInt(30)))
		assert.True(t, res.No.Percent.Equal(decimal.NewFromInt(10)))
		assert.True(t, res.Passed)
	})
	t.Run("Rejects low participation regardless of a unanimous yes", func(t *testing.T) {
		res, err := Tally([]WeightedVote{vote(50, storage.VoteChoice_Yes)}, thresholds(50, 20), big.NewInt(1000))
		assert.Nil(t, err)

		assert.True(t, res.ParticipationPercent.Equal(decimal.NewFromInt(5)))
		assert.True(t, res.ExecutionRatioPercent.Equal(decimal.NewFromInt(100)))
		assert.False(t, res.MeetsParticipation)
		assert.True(t, res.MeetsExecution)
		assert.False(t, res.Passed)
	})
	t.Run("Thresholds are inclusive at the exact boundary", func(t *testing.T) {
		res, err := Tally([]WeightedVote{
			vote(100, storage.VoteChoice_Yes),
			vote(100, storage.VoteChoice_No),
		}, thresholds(50, 20), big.NewInt(1000))
		assert.Nil(t, err)
		assert.True(t, res.MeetsParticipation)
		assert.True(t, res.MeetsExecution)
		assert.True(t, res.Passed)
	})
	t.Run("Boundary checks do not truncate", func(t *testing.T) {
		// 2/3 yes is 66.666...%, just under a 66.6667% threshold
		res, err := Tally([]WeightedVote{
			vote(2, storage.VoteChoice_Yes),
			vote(1, storage.VoteChoice_No),
		}, Thresholds{
			ExecutionPercent:     decimal.RequireFromString("66.6667"),
			ParticipationPercent: decimal.Zero,
		}, nil)
		assert.Nil(t, err)
		assert.False(t, res.MeetsExecution)

		res, err = Tally([]WeightedVote{
			vote(2, storage.VoteChoice_Yes),
			vote(1, storage.VoteChoice_No),
		}, Thresholds{
			ExecutionPercent:     decimal.RequireFromString("66.6666"),
			ParticipationPercent: decimal.Zero,
		}, nil)
		assert.Nil(t, err)
		assert.True(t, res.MeetsExecution)
	})
	t.Run("All abstain satisfies participation but never execution", func(t *testing.T) {
		res, err := Tally([]WeightedVote{vote(900, storage.VoteChoice_Abstain)}, thresholds(0, 20), big.NewInt(1000))
		assert.Nil(t, err)
		assert.True(t, res.MeetsParticipation)
		assert.False(t, res.MeetsExecution)
		assert.False(t, res.Passed)
		assert.True(t, res.ExecutionRatioPercent.IsZero())
	})
	t.Run("Zero total power falls back to votes cast", func(t *testing.T) {
		res, err := Tally([]WeightedVote{
			vote(3, storage.VoteChoice_Yes),
			vote(1, storage.VoteChoice_Abstain),
		}, thresholds(50, 20), big.NewInt(0))
		assert.Nil(t, err)
		assert.Equal(t, "4", res.Denominator.String())
		assert.True(t, res.Yes.Percent.Equal(decimal.NewFromInt(75)))
		assert.True(t, res.ParticipationPercent.Equal(decimal.NewFromInt(100)))
		assert.True(t, res.Passed)
	})
	t.Run("No votes and no power fails", func(t *testing.T) {
		res, err := Tally(nil, thresholds(50, 20), nil)
		assert.Nil(t, err)
		assert.False(t, res.Passed)
		assert.True(t, res.ParticipationPercent.IsZero())
	})
	t.Run("Handles supplies beyond 64 bits", func(t *testing.T) {
		huge, _ := new(big.Int).SetString("1000000000000000000000000000000", 10)
		third := new(big.Int).Quo(huge, big.NewInt(3))
		res, err := Tally([]WeightedVote{
			{Weight: third, Choice: storage.VoteChoice_Yes},
		}, thresholds(50, 33), huge)
		assert.Nil(t, err)
		assert.True(t, res.ParticipationPercent.Equal(decimal.RequireFromString("33.3333")))
		assert.True(t, res.MeetsParticipation)
		assert.True(t, res.Passed)
	})
	t.Run("Invalid input", func(t *testing.T) {
		_, err := Tally([]WeightedVote{vote(-1, storage.VoteChoice_Yes)}, thresholds(50, 20), nil)
		assert.ErrorIs(t, err, ErrNegativeWeight)

		_, err = Tally([]WeightedVote{vote(1, "MAYBE")}, thresholds(50, 20), nil)
		assert.ErrorIs(t, err, ErrUnknownChoice)

		_, err = Tally(nil, thresholds(101, 20), nil)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})
}

func Test_TallyPercentagesNeverExceedTotal(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	choices := []storage.VoteChoice{storage.VoteChoice_Yes, storage.VoteChoice_No, storage.VoteChoice_Abstain}

	for i := 0; i < 500; i++ {
		votes := make([]WeightedVote, 0)
		total := big.NewInt(0)
		for j := 0; j < r.Intn(20)+1; j++ {
			w := big.NewInt(r.Int63n(1_000_000_000))
			total.Add(total, w)
			votes = append(votes, WeightedVote{Weight: w, Choice: choices[r.Intn(3)]})
		}
		total.Add(total, big.NewInt(r.Int63n(1_000_000_000)))

		res, err := Tally(votes, thresholds(50, 20), total)
		assert.Nil(t, err)

		sum := res.Yes.Percent.Add(res.No.Percent).Add(res.Abstain.Percent)
		assert.True(t, sum.LessThanOrEqual(decimal.NewFromInt(100)), "sum %s exceeds 100", sum)
		if res.Yes.Total.Sign() == 0 && res.No.Total.Sign() == 0 {
			assert.False(t, res.MeetsExecution)
		}
	}
}

func Test_FromStoredVotes(t *testing.T) {
	votes, err := FromStoredVotes([]*storage.Vote{{Id: "1", VoteWeight: "123456789012345678901234567890", Choice: storage.VoteChoice_Yes}})
	assert.Nil(t, err)
	assert.Equal(t, "123456789012345678901234567890", votes[0].Weight.String())

	_, err = FromStoredVotes([]*storage.Vote{{Id: "2", VoteWeight: "1.5"}})
	assert.NotNil(t, err)
}
