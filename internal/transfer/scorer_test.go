package transfer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rappenlabs/rappen/internal/model"
)

func candidateFor(debit, credit model.Transaction) model.TransferCandidate {
	return model.TransferCandidate{
		From:           debit,
		To:             credit,
		Amount:         math.Abs(debit.Amount),
		DateDifference: daysBetween(debit.Date, credit.Date),
	}
}

func TestScorer_ExactPairNextDayIsHighConfidence(t *testing.T) {
	s := NewScorer(DefaultSettings())

	debit := model.Transaction{ID: "t1", AccountID: "acc-a", Amount: -100.00, Date: day(1)}
	credit := model.Transaction{ID: "t2", AccountID: "acc-b", Amount: 100.00, Date: day(2)}
	candidate := candidateFor(debit, credit)

	confidence, err := s.Score(&candidate)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, confidence, 0.8)
	assert.Equal(t, model.BucketHigh, candidate.Bucket())
	assert.NotEmpty(t, candidate.Reason)
}

func TestScorer_SameDayExactMatchScoresHigher(t *testing.T) {
	s := NewScorer(DefaultSettings())

	sameDay := candidateFor(
		model.Transaction{ID: "t1", AccountID: "acc-a", Amount: -100.00, Date: day(1)},
		model.Transaction{ID: "t2", AccountID: "acc-b", Amount: 100.00, Date: day(1)},
	)
	nextDay := candidateFor(
		model.Transaction{ID: "t3", AccountID: "acc-a", Amount: -100.00, Date: day(1)},
		model.Transaction{ID: "t4", AccountID: "acc-b", Amount: 100.00, Date: day(2)},
	)

	sameScore, err := s.Score(&sameDay)
	require.NoError(t, err)
	nextScore, err := s.Score(&nextDay)
	require.NoError(t, err)

	assert.Greater(t, sameScore, nextScore)
}

func TestScorer_RuleMatchSetsRuleAndAutoConfirm(t *testing.T) {
	s := NewScorer(DefaultSettings())

	candidate := candidateFor(
		model.Transaction{ID: "t1", AccountID: "acc-a", Amount: -500.00, Date: day(1), Description: "Uebertrag SPARKONTO"},
		model.Transaction{ID: "t2", AccountID: "acc-b", Amount: 500.00, Date: day(1), Description: "Eingang Sparkonto"},
	)

	confidence, err := s.Score(&candidate)
	require.NoError(t, err)

	assert.Equal(t, "Savings Keywords", candidate.MatchedRule)
	assert.True(t, candidate.AutoConfirm)
	assert.GreaterOrEqual(t, confidence, 0.8)
}

func TestScorer_BoundsAndDeterminism(t *testing.T) {
	s := NewScorer(DefaultSettings())

	pairs := []model.TransferCandidate{
		candidateFor(
			model.Transaction{ID: "a", AccountID: "x", Amount: -10.00, Date: day(1)},
			model.Transaction{ID: "b", AccountID: "y", Amount: 9.60, Date: day(7)},
		),
		candidateFor(
			model.Transaction{ID: "c", AccountID: "x", Amount: -2500.00, Date: day(3), Description: "internal transfer"},
			model.Transaction{ID: "d", AccountID: "y", Amount: 2500.00, Date: day(3), Description: "internal transfer"},
		),
	}

	for _, p := range pairs {
		first := p
		score1, err := s.Score(&first)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score1, 0.0)
		assert.LessOrEqual(t, score1, 1.0)

		second := p
		score2, err := s.Score(&second)
		require.NoError(t, err)
		assert.Equal(t, score1, score2)
	}
}

func TestScorer_InvalidInput(t *testing.T) {
	s := NewScorer(DefaultSettings())

	tests := []struct {
		name      string
		candidate model.TransferCandidate
	}{
		{
			"NaN amount",
			candidateFor(
				model.Transaction{ID: "t1", AccountID: "acc-a", Amount: math.NaN(), Date: day(1)},
				model.Transaction{ID: "t2", AccountID: "acc-b", Amount: 100.00, Date: day(1)},
			),
		},
		{
			"missing date",
			candidateFor(
				model.Transaction{ID: "t1", AccountID: "acc-a", Amount: -100.00, Date: time.Time{}},
				model.Transaction{ID: "t2", AccountID: "acc-b", Amount: 100.00, Date: day(1)},
			),
		},
		{
			"same signs",
			candidateFor(
				model.Transaction{ID: "t1", AccountID: "acc-a", Amount: -100.00, Date: day(1)},
				model.Transaction{ID: "t2", AccountID: "acc-b", Amount: -100.00, Date: day(1)},
			),
		},
		{
			"shared account",
			candidateFor(
				model.Transaction{ID: "t1", AccountID: "acc-a", Amount: -100.00, Date: day(1)},
				model.Transaction{ID: "t2", AccountID: "acc-a", Amount: 100.00, Date: day(1)},
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Score(&tt.candidate)
			assert.Error(t, err)
		})
	}
}

func TestApplyPatternBoost(t *testing.T) {
	pattern := &model.TransferPattern{
		ID:                  "pat-1",
		ConfidenceThreshold: 0.9,
		TimesMatched:        10,
		AutoConfirm:         true,
	}

	candidate := model.TransferCandidate{Confidence: 0.6}
	ApplyPatternBoost(&candidate, pattern)

	// Half the gap toward 0.9 plus the full history bonus.
	assert.InDelta(t, 0.8, candidate.Confidence, 1e-9)
	assert.Equal(t, "pat-1", candidate.PatternID)
	assert.True(t, candidate.AutoConfirm)

	// Already above threshold: only the history bonus applies, capped at 1.
	high := model.TransferCandidate{Confidence: 0.98}
	ApplyPatternBoost(&high, pattern)
	assert.InDelta(t, 1.0, high.Confidence, 1e-9)
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, daysBetween(day(1), day(1)))
	assert.Equal(t, 1, daysBetween(day(1), day(2)))
	assert.Equal(t, 1, daysBetween(day(2), day(1)))
	assert.Equal(t, 7, daysBetween(day(1), day(8)))
}
