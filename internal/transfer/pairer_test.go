package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rappenlabs/rappen/internal/model"
)

func day(n int) time.Time {
	return time.Date(2026, 3, n, 0, 0, 0, 0, time.UTC)
}

func tx(id, accountID string, amount float64, date time.Time) model.Transaction {
	return model.Transaction{ID: id, AccountID: accountID, Amount: amount, Date: date, Description: "test"}
}

func TestPairer_FindsOppositeSignedPair(t *testing.T) {
	p := NewPairer(DefaultSettings())

	candidates := p.FindCandidates([]model.Transaction{
		tx("t1", "acc-a", -100.00, day(1)),
		tx("t2", "acc-b", 100.00, day(2)),
	})

	require.Len(t, candidates, 1)
	c := candidates[0]
	assert.Equal(t, "t1", c.From.ID)
	assert.Equal(t, "t2", c.To.ID)
	assert.InDelta(t, 100.00, c.Amount, 1e-9)
	assert.Equal(t, 1, c.DateDifference)
}

func TestPairer_NoReversedDuplicate(t *testing.T) {
	p := NewPairer(DefaultSettings())

	candidates := p.FindCandidates([]model.Transaction{
		tx("t1", "acc-a", -50.00, day(1)),
		tx("t2", "acc-b", 50.00, day(1)),
	})

	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].From.IsDebit())
	assert.False(t, candidates[0].To.IsDebit())
}

func TestPairer_AmbiguityIsSurfaced(t *testing.T) {
	p := NewPairer(DefaultSettings())

	// One debit, two plausible credits: both pairs are reported.
	candidates := p.FindCandidates([]model.Transaction{
		tx("t1", "acc-a", -200.00, day(1)),
		tx("t2", "acc-b", 200.00, day(1)),
		tx("t3", "acc-c", 200.00, day(2)),
	})

	assert.Len(t, candidates, 2)
}

func TestPairer_SkipsSameAccount(t *testing.T) {
	p := NewPairer(DefaultSettings())

	candidates := p.FindCandidates([]model.Transaction{
		tx("t1", "acc-a", -75.00, day(1)),
		tx("t2", "acc-a", 75.00, day(1)),
	})

	assert.Empty(t, candidates)
}

func TestPairer_SkipsMissingAccountOrDate(t *testing.T) {
	p := NewPairer(DefaultSettings())

	noAccount := tx("t1", "", -75.00, day(1))
	noDate := tx("t2", "acc-b", 75.00, time.Time{})

	assert.Empty(t, p.FindCandidates([]model.Transaction{noAccount, tx("t3", "acc-b", 75.00, day(1))}))
	assert.Empty(t, p.FindCandidates([]model.Transaction{tx("t4", "acc-a", -75.00, day(1)), noDate}))
}

func TestPairer_SkipsConfirmedTransferLegs(t *testing.T) {
	p := NewPairer(DefaultSettings())

	debit := tx("t1", "acc-a", -75.00, day(1))
	debit.IsTransfer = true

	assert.Empty(t, p.FindCandidates([]model.Transaction{debit, tx("t2", "acc-b", 75.00, day(1))}))
}

func TestPairer_DateWindow(t *testing.T) {
	p := NewPairer(DefaultSettings())

	inside := p.FindCandidates([]model.Transaction{
		tx("t1", "acc-a", -100.00, day(1)),
		tx("t2", "acc-b", 100.00, day(8)),
	})
	assert.Len(t, inside, 1, "seven days apart is inside the default window")

	outside := p.FindCandidates([]model.Transaction{
		tx("t1", "acc-a", -100.00, day(1)),
		tx("t2", "acc-b", 100.00, day(9)),
	})
	assert.Empty(t, outside)
}

func TestPairer_AmountTolerances(t *testing.T) {
	settings := DefaultSettings()
	p := NewPairer(settings)

	tests := []struct {
		name   string
		debit  float64
		credit float64
		want   int
	}{
		{"exact", -100.00, 100.00, 1},
		{"within absolute tolerance", -100.00, 99.60, 1},
		{"within relative tolerance", -1000.00, 960.00, 1},
		{"beyond divergence cap", -100.00, 60.00, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := p.FindCandidates([]model.Transaction{
				tx("t1", "acc-a", tt.debit, day(1)),
				tx("t2", "acc-b", tt.credit, day(1)),
			})
			assert.Len(t, candidates, tt.want)
		})
	}
}

func TestPairer_RuleFeeToleranceWidensMatch(t *testing.T) {
	settings := DefaultSettings()
	p := NewPairer(settings)

	// 4.50 difference: beyond absolute and relative tolerance at this size,
	// but inside the Revolut rule's fee allowance.
	debit := tx("t1", "acc-a", -54.50, day(1))
	debit.Description = "REVOLUT top up"
	credit := tx("t2", "acc-b", 50.00, day(1))
	credit.Description = "Incoming"

	candidates := p.FindCandidates([]model.Transaction{debit, credit})
	assert.Len(t, candidates, 1)

	// Without the rule description the same amounts do not pair.
	plainDebit := tx("t3", "acc-a", -54.50, day(1))
	assert.Empty(t, p.FindCandidates([]model.Transaction{plainDebit, credit}))
}
