package transfer

import (
	"log/slog"
	"math"
	"time"

	"github.com/rappenlabs/rappen/internal/model"
)

// Pairer finds debit/credit pairs across accounts that could be the two
// legs of one transfer. The scan is a naive O(n²) pass over the window;
// personal-finance volumes are thousands of transactions, not millions.
type Pairer struct {
	settings Settings
}

// NewPairer creates a pairer with the given settings.
func NewPairer(settings Settings) *Pairer {
	return &Pairer{settings: settings}
}

// FindCandidates pairs every debit with every qualifying credit. Direction
// is determined by amount sign, so a pair is only ever emitted once and no
// reversed duplicate exists. A transaction may appear in several candidates;
// ambiguity is surfaced to the reviewer, not resolved here. Transactions
// missing an account or a date are skipped with a log line, and legs already
// bound to a transfer are ignored.
func (p *Pairer) FindCandidates(transactions []model.Transaction) []model.TransferCandidate {
	var debits, credits []model.Transaction
	for _, tx := range transactions {
		if tx.AccountID == "" || tx.Date.IsZero() {
			slog.Debug("skipping transaction without account or date",
				"transaction_id", tx.ID)
			continue
		}
		if tx.IsTransfer || tx.Amount == 0 {
			continue
		}
		if tx.IsDebit() {
			debits = append(debits, tx)
		} else {
			credits = append(credits, tx)
		}
	}

	var candidates []model.TransferCandidate
	for _, debit := range debits {
		for _, credit := range credits {
			if debit.AccountID == credit.AccountID {
				continue
			}

			dateDiff := daysBetween(debit.Date, credit.Date)
			if dateDiff > p.settings.DaysLookback {
				continue
			}
			if !p.amountsPlausible(debit, credit) {
				continue
			}

			candidates = append(candidates, model.TransferCandidate{
				From:           debit,
				To:             credit,
				Amount:         math.Abs(debit.Amount),
				DateDifference: dateDiff,
			})
		}
	}
	return candidates
}

// amountsPlausible checks the two legs' amounts against the absolute
// tolerance, the relative tolerance, and any fee-allowing rule that matches
// either description. Differences above the hard divergence cap are always
// rejected.
func (p *Pairer) amountsPlausible(debit, credit model.Transaction) bool {
	amountDiff := math.Abs(math.Abs(debit.Amount) - math.Abs(credit.Amount))
	maxAmount := math.Max(math.Abs(debit.Amount), math.Abs(credit.Amount))
	if maxAmount == 0 {
		return false
	}

	if amountDiff/maxAmount > maxAmountDivergence {
		return false
	}
	if amountDiff <= p.settings.AmountTolerance {
		return true
	}
	if amountDiff/maxAmount <= p.settings.PercentageTolerance {
		return true
	}
	for _, rule := range p.settings.enabledRules() {
		if rule.AllowFees && amountDiff <= rule.MaxFeeTolerance &&
			rule.MatchesEither(debit.Description, credit.Description) {
			return true
		}
	}
	return false
}

// daysBetween returns the absolute calendar distance in whole days.
func daysBetween(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
