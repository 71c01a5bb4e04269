package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rappenlabs/rappen/internal/common"
	"github.com/rappenlabs/rappen/internal/model"
)

// Store provides everything the detector needs from persistence. Creating
// and deleting transfers must update both legs atomically; the storage
// layer serializes those writes.
type Store interface {
	PatternStore
	GetTransactionsSince(ctx context.Context, since time.Time) ([]model.Transaction, error)
	GetActiveAccounts(ctx context.Context) ([]model.Account, error)
	GetTransfer(ctx context.Context, id string) (*model.Transfer, error)
	CreateTransfer(ctx context.Context, transfer *model.Transfer) error
	DeleteTransfer(ctx context.Context, id string) error
}

// DetectionResult summarizes one detection scan.
type DetectionResult struct {
	Candidates         []model.TransferCandidate
	AutoMatched        int
	ManualReviewNeeded int
}

// Detector composes the pairer, scorer, and learned patterns into the
// transfer detection operations. All scans are synchronous pure
// computations over a wholesale window fetch; the detector holds no
// mutable state between calls.
type Detector struct {
	store    Store
	pairer   *Pairer
	scorer   *Scorer
	learner  *Learner
	settings Settings
	now      func() time.Time
}

// NewDetector creates a detector with the given store and settings.
func NewDetector(store Store, settings Settings) *Detector {
	return &Detector{
		store:    store,
		pairer:   NewPairer(settings),
		scorer:   NewScorer(settings),
		learner:  NewLearner(store),
		settings: settings,
		now:      time.Now,
	}
}

// DetectCandidates runs the full scan over the lookback window: the
// generic pairwise pass, the learned-pattern pass, deduplication by
// transaction pair, and a deterministic sort by confidence. Candidates
// below the minimum confidence are dropped.
func (d *Detector) DetectCandidates(ctx context.Context) ([]model.TransferCandidate, error) {
	since := d.now().AddDate(0, 0, -d.settings.DaysLookback)
	transactions, err := d.store.GetTransactionsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction window: %w", err)
	}
	patterns, err := d.store.GetActiveTransferPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transfer patterns: %w", err)
	}
	accounts, err := d.store.GetActiveAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	accountsByID := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		accountsByID[a.ID] = a
	}

	var candidates []model.TransferCandidate
	for _, candidate := range d.pairer.FindCandidates(transactions) {
		if _, err := d.scorer.Score(&candidate); err != nil {
			return nil, err
		}
		if p := d.matchPattern(patterns, accountsByID, candidate); p != nil {
			ApplyPatternBoost(&candidate, p)
		}
		if candidate.Confidence >= minCandidateConfidence {
			candidates = append(candidates, candidate)
		}
	}

	candidates = append(candidates, d.patternPass(patterns, accountsByID, transactions)...)
	candidates = dedupeCandidates(candidates)
	sortCandidates(candidates)

	slog.Info("Transfer detection complete",
		"window_days", d.settings.DaysLookback,
		"transactions", len(transactions),
		"candidates", len(candidates))
	return candidates, nil
}

// Detect scans the window and, when auto-matching is enabled, confirms the
// candidates that clear the confidence threshold or carry an auto-confirm
// rule or pattern. Each transaction joins at most one auto-confirmed
// transfer; ambiguous overlaps stay in the manual review pile.
func (d *Detector) Detect(ctx context.Context) (*DetectionResult, error) {
	candidates, err := d.DetectCandidates(ctx)
	if err != nil {
		return nil, err
	}

	result := &DetectionResult{Candidates: candidates}
	if !d.settings.EnableAutoMatching {
		result.ManualReviewNeeded = len(candidates)
		return result, nil
	}

	used := make(map[string]bool)
	for i := range candidates {
		c := &candidates[i]
		if c.Confidence < d.settings.ConfidenceThreshold && !c.AutoConfirm {
			continue
		}
		if used[c.From.ID] || used[c.To.ID] {
			continue
		}
		if _, err := d.Confirm(ctx, c, false); err != nil {
			slog.Warn("Failed to auto-match transfer",
				"from", c.From.ID, "to", c.To.ID, "error", err)
			continue
		}
		used[c.From.ID] = true
		used[c.To.ID] = true
		result.AutoMatched++
	}
	result.ManualReviewNeeded = len(candidates) - result.AutoMatched
	return result, nil
}

// Suggestions returns the medium-confidence candidates that need a human
// decision: at or above the minimum but below the auto-match threshold.
func (d *Detector) Suggestions(ctx context.Context) ([]model.TransferCandidate, error) {
	candidates, err := d.DetectCandidates(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := make([]model.TransferCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence >= minCandidateConfidence && c.Confidence < d.settings.ConfidenceThreshold {
			suggestions = append(suggestions, c)
		}
	}
	return suggestions, nil
}

// Confirm turns a candidate into a persisted transfer, marking both legs.
// With learnPattern set, the confirmed transfer also creates or reinforces
// a learned pattern.
func (d *Detector) Confirm(ctx context.Context, candidate *model.TransferCandidate, learnPattern bool) (*model.Transfer, error) {
	if candidate.From.AccountID == candidate.To.AccountID {
		return nil, fmt.Errorf("%w: cannot create a transfer within one account", common.ErrInvalidInput)
	}
	if candidate.From.IsTransfer || candidate.To.IsTransfer {
		return nil, fmt.Errorf("%w: a leg already belongs to a transfer", common.ErrInvalidInput)
	}
	if !candidate.From.IsDebit() || candidate.To.IsDebit() {
		return nil, fmt.Errorf("%w: transfer legs must be one debit and one credit", common.ErrInvalidInput)
	}

	transfer := &model.Transfer{
		ID:                uuid.NewString(),
		FromAccountID:     candidate.From.AccountID,
		ToAccountID:       candidate.To.AccountID,
		FromTransactionID: candidate.From.ID,
		ToTransactionID:   candidate.To.ID,
		Amount:            math.Abs(candidate.From.Amount),
		Date:              candidate.From.Date,
		Description:       "Transfer: " + candidate.From.Description,
		PatternID:         candidate.PatternID,
		IsConfirmed:       true,
		CreatedAt:         d.now().UTC(),
	}

	if err := d.store.CreateTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}
	slog.Info("Confirmed transfer",
		"amount", transfer.Amount,
		"from_account", transfer.FromAccountID,
		"to_account", transfer.ToAccountID)

	if learnPattern {
		if _, err := d.learner.Learn(ctx, transfer); err != nil {
			return nil, fmt.Errorf("transfer created but pattern learning failed: %w", err)
		}
	}
	return transfer, nil
}

// Delete removes a confirmed transfer. The storage layer reverts both
// legs' transfer flag in the same write.
func (d *Detector) Delete(ctx context.Context, transferID string) error {
	transfer, err := d.store.GetTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer == nil {
		return fmt.Errorf("%w: transfer %s", common.ErrNotFound, transferID)
	}
	if err := d.store.DeleteTransfer(ctx, transferID); err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}
	slog.Info("Deleted transfer", "transfer_id", transferID, "amount", transfer.Amount)
	return nil
}

// Learner exposes the pattern learning loop to callers that confirm
// transfers outside a detection scan.
func (d *Detector) Learner() *Learner {
	return d.learner
}

// matchPattern finds a learned pattern whose account signatures match the
// candidate's accounts.
func (d *Detector) matchPattern(patterns []model.TransferPattern, accounts map[string]model.Account, candidate model.TransferCandidate) *model.TransferPattern {
	fromAccount, okFrom := accounts[candidate.From.AccountID]
	toAccount, okTo := accounts[candidate.To.AccountID]
	if !okFrom || !okTo {
		return nil
	}
	fromSig := AccountPattern(&fromAccount)
	toSig := AccountPattern(&toAccount)

	for i := range patterns {
		if !patterns[i].IsActive {
			continue
		}
		if PatternSimilarity(patterns[i].FromAccountPattern, fromSig) > accountMatchSimilarity &&
			PatternSimilarity(patterns[i].ToAccountPattern, toSig) > accountMatchSimilarity {
			return &patterns[i]
		}
	}
	return nil
}

// patternPass finds candidates directly from learned patterns: for each
// pattern, debits of matching source accounts are paired with credits of
// matching destination accounts and kept when they clear the pattern's own
// threshold.
func (d *Detector) patternPass(patterns []model.TransferPattern, accounts map[string]model.Account, transactions []model.Transaction) []model.TransferCandidate {
	var candidates []model.TransferCandidate

	for i := range patterns {
		pattern := &patterns[i]
		if !pattern.IsActive {
			continue
		}

		fromAccounts := matchingAccounts(accounts, pattern.FromAccountPattern)
		toAccounts := matchingAccounts(accounts, pattern.ToAccountPattern)

		for _, tx := range transactions {
			if !tx.IsDebit() || tx.IsTransfer || !fromAccounts[tx.AccountID] {
				continue
			}
			for _, credit := range transactions {
				if credit.IsDebit() || credit.IsTransfer || credit.Amount == 0 ||
					!toAccounts[credit.AccountID] || credit.AccountID == tx.AccountID {
					continue
				}

				confidence := PatternConfidence(pattern, tx, credit)
				if confidence < pattern.ConfidenceThreshold {
					continue
				}
				candidates = append(candidates, model.TransferCandidate{
					From:           tx,
					To:             credit,
					Amount:         math.Abs(tx.Amount),
					DateDifference: daysBetween(tx.Date, credit.Date),
					Confidence:     confidence,
					PatternID:      pattern.ID,
					AutoConfirm:    pattern.AutoConfirm,
					Reason:         fmt.Sprintf("matches learned pattern %q", pattern.Name),
				})
			}
		}
	}
	return candidates
}

// matchingAccounts returns the IDs of accounts whose signature matches the
// stored account pattern closely enough.
func matchingAccounts(accounts map[string]model.Account, pattern string) map[string]bool {
	matched := make(map[string]bool)
	if pattern == "" {
		return matched
	}
	for id, account := range accounts {
		if PatternSimilarity(AccountPattern(&account), pattern) > accountMatchSimilarity {
			matched[id] = true
		}
	}
	return matched
}

// dedupeCandidates keeps the highest-confidence candidate per transaction
// pair. Input order is preserved for equal pairs.
func dedupeCandidates(candidates []model.TransferCandidate) []model.TransferCandidate {
	best := make(map[[2]string]int, len(candidates))
	unique := candidates[:0]

	for _, c := range candidates {
		key := [2]string{c.From.ID, c.To.ID}
		if idx, ok := best[key]; ok {
			if c.Confidence > unique[idx].Confidence {
				unique[idx] = c
			}
			continue
		}
		best[key] = len(unique)
		unique = append(unique, c)
	}
	return unique
}

// sortCandidates orders by confidence descending with a stable tie-break
// on the leg IDs so repeated scans render identically.
func sortCandidates(candidates []model.TransferCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.From.ID != b.From.ID {
			return a.From.ID < b.From.ID
		}
		return a.To.ID < b.To.ID
	})
}
