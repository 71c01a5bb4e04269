package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rappenlabs/rappen/internal/common"
	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/vendor"
)

// Defaults a freshly learned pattern starts with. Auto-confirm always
// starts off; it is a user setting, never set by the learning loop.
const (
	defaultPatternTolerance = 0.05
	defaultPatternMaxDays   = 3
	defaultPatternThreshold = 0.8

	// Two stored account patterns this similar describe the same pair.
	samePatternSimilarity = 0.8

	// An account this similar to a stored pattern participates in the
	// pattern-driven detection pass.
	accountMatchSimilarity = 0.7
)

// PatternStore provides the reads and writes the learning loop needs.
// Counter updates go through an optimistic version check; conflicting
// writers see ErrConcurrencyConflict and retry with fresh data.
type PatternStore interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetActiveTransferPatterns(ctx context.Context) ([]model.TransferPattern, error)
	SaveTransferPattern(ctx context.Context, pattern *model.TransferPattern) error
	UpdateTransferPattern(ctx context.Context, pattern *model.TransferPattern) error
}

// Learner turns confirmed transfers into persisted patterns. Confirming a
// transfer that fits an existing pattern reinforces that pattern instead of
// creating a duplicate.
type Learner struct {
	store PatternStore
}

// NewLearner creates a learner over the given store.
func NewLearner(store PatternStore) *Learner {
	return &Learner{store: store}
}

// Learn creates or reinforces the pattern describing a confirmed transfer.
// An existing pattern whose account signatures both match closely is
// updated (counter, last-matched timestamp, running-average typical
// amount); otherwise a new pattern is created with default tolerances.
func (l *Learner) Learn(ctx context.Context, transfer *model.Transfer) (*model.TransferPattern, error) {
	fromAccount, err := l.store.GetAccount(ctx, transfer.FromAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source account: %w", err)
	}
	toAccount, err := l.store.GetAccount(ctx, transfer.ToAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load destination account: %w", err)
	}
	if fromAccount == nil || toAccount == nil {
		return nil, fmt.Errorf("%w: transfer accounts not found", common.ErrInvalidInput)
	}

	fromPattern := AccountPattern(fromAccount)
	toPattern := AccountPattern(toAccount)

	var result *model.TransferPattern
	err = common.WithRetry(ctx, func() error {
		patterns, err := l.store.GetActiveTransferPatterns(ctx)
		if err != nil {
			return err
		}

		if existing := findSimilarPattern(patterns, fromPattern, toPattern); existing != nil {
			existing.RecordMatch(transfer.Amount, time.Now().UTC())
			if err := l.store.UpdateTransferPattern(ctx, existing); err != nil {
				return err
			}
			slog.Info("Reinforced transfer pattern",
				"pattern", existing.Name,
				"times_matched", existing.TimesMatched)
			result = existing
			return nil
		}

		now := time.Now().UTC()
		pattern := &model.TransferPattern{
			ID:                  uuid.NewString(),
			Name:                fmt.Sprintf("%s -> %s", fromAccount.Name, toAccount.Name),
			FromAccountPattern:  fromPattern,
			ToAccountPattern:    toPattern,
			DescriptionPattern:  DescriptionPattern(transfer.Description),
			AmountPattern:       AmountPattern(transfer.Amount),
			TypicalAmount:       transfer.Amount,
			AmountTolerance:     defaultPatternTolerance,
			ConfidenceThreshold: defaultPatternThreshold,
			MaxDaysBetween:      defaultPatternMaxDays,
			TimesMatched:        1,
			LastMatchedAt:       now,
			CreatedAt:           now,
			UpdatedAt:           now,
			IsActive:            true,
		}
		if err := pattern.Validate(); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
		if err := l.store.SaveTransferPattern(ctx, pattern); err != nil {
			return err
		}
		slog.Info("Learned new transfer pattern", "pattern", pattern.Name)
		result = pattern
		return nil
	}, common.RetryOptions{})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// findSimilarPattern returns the first active pattern whose account
// signatures both match above the same-pattern threshold.
func findSimilarPattern(patterns []model.TransferPattern, fromPattern, toPattern string) *model.TransferPattern {
	for i := range patterns {
		if !patterns[i].IsActive {
			continue
		}
		fromSim := PatternSimilarity(patterns[i].FromAccountPattern, fromPattern)
		toSim := PatternSimilarity(patterns[i].ToAccountPattern, toPattern)
		if fromSim > samePatternSimilarity && toSim > samePatternSimilarity {
			return &patterns[i]
		}
	}
	return nil
}

// AccountPattern builds the stored signature of an account:
// "type:checking|name:MAIN ACCOUNT|institution:ZKB". Parts with no data are
// omitted.
func AccountPattern(account *model.Account) string {
	var parts []string
	if account.Type != "" {
		parts = append(parts, "type:"+string(account.Type))
	}
	if name := normalizeAccountName(account.Name); name != "" {
		parts = append(parts, "name:"+name)
	}
	if account.Institution != "" {
		parts = append(parts, "institution:"+account.Institution)
	}
	return strings.Join(parts, "|")
}

// DescriptionPattern reduces a transfer description to a matchable
// signature: the known transfer keywords it contains, or its first three
// words as a prefix.
func DescriptionPattern(description string) string {
	if description == "" {
		return ""
	}
	normalized := strings.ToLower(description)

	var found []string
	for _, keyword := range []string{
		"transfer", "überweisung", "ueberweisung", "virement", "internal",
		"zwischen", "to", "from", "payment", "wire",
	} {
		if strings.Contains(normalized, keyword) {
			found = append(found, keyword)
		}
	}
	if len(found) > 0 {
		return "keywords:" + strings.Join(found, ",")
	}

	words := strings.Fields(normalized)
	if len(words) > 3 {
		words = words[:3]
	}
	return "prefix:" + strings.Join(words, " ")
}

// AmountPattern classifies an amount as a common round figure or a range
// bucket.
func AmountPattern(amount float64) string {
	abs := math.Abs(amount)

	if abs == math.Trunc(abs) {
		switch {
		case math.Mod(abs, 1000) == 0:
			return "round:1000"
		case math.Mod(abs, 100) == 0:
			return "round:100"
		case math.Mod(abs, 50) == 0:
			return "round:50"
		}
	}

	switch {
	case abs < 100:
		return "range:0-100"
	case abs < 500:
		return "range:100-500"
	case abs < 1000:
		return "range:500-1000"
	case abs < 5000:
		return "range:1000-5000"
	default:
		return "range:5000+"
	}
}

// PatternSimilarity is the fuzzy similarity of two stored signatures,
// using the same normalized Levenshtein ratio the vendor matcher uses.
func PatternSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return vendor.Similarity(a, b)
}

// normalizeAccountName strips digits and punctuation from an account name
// so masked card numbers do not break signature matching.
func normalizeAccountName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r == ' ' || (r >= 'A' && r <= 'Z') || r == 'Ä' || r == 'Ö' || r == 'Ü' {
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// PatternConfidence scores how well a debit/credit pair fits a learned
// pattern: amount versus the typical amount carries 0.4, date proximity
// 0.3, the description signature 0.2, and pattern history up to 0.1.
func PatternConfidence(pattern *model.TransferPattern, from, to model.Transaction) float64 {
	confidence := 0.0

	if pattern.TypicalAmount > 0 {
		amountDiff := math.Abs(math.Abs(from.Amount) - pattern.TypicalAmount)
		maxDiff := pattern.TypicalAmount * pattern.AmountTolerance
		switch {
		case amountDiff == 0:
			confidence += 0.4
		case maxDiff > 0 && amountDiff <= maxDiff:
			confidence += 0.4 * (1 - amountDiff/maxDiff)
		default:
			confidence += 0.1
		}
	}

	dateDiff := daysBetween(from.Date, to.Date)
	switch {
	case dateDiff == 0:
		confidence += 0.3
	case pattern.MaxDaysBetween > 0 && dateDiff <= pattern.MaxDaysBetween:
		confidence += 0.3 * (1 - float64(dateDiff)/float64(pattern.MaxDaysBetween))
	}

	if pattern.DescriptionPattern != "" {
		confidence += 0.2 * matchDescriptionPattern(pattern.DescriptionPattern, from.Description, to.Description)
	}

	if pattern.TimesMatched > 0 {
		confidence += 0.1 * minFloat(float64(pattern.TimesMatched)/10, 1.0)
	}

	return minFloat(confidence, 1.0)
}

// matchDescriptionPattern scores descriptions against a stored signature:
// 1.0 when a keyword or prefix hits, 0.0 when it misses, 0.5 neutral for
// signatures in no known form.
func matchDescriptionPattern(pattern, desc1, desc2 string) float64 {
	descriptions := []string{strings.ToLower(desc1), strings.ToLower(desc2)}

	switch {
	case strings.HasPrefix(pattern, "keywords:"):
		for _, keyword := range strings.Split(strings.TrimPrefix(pattern, "keywords:"), ",") {
			for _, desc := range descriptions {
				if keyword != "" && strings.Contains(desc, keyword) {
					return 1.0
				}
			}
		}
		return 0.0
	case strings.HasPrefix(pattern, "prefix:"):
		prefix := strings.TrimPrefix(pattern, "prefix:")
		for _, desc := range descriptions {
			if prefix != "" && strings.Contains(desc, prefix) {
				return 1.0
			}
		}
		return 0.0
	}
	return 0.5
}
