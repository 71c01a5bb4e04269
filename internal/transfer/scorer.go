package transfer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rappenlabs/rappen/internal/common"
	"github.com/rappenlabs/rappen/internal/model"
)

// Description keywords that indicate a transfer even without a configured
// rule.
var transferKeywords = []string{
	"transfer", "überweisung", "ueberweisung", "virement", "internal",
	"between accounts", "wire", "ach", "electronic transfer", "online transfer",
}

// Scorer computes a [0,1] confidence for a candidate pair. Scoring is a
// deterministic pure function of the candidate and the settings; identical
// input always yields the identical score.
type Scorer struct {
	settings Settings
}

// NewScorer creates a scorer with the given settings.
func NewScorer(settings Settings) *Scorer {
	return &Scorer{settings: settings}
}

// Score fills the candidate's Confidence, MatchedRule, and Reason fields
// and returns the confidence. The score combines amount closeness (weight
// 0.5), date proximity (0.3), and description signals (0.2). Malformed
// amounts or missing dates are rejected with an invalid input error rather
// than coerced.
func (s *Scorer) Score(candidate *model.TransferCandidate) (float64, error) {
	if err := s.validate(candidate); err != nil {
		return 0, err
	}

	rule := s.matchRule(candidate)

	amountScore := s.amountScore(candidate, rule)
	dateScore := s.dateScore(candidate.DateDifference)
	descScore := s.descriptionScore(candidate, rule)

	confidence := clamp01(0.5*amountScore + 0.3*dateScore + 0.2*descScore)

	candidate.Confidence = confidence
	if rule != nil {
		candidate.MatchedRule = rule.Name
		candidate.AutoConfirm = rule.AutoConfirm
	}
	candidate.Reason = s.reason(candidate, rule)
	return confidence, nil
}

// ApplyPatternBoost raises a candidate's confidence toward a matching
// learned pattern's threshold, closing half the remaining gap plus a small
// history bonus. The candidate is tagged with the pattern's identity and
// auto-confirm preference.
func ApplyPatternBoost(candidate *model.TransferCandidate, pattern *model.TransferPattern) {
	if candidate.Confidence < pattern.ConfidenceThreshold {
		candidate.Confidence += (pattern.ConfidenceThreshold - candidate.Confidence) / 2
	}
	history := minFloat(float64(pattern.TimesMatched)/10, 1.0)
	candidate.Confidence = clamp01(candidate.Confidence + 0.05*history)
	candidate.PatternID = pattern.ID
	if pattern.AutoConfirm {
		candidate.AutoConfirm = true
	}
}

func (s *Scorer) validate(candidate *model.TransferCandidate) error {
	for _, tx := range []model.Transaction{candidate.From, candidate.To} {
		if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
			return fmt.Errorf("%w: transaction %s has a non-finite amount", common.ErrInvalidInput, tx.ID)
		}
		if tx.Date.IsZero() {
			return fmt.Errorf("%w: transaction %s has no date", common.ErrInvalidInput, tx.ID)
		}
	}
	if !candidate.From.IsDebit() || candidate.To.IsDebit() {
		return fmt.Errorf("%w: candidate legs must be one debit and one credit", common.ErrInvalidInput)
	}
	if candidate.From.AccountID == candidate.To.AccountID {
		return fmt.Errorf("%w: candidate legs share an account", common.ErrInvalidInput)
	}
	return nil
}

// amountScore is 1.0 at an exact match and decays linearly to 0 at the
// effective tolerance boundary. Pairs beyond tolerance but still inside the
// divergence cap keep a small ballpark floor.
func (s *Scorer) amountScore(candidate *model.TransferCandidate, rule *Rule) float64 {
	amountDiff := math.Abs(math.Abs(candidate.From.Amount) - math.Abs(candidate.To.Amount))
	maxAmount := math.Max(math.Abs(candidate.From.Amount), math.Abs(candidate.To.Amount))
	if maxAmount == 0 {
		return 0
	}

	tolerance := math.Max(s.settings.AmountTolerance, maxAmount*s.settings.PercentageTolerance)
	if rule != nil && rule.AllowFees && rule.MaxFeeTolerance > tolerance {
		tolerance = rule.MaxFeeTolerance
	}

	if amountDiff == 0 {
		return 1.0
	}
	if amountDiff <= tolerance {
		return 1.0 - amountDiff/tolerance
	}
	if amountDiff/maxAmount <= maxAmountDivergence {
		return 0.1
	}
	return 0
}

// dateScore is 1.0 for same-day legs and decays linearly over the lookback
// window.
func (s *Scorer) dateScore(dateDiff int) float64 {
	lookback := s.settings.DaysLookback
	if lookback <= 0 {
		lookback = DefaultDaysLookback
	}
	if dateDiff >= lookback {
		return 0
	}
	return 1.0 - float64(dateDiff)/float64(lookback)
}

// descriptionScore returns 1.0 for a rule match, 0.8 for a shared transfer
// keyword, 0.7 when both descriptions share at least two words, and a
// neutral 0.5 when the descriptions carry no signal either way.
func (s *Scorer) descriptionScore(candidate *model.TransferCandidate, rule *Rule) float64 {
	if rule != nil {
		return 1.0
	}

	desc1 := strings.ToLower(candidate.From.Description)
	desc2 := strings.ToLower(candidate.To.Description)

	for _, keyword := range transferKeywords {
		if strings.Contains(desc1, keyword) || strings.Contains(desc2, keyword) {
			return 0.8
		}
	}

	if desc1 != "" && desc2 != "" && sharedWordCount(desc1, desc2) >= 2 {
		return 0.7
	}
	return 0.5
}

func (s *Scorer) matchRule(candidate *model.TransferCandidate) *Rule {
	rules := s.settings.enabledRules()
	for i := range rules {
		if rules[i].MatchesEither(candidate.From.Description, candidate.To.Description) {
			return &rules[i]
		}
	}
	return nil
}

// reason produces the human-readable explanation shown next to a
// suggestion.
func (s *Scorer) reason(candidate *model.TransferCandidate, rule *Rule) string {
	var reasons []string

	if rule != nil {
		reasons = append(reasons, fmt.Sprintf("matches rule %q", rule.Name))
	}

	amountDiff := math.Abs(math.Abs(candidate.From.Amount) - math.Abs(candidate.To.Amount))
	switch {
	case amountDiff == 0:
		reasons = append(reasons, "exact amount match")
	case amountDiff < math.Abs(candidate.From.Amount)*0.02:
		reasons = append(reasons, "very similar amounts")
	}

	switch {
	case candidate.DateDifference == 0:
		reasons = append(reasons, "same date")
	case candidate.DateDifference <= 1:
		reasons = append(reasons, "consecutive dates")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "pattern analysis")
	}
	return strings.Join(reasons, ", ")
}

func sharedWordCount(a, b string) int {
	words := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		words[w] = true
	}
	count := 0
	for _, w := range strings.Fields(b) {
		if words[w] {
			count++
			words[w] = false
		}
	}
	return count
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
