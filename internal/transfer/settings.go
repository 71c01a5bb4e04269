// Package transfer implements the transfer detection and learning engine:
// pairwise candidate detection across accounts, confidence scoring with
// user-configurable rules, and the pattern learning loop that turns
// confirmed transfers into reusable matchers.
package transfer

import (
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Rule is a user-configurable matcher consulted during scoring. A matching
// rule contributes the description component of the confidence score and,
// when it allows fees, widens the acceptable amount difference.
type Rule struct {
	Name            string
	Pattern         string
	Description     string
	MaxFeeTolerance float64
	Enabled         bool
	AutoConfirm     bool
	AllowFees       bool
}

// Matches reports whether the rule pattern matches the description. The
// pattern is tried as a case-insensitive regular expression first; an
// invalid expression falls back to plain substring matching.
func (r *Rule) Matches(description string) bool {
	if r.Pattern == "" || description == "" {
		return false
	}
	if re, err := regexp.Compile("(?i)" + r.Pattern); err == nil {
		return re.MatchString(description)
	}
	return strings.Contains(strings.ToUpper(description), strings.ToUpper(r.Pattern))
}

// MatchesEither reports whether either leg's description matches the rule.
func (r *Rule) MatchesEither(desc1, desc2 string) bool {
	return r.Matches(desc1) || r.Matches(desc2)
}

// Settings holds the tunable knobs of the detection scan. AmountTolerance
// is an absolute currency amount; PercentageTolerance is relative to the
// larger leg.
type Settings struct {
	Rules               []Rule
	DaysLookback        int
	AmountTolerance     float64
	PercentageTolerance float64
	ConfidenceThreshold float64
	EnableAutoMatching  bool
}

// Default settings values.
const (
	DefaultDaysLookback        = 7
	DefaultAmountTolerance     = 0.50
	DefaultPercentageTolerance = 0.05
	DefaultConfidenceThreshold = 0.85

	// Pairs whose amounts differ by more than this share of the larger leg
	// are never transfers, regardless of rules.
	maxAmountDivergence = 0.20

	// Candidates below this score are dropped entirely.
	minCandidateConfidence = 0.5
)

// DefaultSettings returns the shipped detection settings and rule set.
func DefaultSettings() Settings {
	return Settings{
		DaysLookback:        DefaultDaysLookback,
		AmountTolerance:     DefaultAmountTolerance,
		PercentageTolerance: DefaultPercentageTolerance,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		EnableAutoMatching:  true,
		Rules:               DefaultRules(),
	}
}

// DefaultRules returns the shipped rule set covering the common Swiss and
// international transfer description conventions.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "Savings Keywords",
			Pattern:     "SPAREN|SAVING|SPARKONTO",
			Description: "Transfers to and from savings accounts",
			Enabled:     true,
			AutoConfirm: true,
		},
		{
			Name:        "Credit Card Payment",
			Pattern:     "KREDITKARTE|VISA|MASTERCARD|CREDIT.*CARD",
			Description: "Credit card balance payments",
			Enabled:     true,
		},
		{
			Name:            "Revolut",
			Pattern:         "REVOLUT",
			Description:     "Revolut top-ups, may include fees",
			Enabled:         true,
			AutoConfirm:     true,
			AllowFees:       true,
			MaxFeeTolerance: 5.00,
		},
		{
			Name:            "Bank Transfer Keywords",
			Pattern:         "UEBERWEISUNG|ÜBERWEISUNG|TRANSFER|VIREMENT|WIRE|INTERNAL",
			Description:     "Generic bank transfer keywords",
			Enabled:         true,
			AllowFees:       true,
			MaxFeeTolerance: 2.00,
		},
	}
}

// SetViperDefaults registers the transfer settings defaults on a viper
// instance so config files and environment variables can override them.
func SetViperDefaults(v *viper.Viper) {
	v.SetDefault("transfers.days_lookback", DefaultDaysLookback)
	v.SetDefault("transfers.amount_tolerance", DefaultAmountTolerance)
	v.SetDefault("transfers.percentage_tolerance", DefaultPercentageTolerance)
	v.SetDefault("transfers.confidence_threshold", DefaultConfidenceThreshold)
	v.SetDefault("transfers.enable_auto_matching", true)
}

// SettingsFromViper builds Settings from configuration, falling back to the
// shipped rule set when no rules are configured.
func SettingsFromViper(v *viper.Viper) Settings {
	settings := Settings{
		DaysLookback:        v.GetInt("transfers.days_lookback"),
		AmountTolerance:     v.GetFloat64("transfers.amount_tolerance"),
		PercentageTolerance: v.GetFloat64("transfers.percentage_tolerance"),
		ConfidenceThreshold: v.GetFloat64("transfers.confidence_threshold"),
		EnableAutoMatching:  v.GetBool("transfers.enable_auto_matching"),
	}
	if err := v.UnmarshalKey("transfers.rules", &settings.Rules); err != nil || len(settings.Rules) == 0 {
		settings.Rules = DefaultRules()
	}
	if settings.DaysLookback <= 0 {
		settings.DaysLookback = DefaultDaysLookback
	}
	if settings.ConfidenceThreshold <= 0 {
		settings.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return settings
}

// enabledRules filters the rule set down to active rules.
func (s *Settings) enabledRules() []Rule {
	rules := make([]Rule, 0, len(s.Rules))
	for _, r := range s.Rules {
		if r.Enabled {
			rules = append(rules, r)
		}
	}
	return rules
}
