package transfer

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Matches(t *testing.T) {
	rule := Rule{Name: "Credit Card", Pattern: "KREDITKARTE|VISA|CREDIT.*CARD", Enabled: true}

	assert.True(t, rule.Matches("VISA payment"))
	assert.True(t, rule.Matches("visa payment"), "matching is case-insensitive")
	assert.True(t, rule.Matches("credit debit card"), "regex alternatives work")
	assert.False(t, rule.Matches("Groceries"))
	assert.False(t, rule.Matches(""))

	empty := Rule{Name: "noop"}
	assert.False(t, empty.Matches("anything"))
}

func TestRule_InvalidRegexFallsBackToSubstring(t *testing.T) {
	rule := Rule{Name: "broken", Pattern: "SAVINGS[", Enabled: true}

	assert.True(t, rule.Matches("my savings[ account"))
	assert.False(t, rule.Matches("checking account"))
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, 7, s.DaysLookback)
	assert.InDelta(t, 0.50, s.AmountTolerance, 1e-9)
	assert.InDelta(t, 0.05, s.PercentageTolerance, 1e-9)
	assert.InDelta(t, 0.85, s.ConfidenceThreshold, 1e-9)
	assert.True(t, s.EnableAutoMatching)
	assert.NotEmpty(t, s.Rules)

	for _, r := range s.Rules {
		assert.True(t, r.Enabled, r.Name)
	}
}

func TestSettingsFromViper(t *testing.T) {
	v := viper.New()
	SetViperDefaults(v)

	s := SettingsFromViper(v)
	assert.Equal(t, DefaultSettings().DaysLookback, s.DaysLookback)
	assert.InDelta(t, DefaultAmountTolerance, s.AmountTolerance, 1e-9)
	assert.Len(t, s.Rules, len(DefaultRules()), "falls back to shipped rules")

	v.Set("transfers.days_lookback", 14)
	v.Set("transfers.confidence_threshold", 0.9)
	s = SettingsFromViper(v)
	assert.Equal(t, 14, s.DaysLookback)
	assert.InDelta(t, 0.9, s.ConfidenceThreshold, 1e-9)

	v.Set("transfers.days_lookback", -1)
	s = SettingsFromViper(v)
	require.Equal(t, DefaultDaysLookback, s.DaysLookback, "nonsense values revert to defaults")
}
