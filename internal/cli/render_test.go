package cli

import (
	"testing"
	"time"

	"github.com/rappenlabs/rappen/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRenderVendorAnalysis(t *testing.T) {
	analysis := &model.ComprehensiveVendorAnalysis{
		ExtractedText: "Lidl Zuerich",
		Normalized:    "LIDLZUERICH",
		Matches: []model.VendorSuggestion{
			{VendorName: "Lidl", MatchingNgram: "LIDL", Combined: 0.92},
		},
	}

	out := RenderVendorAnalysis(analysis)
	assert.Contains(t, out, "LIDLZUERICH")
	assert.Contains(t, out, "Lidl")
	assert.Contains(t, out, "92%")
}

func TestRenderVendorAnalysis_NewVendor(t *testing.T) {
	analysis := &model.ComprehensiveVendorAnalysis{
		ExtractedText:    "Zahnarztpraxis Meier",
		Normalized:       "ZAHNARZTPRAXISMEIER",
		ShouldCreateNew:  true,
		SuggestedNewName: "Zahnarztpraxis",
	}

	out := RenderVendorAnalysis(analysis)
	assert.Contains(t, out, "Zahnarztpraxis")
	assert.Contains(t, out, "new vendor")
}

func TestRenderTransferCandidates(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.TransferCandidate{
		{
			From:       model.Transaction{Description: "Transfer to savings", Date: date, Amount: -100},
			To:         model.Transaction{Description: "Incoming transfer", Date: date.AddDate(0, 0, 1), Amount: 100},
			Amount:     100,
			Confidence: 0.86,
			Reason:     "exact amount match",
		},
	}

	out := RenderTransferCandidates(candidates)
	assert.Contains(t, out, "Transfer to savings")
	assert.Contains(t, out, "86%")
	assert.Contains(t, out, "exact amount match")

	assert.Contains(t, RenderTransferCandidates(nil), "No transfer candidates")
}
