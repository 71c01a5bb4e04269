package cli

import (
	"fmt"
	"strings"

	"github.com/rappenlabs/rappen/internal/model"
)

// RenderVendorAnalysis formats a full vendor analysis for terminal display.
func RenderVendorAnalysis(analysis *model.ComprehensiveVendorAnalysis) string {
	var b strings.Builder

	b.WriteString(SubtleStyle.Render("Extracted: ") + analysis.ExtractedText + "\n")
	b.WriteString(SubtleStyle.Render("Normalized: ") + analysis.Normalized + "\n")
	if len(analysis.TopNgrams) > 0 {
		grams := make([]string, 0, len(analysis.TopNgrams))
		for _, g := range analysis.TopNgrams {
			grams = append(grams, fmt.Sprintf("%s (%.2f)", g.Pattern, g.Confidence))
		}
		b.WriteString(SubtleStyle.Render("Patterns: ") + strings.Join(grams, ", ") + "\n")
	}
	b.WriteString("\n")

	if len(analysis.Matches) == 0 {
		if analysis.ShouldCreateNew && analysis.SuggestedNewName != "" {
			b.WriteString(FormatInfo(fmt.Sprintf("No known vendor matched. Suggested new vendor: %q", analysis.SuggestedNewName)))
		} else {
			b.WriteString(SubtleStyle.Render("No vendor suggestions."))
		}
		return RenderBox(VendorIcon+" Vendor Analysis", b.String())
	}

	for i, match := range analysis.Matches {
		line := fmt.Sprintf("%d. %s", i+1, BoldStyle.Render(match.VendorName))
		line += SubtleStyle.Render(fmt.Sprintf("  (%.0f%% via %q)", match.Combined*100, match.MatchingNgram))
		if match.Hierarchical {
			line += SubtleStyle.Render("  [group]")
		}
		b.WriteString(line + "\n")
	}

	if analysis.Hierarchy.SuggestedParent != "" {
		b.WriteString("\n" + FormatInfo(fmt.Sprintf("Could join group under %q", analysis.Hierarchy.SuggestedParent)))
	}
	if analysis.ShouldCreateNew && analysis.SuggestedNewName != "" {
		b.WriteString("\n" + FormatInfo(fmt.Sprintf("Or create new vendor: %q", analysis.SuggestedNewName)))
	}

	return RenderBox(VendorIcon+" Vendor Analysis", b.String())
}

// RenderTransferCandidate formats one candidate pairing for review.
func RenderTransferCandidate(candidate *model.TransferCandidate) string {
	var b strings.Builder

	confidence := fmt.Sprintf("%.0f%%", candidate.Confidence*100)
	switch candidate.Bucket() {
	case model.BucketHigh:
		confidence = SuccessStyle.Render(confidence + " high")
	case model.BucketMedium:
		confidence = WarningStyle.Render(confidence + " medium")
	case model.BucketLow:
		confidence = SubtleStyle.Render(confidence + " low")
	}

	b.WriteString(fmt.Sprintf("%s  %s\n", BoldStyle.Render(fmt.Sprintf("%.2f", candidate.Amount)), confidence))
	b.WriteString(fmt.Sprintf("  %s %s (%s)\n",
		ErrorStyle.Render("−"), candidate.From.Description, candidate.From.Date.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("  %s %s (%s)\n",
		SuccessStyle.Render("+"), candidate.To.Description, candidate.To.Date.Format("2006-01-02")))

	details := candidate.Reason
	if candidate.MatchedRule != "" {
		details += SubtleStyle.Render(fmt.Sprintf("  [rule: %s]", candidate.MatchedRule))
	}
	if candidate.PatternID != "" {
		details += SubtleStyle.Render("  [learned pattern]")
	}
	b.WriteString("  " + SubtleStyle.Render(details))

	return b.String()
}

// RenderTransferCandidates formats a list of candidates grouped by bucket.
func RenderTransferCandidates(candidates []model.TransferCandidate) string {
	if len(candidates) == 0 {
		return FormatInfo("No transfer candidates found.")
	}

	var b strings.Builder
	for i := range candidates {
		b.WriteString(RenderTransferCandidate(&candidates[i]))
		if i < len(candidates)-1 {
			b.WriteString("\n\n")
		}
	}
	return RenderBox(TransferIcon+" Transfer Candidates", b.String())
}
