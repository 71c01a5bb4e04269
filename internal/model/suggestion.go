package model

// NgramType classifies what a candidate sub-pattern most likely represents.
type NgramType string

// Ngram type constants.
const (
	NgramBrandCandidate NgramType = "brand_candidate"
	NgramCompositeBrand NgramType = "composite_brand"
	NgramLocation       NgramType = "location"
	NgramBusiness       NgramType = "business"
	NgramGeneric        NgramType = "generic"
)

// Ngram is a contiguous token window extracted from a vendor text, with a
// heuristic confidence that it names the actual merchant.
type Ngram struct {
	Pattern    string
	Type       NgramType
	Words      []string
	Confidence float64
	Length     int
	Position   int
}

// VendorSuggestion is one ranked match of the input against a known vendor.
type VendorSuggestion struct {
	VendorID        string
	VendorName      string
	CategoryID      string
	MatchingNgram   string
	MatchType       string // "name" or "pattern"
	Similarity      float64
	NgramConfidence float64
	Combined        float64
	TimesMatched    int
	Hierarchical    bool // the matched ngram names a parent of this vendor
}

// HierarchyAnalysis describes whether a candidate vendor could join an
// existing parent/child group. Advisory only; nothing is applied.
type HierarchyAnalysis struct {
	SuggestedParent   string
	PotentialChildren []string
	Confidence        float64
	CanJoinGroup      bool
}

// ComprehensiveVendorAnalysis is the full result of analyzing one raw
// transaction description: the extraction debug view, ranked matches against
// known vendors, and the new-vendor decision.
type ComprehensiveVendorAnalysis struct {
	ExtractedText    string
	Normalized       string
	SuggestedNewName string
	TopNgrams        []Ngram
	Matches          []VendorSuggestion
	Hierarchy        HierarchyAnalysis
	ShouldCreateNew  bool
}
