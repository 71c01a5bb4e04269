package model

import (
	"fmt"
	"strings"
	"time"
)

// PatternType indicates how a vendor pattern was derived.
type PatternType string

// Pattern type constants.
const (
	// PatternExact matches the full normalized description.
	PatternExact PatternType = "exact"
	// PatternNgram matches a sub-window of the normalized description.
	PatternNgram PatternType = "ngram"
	// PatternHierarchicalChild was learned for a child vendor within a group.
	PatternHierarchicalChild PatternType = "hierarchical_child"
)

// Vendor represents a merchant/counterparty inferred from transaction text.
// ParentID forms a strictly acyclic tree; edges that would close a cycle are
// rejected at write time.
type Vendor struct {
	LastUpdated time.Time
	ID          string
	Name        string
	ParentID    string // optional parent vendor forming a group
	CategoryID  string
	UseCount    int
	IsActive    bool
}

// VendorPattern is a learned association between a normalized description key
// and a vendor. Patterns are never hard-deleted, only deactivated.
type VendorPattern struct {
	LastMatchedAt       time.Time
	ID                  string
	VendorID            string
	Normalized          string // canonical compact key, e.g. "LIDLZUERICH"
	Type                PatternType
	ConfidenceThreshold float64
	TimesMatched        int
	Version             int // optimistic concurrency token
	IsActive            bool
}

// Validate ensures the pattern has usable data before persistence.
func (p *VendorPattern) Validate() error {
	if p.VendorID == "" {
		return fmt.Errorf("vendor ID is required")
	}
	if strings.TrimSpace(p.Normalized) == "" {
		return fmt.Errorf("normalized pattern is required")
	}
	switch p.Type {
	case PatternExact, PatternNgram, PatternHierarchicalChild:
	default:
		return fmt.Errorf("unknown pattern type %q", p.Type)
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1")
	}
	return nil
}
