package model

import (
	"fmt"
	"time"
)

// Transfer is a confirmed pairing of two transactions representing money
// moved between the user's own accounts. Both legs are excluded from budget
// spend totals.
type Transfer struct {
	Date              time.Time
	CreatedAt         time.Time
	ID                string
	FromAccountID     string
	ToAccountID       string
	FromTransactionID string
	ToTransactionID   string
	Description       string
	PatternID         string // set when a learned pattern produced the match
	Amount            float64
	IsConfirmed       bool
}

// ConfidenceBucket groups candidate scores for review UIs.
type ConfidenceBucket string

// Confidence bucket constants.
const (
	BucketHigh   ConfidenceBucket = "high"
	BucketMedium ConfidenceBucket = "medium"
	BucketLow    ConfidenceBucket = "low"
)

// BucketFor maps a confidence score to its review bucket.
// Boundaries: high >= 0.8, medium >= 0.5, low below.
func BucketFor(score float64) ConfidenceBucket {
	switch {
	case score >= 0.8:
		return BucketHigh
	case score >= 0.5:
		return BucketMedium
	default:
		return BucketLow
	}
}

// TransferCandidate is a transient pairing of a debit and a credit across
// accounts. It has no identity until confirmed; the same transaction may
// appear in several candidates.
type TransferCandidate struct {
	From           Transaction
	To             Transaction
	MatchedRule    string
	PatternID      string
	Reason         string
	Confidence     float64
	Amount         float64
	DateDifference int // days
	AutoConfirm    bool
}

// Bucket returns the review bucket for this candidate's confidence.
func (c *TransferCandidate) Bucket() ConfidenceBucket {
	return BucketFor(c.Confidence)
}

// CandidateStatus tracks a candidate through the review state machine.
type CandidateStatus string

// Candidate status constants.
const (
	CandidateProposed  CandidateStatus = "proposed"
	CandidateConfirmed CandidateStatus = "confirmed"
	CandidateRejected  CandidateStatus = "rejected"
	CandidateIgnored   CandidateStatus = "ignored"
)

// CanTransition reports whether a candidate may move between two states.
// Confirmed and Rejected are terminal; Ignored candidates may be revisited.
func (s CandidateStatus) CanTransition(to CandidateStatus) bool {
	switch s {
	case CandidateProposed:
		return to == CandidateConfirmed || to == CandidateRejected || to == CandidateIgnored
	case CandidateIgnored:
		return to == CandidateConfirmed || to == CandidateRejected
	default:
		return false
	}
}

// TransferPattern is a persisted generalization learned from confirmed
// transfers. It is matched against new candidate pairs and tightens as
// TimesMatched grows.
type TransferPattern struct {
	CreatedAt           time.Time
	UpdatedAt           time.Time
	LastMatchedAt       time.Time
	ID                  string
	Name                string
	FromAccountPattern  string
	ToAccountPattern    string
	DescriptionPattern  string
	AmountPattern       string
	TypicalAmount       float64
	AmountTolerance     float64 // relative, e.g. 0.05
	ConfidenceThreshold float64
	MaxDaysBetween      int
	TimesMatched        int
	Version             int // optimistic concurrency token
	AutoConfirm         bool
	IsActive            bool
}

// Validate ensures the pattern has valid data.
func (p *TransferPattern) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pattern name is required")
	}
	if p.FromAccountPattern == "" || p.ToAccountPattern == "" {
		return fmt.Errorf("both account patterns are required")
	}
	if p.AmountTolerance < 0 || p.AmountTolerance > 1 {
		return fmt.Errorf("amount tolerance must be between 0 and 1")
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1")
	}
	if p.MaxDaysBetween < 0 {
		return fmt.Errorf("max days between must not be negative")
	}
	return nil
}

// RecordMatch folds a newly confirmed amount into the pattern's running
// average and bumps the match counters.
func (p *TransferPattern) RecordMatch(amount float64, at time.Time) {
	if p.TypicalAmount > 0 && p.TimesMatched > 0 {
		total := float64(p.TimesMatched) + 1
		p.TypicalAmount = (p.TypicalAmount*float64(p.TimesMatched) + amount) / total
	} else {
		p.TypicalAmount = amount
	}
	p.TimesMatched++
	p.LastMatchedAt = at
	p.UpdatedAt = at
}

// PatternSettings carries the user-adjustable knobs of a transfer pattern.
// Nil fields are left untouched. These are the only recognized options;
// AutoConfirm in particular is never set by the learning loop itself.
type PatternSettings struct {
	AutoConfirm         *bool
	ConfidenceThreshold *float64
	AmountTolerance     *float64
	MaxDaysBetween      *int
	IsActive            *bool
}

// Apply copies the set fields onto the pattern, validating ranges.
func (s *PatternSettings) Apply(p *TransferPattern) error {
	if s.AutoConfirm != nil {
		p.AutoConfirm = *s.AutoConfirm
	}
	if s.ConfidenceThreshold != nil {
		p.ConfidenceThreshold = *s.ConfidenceThreshold
	}
	if s.AmountTolerance != nil {
		p.AmountTolerance = *s.AmountTolerance
	}
	if s.MaxDaysBetween != nil {
		p.MaxDaysBetween = *s.MaxDaysBetween
	}
	if s.IsActive != nil {
		p.IsActive = *s.IsActive
	}
	return p.Validate()
}
