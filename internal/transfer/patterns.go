package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rappenlabs/rappen/internal/common"
	"github.com/rappenlabs/rappen/internal/model"
)

// PatternAdmin provides the management reads and writes for learned
// transfer patterns.
type PatternAdmin interface {
	PatternStore
	GetTransferPattern(ctx context.Context, id string) (*model.TransferPattern, error)
	GetTransferPatterns(ctx context.Context) ([]model.TransferPattern, error)
	DeleteTransferPattern(ctx context.Context, id string) error
}

// PatternManager exposes the user-facing pattern operations: listing,
// adjusting the recognized settings, and deletion.
type PatternManager struct {
	store PatternAdmin
}

// NewPatternManager creates a pattern manager over the given store.
func NewPatternManager(store PatternAdmin) *PatternManager {
	return &PatternManager{store: store}
}

// List returns all learned patterns, most-used first.
func (m *PatternManager) List(ctx context.Context) ([]model.TransferPattern, error) {
	return m.store.GetTransferPatterns(ctx)
}

// UpdateSettings applies the recognized settings to a pattern. Only
// auto_confirm, confidence_threshold, amount_tolerance, max_days_between,
// and is_active can be changed this way; the update goes through the
// optimistic version check and is retried with a fresh read on conflict.
func (m *PatternManager) UpdateSettings(ctx context.Context, patternID string, settings model.PatternSettings) (*model.TransferPattern, error) {
	var result *model.TransferPattern
	err := common.WithRetry(ctx, func() error {
		pattern, err := m.store.GetTransferPattern(ctx, patternID)
		if err != nil {
			return err
		}
		if pattern == nil {
			return fmt.Errorf("%w: transfer pattern %s", common.ErrNotFound, patternID)
		}
		if err := settings.Apply(pattern); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
		if err := m.store.UpdateTransferPattern(ctx, pattern); err != nil {
			return err
		}
		result = pattern
		return nil
	}, common.RetryOptions{})
	if err != nil {
		return nil, err
	}
	slog.Info("Updated transfer pattern settings", "pattern", result.Name)
	return result, nil
}

// Delete removes a learned pattern permanently.
func (m *PatternManager) Delete(ctx context.Context, patternID string) error {
	pattern, err := m.store.GetTransferPattern(ctx, patternID)
	if err != nil {
		return err
	}
	if pattern == nil {
		return fmt.Errorf("%w: transfer pattern %s", common.ErrNotFound, patternID)
	}
	if err := m.store.DeleteTransferPattern(ctx, patternID); err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
	}
	slog.Info("Deleted transfer pattern", "pattern", pattern.Name)
	return nil
}
