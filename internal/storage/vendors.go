package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rappenlabs/rappen/internal/common"
	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/vendor"
)

const vendorColumns = `id, name, parent_id, category_id, use_count, is_active, last_updated`

const vendorPatternColumns = `id, vendor_id, normalized, type, confidence_threshold, times_matched, version, is_active, last_matched_at`

// SaveVendor inserts or updates a vendor. Parent edges are validated against
// the stored hierarchy; an edge closing a cycle fails with
// common.ErrCyclicHierarchy and leaves the vendor untouched.
func (s *SQLiteStorage) SaveVendor(ctx context.Context, v *model.Vendor) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateVendor(v); err != nil {
		return err
	}
	return s.saveVendorTx(ctx, s.db, v)
}

func (s *SQLiteStorage) saveVendorTx(ctx context.Context, q queryable, v *model.Vendor) error {
	if v.ParentID != "" {
		vendors, err := s.getVendorsTx(ctx, q, false)
		if err != nil {
			return err
		}
		if err := vendor.ValidateParentEdge(vendors, v.ID, v.ParentID); err != nil {
			return fmt.Errorf("vendor %s cannot have parent %s: %w", v.ID, v.ParentID, err)
		}
	}

	if v.LastUpdated.IsZero() {
		v.LastUpdated = time.Now()
	}

	query := `
		INSERT INTO vendors (` + vendorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			parent_id = excluded.parent_id,
			category_id = excluded.category_id,
			use_count = excluded.use_count,
			is_active = excluded.is_active,
			last_updated = excluded.last_updated`

	_, err := q.ExecContext(ctx, query,
		v.ID, v.Name, nullableString(v.ParentID), nullableString(v.CategoryID),
		v.UseCount, v.IsActive, v.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save vendor %s: %w", v.ID, err)
	}
	return nil
}

// GetVendor retrieves a vendor by ID. Returns nil if not found.
func (s *SQLiteStorage) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getVendorTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getVendorTx(ctx context.Context, q queryable, id string) (*model.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE id = ?`

	row := q.QueryRowContext(ctx, query, id)
	v, err := scanVendor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor %s: %w", id, err)
	}
	return v, nil
}

// GetAllVendors retrieves every vendor, active or not, ordered by name.
func (s *SQLiteStorage) GetAllVendors(ctx context.Context) ([]model.Vendor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getVendorsTx(ctx, s.db, false)
}

// GetActiveVendors retrieves active vendors ordered by name.
func (s *SQLiteStorage) GetActiveVendors(ctx context.Context) ([]model.Vendor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getVendorsTx(ctx, s.db, true)
}

func (s *SQLiteStorage) getVendorsTx(ctx context.Context, q queryable, activeOnly bool) ([]model.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var vendors []model.Vendor
	for rows.Next() {
		v, scanErr := scanVendor(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", scanErr)
		}
		vendors = append(vendors, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vendors: %w", err)
	}
	return vendors, nil
}

// DeactivateVendor soft-deletes a vendor. Its patterns are deactivated with
// it so the matcher stops proposing it, but history is preserved.
func (s *SQLiteStorage) DeactivateVendor(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.deactivateVendorTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deactivateVendorTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE vendors SET is_active = 0, last_updated = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate vendor %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deactivation result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("vendor %s: %w", id, common.ErrNotFound)
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE vendor_patterns SET is_active = 0 WHERE vendor_id = ?`, id); err != nil {
		return fmt.Errorf("failed to deactivate patterns for vendor %s: %w", id, err)
	}

	s.invalidatePatternCache()
	return nil
}

// SaveVendorPattern inserts or updates a learned pattern. The (vendor_id,
// normalized) pair is unique; saving an existing pair overwrites counters.
func (s *SQLiteStorage) SaveVendorPattern(ctx context.Context, pattern *model.VendorPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if pattern == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if err := pattern.Validate(); err != nil {
		return fmt.Errorf("%w: %s", common.ErrInvalidInput, err)
	}
	return s.saveVendorPatternTx(ctx, s.db, pattern)
}

func (s *SQLiteStorage) saveVendorPatternTx(ctx context.Context, q queryable, pattern *model.VendorPattern) error {
	query := `
		INSERT INTO vendor_patterns (` + vendorPatternColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vendor_id, normalized) DO UPDATE SET
			type = excluded.type,
			confidence_threshold = excluded.confidence_threshold,
			times_matched = excluded.times_matched,
			version = excluded.version,
			is_active = excluded.is_active,
			last_matched_at = excluded.last_matched_at`

	_, err := q.ExecContext(ctx, query,
		pattern.ID, pattern.VendorID, pattern.Normalized, string(pattern.Type),
		pattern.ConfidenceThreshold, pattern.TimesMatched, pattern.Version,
		pattern.IsActive, nullableTime(pattern.LastMatchedAt))
	if err != nil {
		return fmt.Errorf("failed to save vendor pattern %s: %w", pattern.ID, err)
	}

	s.invalidatePatternCache()
	return nil
}

// GetVendorPatternByKey looks up a pattern by its vendor and normalized text.
// Returns nil if no such pattern exists.
func (s *SQLiteStorage) GetVendorPatternByKey(ctx context.Context, vendorID, normalized string) (*model.VendorPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(vendorID, "vendorID"); err != nil {
		return nil, err
	}
	if err := validateString(normalized, "normalized"); err != nil {
		return nil, err
	}
	return s.getVendorPatternByKeyTx(ctx, s.db, vendorID, normalized)
}

func (s *SQLiteStorage) getVendorPatternByKeyTx(ctx context.Context, q queryable, vendorID, normalized string) (*model.VendorPattern, error) {
	query := `SELECT ` + vendorPatternColumns + ` FROM vendor_patterns WHERE vendor_id = ? AND normalized = ?`

	row := q.QueryRowContext(ctx, query, vendorID, normalized)
	pattern, err := scanVendorPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor pattern: %w", err)
	}
	return pattern, nil
}

// GetVendorPatterns retrieves all patterns for one vendor.
func (s *SQLiteStorage) GetVendorPatterns(ctx context.Context, vendorID string) ([]model.VendorPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(vendorID, "vendorID"); err != nil {
		return nil, err
	}
	return s.getVendorPatternsTx(ctx, s.db, vendorID)
}

func (s *SQLiteStorage) getVendorPatternsTx(ctx context.Context, q queryable, vendorID string) ([]model.VendorPattern, error) {
	query := `SELECT ` + vendorPatternColumns + ` FROM vendor_patterns WHERE vendor_id = ? ORDER BY times_matched DESC, normalized`
	return queryVendorPatterns(ctx, q, query, vendorID)
}

// GetActiveVendorPatterns retrieves all active patterns across vendors. This
// is the hot read of the suggestion path, so results are served from a short
// lived in-memory cache when run outside a transaction.
func (s *SQLiteStorage) GetActiveVendorPatterns(ctx context.Context) ([]model.VendorPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	if cached := s.cachedActivePatterns(); cached != nil {
		return cached, nil
	}

	patterns, err := s.getActiveVendorPatternsTx(ctx, s.db)
	if err != nil {
		return nil, err
	}
	s.setPatternCache(patterns)
	return patterns, nil
}

func (s *SQLiteStorage) getActiveVendorPatternsTx(ctx context.Context, q queryable) ([]model.VendorPattern, error) {
	query := `SELECT ` + vendorPatternColumns + ` FROM vendor_patterns WHERE is_active = 1 ORDER BY times_matched DESC, normalized`
	return queryVendorPatterns(ctx, q, query)
}

func queryVendorPatterns(ctx context.Context, q queryable, query string, args ...any) ([]model.VendorPattern, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendor patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.VendorPattern
	for rows.Next() {
		pattern, scanErr := scanVendorPattern(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan vendor pattern: %w", scanErr)
		}
		patterns = append(patterns, *pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vendor patterns: %w", err)
	}
	return patterns, nil
}

// RecordVendorPatternMatch increments a pattern's match counter using the
// version the caller read. A concurrent update since that read surfaces as
// common.ErrConcurrencyConflict; the caller re-reads and retries.
func (s *SQLiteStorage) RecordVendorPatternMatch(ctx context.Context, pattern *model.VendorPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if pattern == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if err := validateString(pattern.ID, "pattern.ID"); err != nil {
		return err
	}
	return s.recordVendorPatternMatchTx(ctx, s.db, pattern)
}

func (s *SQLiteStorage) recordVendorPatternMatchTx(ctx context.Context, q queryable, pattern *model.VendorPattern) error {
	now := time.Now()
	result, err := q.ExecContext(ctx, `
		UPDATE vendor_patterns
		SET times_matched = times_matched + 1,
		    version = version + 1,
		    last_matched_at = ?
		WHERE id = ? AND version = ?`,
		now, pattern.ID, pattern.Version)
	if err != nil {
		return fmt.Errorf("failed to record pattern match %s: %w", pattern.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check pattern match result: %w", err)
	}
	if affected == 0 {
		exists, existsErr := s.patternExists(ctx, q, pattern.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("vendor pattern %s: %w", pattern.ID, common.ErrNotFound)
		}
		return fmt.Errorf("vendor pattern %s: %w", pattern.ID, common.ErrConcurrencyConflict)
	}

	pattern.TimesMatched++
	pattern.Version++
	pattern.LastMatchedAt = now
	s.invalidatePatternCache()
	return nil
}

func (s *SQLiteStorage) patternExists(ctx context.Context, q queryable, id string) (bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM vendor_patterns WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check vendor pattern %s: %w", id, err)
	}
	return count > 0, nil
}

func scanVendor(row scanner) (*model.Vendor, error) {
	var v model.Vendor
	var parentID, categoryID sql.NullString
	var lastUpdated sql.NullString

	err := row.Scan(&v.ID, &v.Name, &parentID, &categoryID, &v.UseCount, &v.IsActive, &lastUpdated)
	if err != nil {
		return nil, err
	}

	v.ParentID = parentID.String
	v.CategoryID = categoryID.String
	if lastUpdated.Valid && strings.TrimSpace(lastUpdated.String) != "" {
		if t, parseErr := parseStoredTime(lastUpdated.String); parseErr == nil {
			v.LastUpdated = t
		}
	}
	return &v, nil
}

func scanVendorPattern(row scanner) (*model.VendorPattern, error) {
	var p model.VendorPattern
	var patternType string
	var lastMatchedAt sql.NullString

	err := row.Scan(&p.ID, &p.VendorID, &p.Normalized, &patternType,
		&p.ConfidenceThreshold, &p.TimesMatched, &p.Version, &p.IsActive, &lastMatchedAt)
	if err != nil {
		return nil, err
	}

	p.Type = model.PatternType(patternType)
	if lastMatchedAt.Valid && strings.TrimSpace(lastMatchedAt.String) != "" {
		if t, parseErr := parseStoredTime(lastMatchedAt.String); parseErr == nil {
			p.LastMatchedAt = t
		}
	}
	return &p, nil
}
