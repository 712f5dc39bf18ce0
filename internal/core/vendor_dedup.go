package core

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var vendorPunct = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// Trailing legal-entity suffixes stripped from vendor display names before
// dedup key comparison.
var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true,
	"limited": true, "corp": true, "corporation": true, "co": true,
	"company": true,
}

// NormalizeVendorName derives the dedup key for a vendor display name:
// lowercase, punctuation to spaces, trailing legal-entity suffixes removed.
func NormalizeVendorName(name string) string {
	s := strings.ToLower(name)
	s = vendorPunct.ReplaceAllString(s, " ")
	toks := strings.Fields(s)
	for len(toks) > 1 && legalSuffixes[toks[len(toks)-1]] {
		toks = toks[:len(toks)-1]
	}
	return strings.Join(toks, " ")
}

// VendorDedupService detects vendor master records denoting the same
// real-world vendor and merges them away.
type VendorDedupService interface {
	// FindDuplicateVendors groups a venue's active vendors by normalized
	// name. Only groups with more than one member are returned; the
	// earliest-created member is pre-designated canonical, which callers may
	// override before merging.
	FindDuplicateVendors(ctx context.Context, venueID int) ([]DuplicateVendorGroup, error)

	// MergeGroup reassigns every pack-configuration, invoice, alias, and
	// cost-history reference from each duplicate to the canonical vendor,
	// then deletes a duplicate only after re-verifying its reference count
	// is exactly zero.
	// A nonzero remainder skips deletion with a warning. The two phases are
	// independently resumable: re-running after a crash is safe.
	MergeGroup(ctx context.Context, group DuplicateVendorGroup, apply bool) (*MergeReport, error)
}

type vendorDedupService struct {
	pool *pgxpool.Pool
}

// NewVendorDedupService constructs a VendorDedupService backed by PostgreSQL.
func NewVendorDedupService(pool *pgxpool.Pool) VendorDedupService {
	return &vendorDedupService{pool: pool}
}

func (s *vendorDedupService) FindDuplicateVendors(ctx context.Context, venueID int) ([]DuplicateVendorGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, venue_id, name, is_active, created_at
		FROM vendors
		WHERE venue_id = $1 AND is_active = true
		ORDER BY created_at, id`,
		venueID,
	)
	if err != nil {
		return nil, fmt.Errorf("get vendors: %w", err)
	}
	defer rows.Close()

	byKey := make(map[string][]Vendor)
	var keys []string
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.VenueID, &v.Name, &v.IsActive, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		key := NormalizeVendorName(v.Name)
		if key == "" {
			continue
		}
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}

	sort.Strings(keys)
	var groups []DuplicateVendorGroup
	for _, key := range keys {
		members := byKey[key]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, DuplicateVendorGroup{
			NormalizedName: key,
			CanonicalID:    members[0].ID, // earliest created, rows ordered above
			Vendors:        members,
		})
	}
	return groups, nil
}

func (s *vendorDedupService) MergeGroup(ctx context.Context, group DuplicateVendorGroup, apply bool) (*MergeReport, error) {
	canonicalOK := false
	for _, v := range group.Vendors {
		if v.ID == group.CanonicalID {
			canonicalOK = true
			break
		}
	}
	if !canonicalOK {
		return nil, fmt.Errorf("canonical vendor %d is not a member of group %q", group.CanonicalID, group.NormalizedName)
	}

	report := &MergeReport{}
	for _, dup := range group.Vendors {
		if dup.ID == group.CanonicalID {
			continue
		}
		report.DuplicatesProcessed++
		if err := s.mergeOne(ctx, group.CanonicalID, dup, apply, report); err != nil {
			// Per-duplicate failures warn and continue; the merge is
			// re-runnable, so nothing is lost by moving on.
			report.Skipped++
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("vendor %d (%s): %v", dup.ID, dup.Name, err))
		}
	}
	return report, nil
}

func (s *vendorDedupService) mergeOne(ctx context.Context, canonicalID int, dup Vendor, apply bool, report *MergeReport) error {
	// Aliases move only when the canonical side has no active alias for the
	// same vendor item code; collisions stay put and block deletion below.
	if !apply {
		var packs, invoices, movableAliases, totalAliases, costRecords int
		err := s.pool.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM pack_configurations WHERE vendor_id = $1),
				(SELECT COUNT(*) FROM invoices WHERE vendor_id = $1),
				(SELECT COUNT(*) FROM vendor_item_aliases a
				 WHERE a.vendor_id = $1
				   AND NOT EXISTS (
						SELECT 1 FROM vendor_item_aliases b
						WHERE b.vendor_id = $2
						  AND b.vendor_item_code = a.vendor_item_code
						  AND b.is_active = true)),
				(SELECT COUNT(*) FROM vendor_item_aliases WHERE vendor_id = $1),
				(SELECT COUNT(*) FROM item_cost_history WHERE vendor_id = $1)`,
			dup.ID, canonicalID,
		).Scan(&packs, &invoices, &movableAliases, &totalAliases, &costRecords)
		if err != nil {
			return fmt.Errorf("count references: %w", err)
		}
		report.ReassignedPacks += packs
		report.ReassignedInvoices += invoices
		report.ReassignedAliases += movableAliases
		report.ReassignedCostRecords += costRecords
		if remaining := totalAliases - movableAliases; remaining > 0 {
			report.Skipped++
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("vendor %d (%s) would retain %d alias reference(s); deletion would be skipped", dup.ID, dup.Name, remaining))
		} else {
			report.Deleted++
		}
		return nil
	}

	// Phase 1: reassign references to the canonical vendor.
	tag, err := s.pool.Exec(ctx,
		"UPDATE pack_configurations SET vendor_id = $1 WHERE vendor_id = $2",
		canonicalID, dup.ID,
	)
	if err != nil {
		return fmt.Errorf("reassign pack configurations: %w", err)
	}
	report.ReassignedPacks += int(tag.RowsAffected())

	tag, err = s.pool.Exec(ctx,
		"UPDATE invoices SET vendor_id = $1 WHERE vendor_id = $2",
		canonicalID, dup.ID,
	)
	if err != nil {
		return fmt.Errorf("reassign invoices: %w", err)
	}
	report.ReassignedInvoices += int(tag.RowsAffected())

	// The cost ledger follows the vendor: rows stay attached to the same
	// real-world supplier under its surviving record.
	tag, err = s.pool.Exec(ctx,
		"UPDATE item_cost_history SET vendor_id = $1 WHERE vendor_id = $2",
		canonicalID, dup.ID,
	)
	if err != nil {
		return fmt.Errorf("reassign cost history: %w", err)
	}
	report.ReassignedCostRecords += int(tag.RowsAffected())

	tag, err = s.pool.Exec(ctx, `
		UPDATE vendor_item_aliases a
		SET vendor_id = $1
		WHERE a.vendor_id = $2
		  AND NOT EXISTS (
				SELECT 1 FROM vendor_item_aliases b
				WHERE b.vendor_id = $1
				  AND b.vendor_item_code = a.vendor_item_code
				  AND b.is_active = true)`,
		canonicalID, dup.ID,
	)
	if err != nil {
		return fmt.Errorf("reassign aliases: %w", err)
	}
	report.ReassignedAliases += int(tag.RowsAffected())

	// Phase 2: re-verify, then delete. The re-query, not the phase-1 counts,
	// decides deletion, which is what makes a crash between phases harmless.
	var remaining int
	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM pack_configurations WHERE vendor_id = $1) +
			(SELECT COUNT(*) FROM invoices WHERE vendor_id = $1) +
			(SELECT COUNT(*) FROM vendor_item_aliases WHERE vendor_id = $1) +
			(SELECT COUNT(*) FROM item_cost_history WHERE vendor_id = $1)`,
		dup.ID,
	).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("verify remaining references: %w", err)
	}
	if remaining != 0 {
		report.Skipped++
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("vendor %d (%s) still has %d reference(s); deletion skipped", dup.ID, dup.Name, remaining))
		return nil
	}

	if _, err := s.pool.Exec(ctx, "DELETE FROM vendors WHERE id = $1", dup.ID); err != nil {
		return fmt.Errorf("delete vendor: %w", err)
	}
	report.Deleted++
	return nil
}
