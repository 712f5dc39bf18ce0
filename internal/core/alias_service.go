package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AliasService owns the durable vendor-specific code→item mappings and the
// append-only cost-history ledger fed by confirmations.
type AliasService interface {
	// LookupAlias returns the active alias for (vendorID, vendorItemCode), or
	// nil when none exists. A hit short-circuits all scoring.
	LookupAlias(ctx context.Context, vendorID int, vendorItemCode string) (*VendorItemAlias, error)

	// ConfirmMapping records a confirmed mapping. Latest confirmation wins:
	// an existing active alias for the natural key is overwritten in place,
	// never duplicated. The same transaction supersedes the vendor+code pack
	// configuration when the pack text parses, appends a cost-history record
	// when a unit cost is available, and maps the confirming invoice line.
	ConfirmMapping(ctx context.Context, input ConfirmInput) (*VendorItemAlias, error)

	// ApplyAliases auto-maps every unresolved line whose (vendor, code) has
	// an active alias. Dry-run reports the exact hit list without mutating.
	ApplyAliases(ctx context.Context, venueID int, apply bool) (*AliasApplyResult, error)

	// UnmapLine resets a line's item_id to NULL to force re-review. Refused
	// for lines of approved invoices.
	UnmapLine(ctx context.Context, lineID int) error
}

type aliasService struct {
	pool *pgxpool.Pool
}

// NewAliasService constructs an AliasService backed by PostgreSQL.
func NewAliasService(pool *pgxpool.Pool) AliasService {
	return &aliasService{pool: pool}
}

const aliasColumns = `id, vendor_id, vendor_item_code, item_id, vendor_description,
	pack_size_text, confirm_count, is_active, created_at, updated_at`

func scanAlias(row pgx.Row) (*VendorItemAlias, error) {
	a := &VendorItemAlias{}
	err := row.Scan(
		&a.ID, &a.VendorID, &a.VendorItemCode, &a.ItemID, &a.VendorDescription,
		&a.PackSizeText, &a.ConfirmCount, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *aliasService) LookupAlias(ctx context.Context, vendorID int, vendorItemCode string) (*VendorItemAlias, error) {
	a, err := scanAlias(s.pool.QueryRow(ctx, `
		SELECT `+aliasColumns+`
		FROM vendor_item_aliases
		WHERE vendor_id = $1 AND vendor_item_code = $2 AND is_active = true`,
		vendorID, vendorItemCode,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup alias %d/%q: %w", vendorID, vendorItemCode, err)
	}
	return a, nil
}

func (s *aliasService) ConfirmMapping(ctx context.Context, input ConfirmInput) (*VendorItemAlias, error) {
	if input.VendorID == 0 || input.VendorItemCode == "" || input.ItemID == 0 {
		return nil, fmt.Errorf("confirm mapping: vendor id, vendor item code, and item id are required")
	}
	effectiveDate := input.EffectiveDate
	if effectiveDate == "" {
		effectiveDate = time.Now().Format("2006-01-02")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin confirm transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Read by natural key, merge fields, write back. Expressed without native
	// upsert so the behavior is portable to any storage engine.
	var aliasID int
	err = tx.QueryRow(ctx, `
		SELECT id FROM vendor_item_aliases
		WHERE vendor_id = $1 AND vendor_item_code = $2 AND is_active = true
		FOR UPDATE`,
		input.VendorID, input.VendorItemCode,
	).Scan(&aliasID)

	var alias *VendorItemAlias
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		alias, err = scanAlias(tx.QueryRow(ctx, `
			INSERT INTO vendor_item_aliases
				(vendor_id, vendor_item_code, item_id, vendor_description, pack_size_text, confirm_count, is_active)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), 1, true)
			RETURNING `+aliasColumns,
			input.VendorID, input.VendorItemCode, input.ItemID, input.Description, input.PackSizeText,
		))
		if err != nil {
			return nil, fmt.Errorf("insert alias %d/%q: %w", input.VendorID, input.VendorItemCode, err)
		}
	case err != nil:
		return nil, fmt.Errorf("read alias %d/%q: %w", input.VendorID, input.VendorItemCode, err)
	default:
		alias, err = scanAlias(tx.QueryRow(ctx, `
			UPDATE vendor_item_aliases
			SET item_id = $1,
			    vendor_description = NULLIF($2, ''),
			    pack_size_text = NULLIF($3, ''),
			    confirm_count = confirm_count + 1,
			    updated_at = NOW()
			WHERE id = $4
			RETURNING `+aliasColumns,
			input.ItemID, input.Description, input.PackSizeText, aliasID,
		))
		if err != nil {
			return nil, fmt.Errorf("update alias %d/%q: %w", input.VendorID, input.VendorItemCode, err)
		}
	}

	// Supersede, never merge: deactivate the old vendor+code pack config and
	// insert a fresh one when the confirmation's text parses.
	packText := input.PackSizeText
	if packText == "" {
		packText = input.Description
	}
	if ps := ParsePackSize(packText); ps != nil {
		_, err = tx.Exec(ctx, `
			UPDATE pack_configurations
			SET is_active = false
			WHERE vendor_id = $1 AND vendor_item_code = $2 AND is_active = true`,
			input.VendorID, input.VendorItemCode,
		)
		if err != nil {
			return nil, fmt.Errorf("deactivate pack configurations: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO pack_configurations
				(item_id, vendor_id, vendor_item_code, pack_type, units_per_pack, unit_size, unit_size_uom, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true)`,
			input.ItemID, input.VendorID, input.VendorItemCode,
			string(ps.PackType), ps.UnitsPerPack, ps.UnitSize, ps.UnitSizeUOM,
		)
		if err != nil {
			return nil, fmt.Errorf("insert pack configuration: %w", err)
		}
	}

	// Append-only ledger; not part of the alias's identity.
	if input.UnitCost != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO item_cost_history (item_id, vendor_id, unit_cost, effective_date)
			VALUES ($1, $2, $3, $4)`,
			input.ItemID, input.VendorID, *input.UnitCost, effectiveDate,
		)
		if err != nil {
			return nil, fmt.Errorf("append cost history: %w", err)
		}
	}

	if input.LineID != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE invoice_lines il
			SET item_id = $1
			FROM invoices i
			WHERE i.id = il.invoice_id
			  AND il.id = $2
			  AND i.status <> 'approved'`,
			input.ItemID, *input.LineID,
		)
		if err != nil {
			return nil, fmt.Errorf("map invoice line %d: %w", *input.LineID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("invoice line %d not found or its invoice is approved", *input.LineID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirm transaction: %w", err)
	}
	return alias, nil
}

func (s *aliasService) ApplyAliases(ctx context.Context, venueID int, apply bool) (*AliasApplyResult, error) {
	res := &AliasApplyResult{}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM invoice_lines il
		JOIN invoices i ON i.id = il.invoice_id
		WHERE i.venue_id = $1 AND il.item_id IS NULL AND i.status <> 'approved'`,
		venueID,
	).Scan(&res.Processed)
	if err != nil {
		return nil, fmt.Errorf("count unresolved lines: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT il.id, i.vendor_id, il.vendor_item_code, a.item_id
		FROM invoice_lines il
		JOIN invoices i ON i.id = il.invoice_id
		JOIN vendor_item_aliases a
		  ON a.vendor_id = i.vendor_id
		 AND a.vendor_item_code = il.vendor_item_code
		 AND a.is_active = true
		WHERE i.venue_id = $1
		  AND il.item_id IS NULL
		  AND il.vendor_item_code IS NOT NULL
		  AND i.status <> 'approved'
		ORDER BY il.id`,
		venueID,
	)
	if err != nil {
		return nil, fmt.Errorf("find alias hits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h AliasHit
		if err := rows.Scan(&h.LineID, &h.VendorID, &h.VendorItemCode, &h.ItemID); err != nil {
			return nil, fmt.Errorf("scan alias hit: %w", err)
		}
		res.Hits = append(res.Hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alias hits: %w", err)
	}
	res.Matched = len(res.Hits)
	if !apply {
		return res, nil
	}

	for _, h := range res.Hits {
		tag, err := s.pool.Exec(ctx, `
			UPDATE invoice_lines il
			SET item_id = $1
			FROM invoices i
			WHERE i.id = il.invoice_id
			  AND il.id = $2
			  AND il.item_id IS NULL
			  AND i.status <> 'approved'`,
			h.ItemID, h.LineID,
		)
		if err != nil {
			res.Failed++
			continue
		}
		if tag.RowsAffected() == 0 {
			res.Skipped++
			continue
		}
		res.Updated++
	}
	return res, nil
}

func (s *aliasService) UnmapLine(ctx context.Context, lineID int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoice_lines il
		SET item_id = NULL
		FROM invoices i
		WHERE i.id = il.invoice_id
		  AND il.id = $1
		  AND i.status <> 'approved'`,
		lineID,
	)
	if err != nil {
		return fmt.Errorf("unmap line %d: %w", lineID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice line %d not found or its invoice is approved", lineID)
	}
	return nil
}
