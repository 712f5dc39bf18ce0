package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SuggestOptions carries the tunables of suggestion generation. Zero values
// fall back to the source system's empirical defaults.
type SuggestOptions struct {
	TopK            int
	LikelyThreshold float64
	MaybeThreshold  float64
	TokenCutoff     int
	PageSize        int
}

const (
	DefaultTopK     = 3
	DefaultPageSize = 500
)

func (o SuggestOptions) withDefaults() SuggestOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.LikelyThreshold <= 0 {
		o.LikelyThreshold = DefaultLikelyThreshold
	}
	if o.MaybeThreshold <= 0 {
		o.MaybeThreshold = DefaultMaybeThreshold
	}
	if o.TokenCutoff <= 0 {
		o.TokenCutoff = DefaultTokenCutoff
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	return o
}

// SuggestionService turns a venue's unresolved invoice lines into ranked,
// bucketed review groups.
type SuggestionService interface {
	GenerateSuggestions(ctx context.Context, venueID int, opts SuggestOptions) ([]*SuggestionGroup, error)
}

type suggestionService struct {
	pool    *pgxpool.Pool
	catalog CatalogService
}

// NewSuggestionService constructs a SuggestionService backed by PostgreSQL.
func NewSuggestionService(pool *pgxpool.Pool, catalog CatalogService) SuggestionService {
	return &suggestionService{pool: pool, catalog: catalog}
}

// GenerateSuggestions partitions unresolved lines by (vendor, normalized
// description) so structurally identical lines are scored exactly once, then
// ranks the venue catalog against each group and classifies its confidence
// bucket. Lines whose (vendor, code) already has an active alias never reach
// the scorer: they belong to the alias pass, not the review queue. Lines of
// approved invoices are excluded: that lock belongs to the external approval
// workflow.
func (s *suggestionService) GenerateSuggestions(ctx context.Context, venueID int, opts SuggestOptions) ([]*SuggestionGroup, error) {
	opts = opts.withDefaults()

	items, err := s.catalog.GetItems(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	confirmCounts, err := s.catalog.GetAliasConfirmCounts(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("load confirm counts: %w", err)
	}

	lines, err := s.fetchUnresolvedLines(ctx, venueID, opts.PageSize)
	if err != nil {
		return nil, err
	}

	groups := GroupUnresolvedLines(lines)
	for _, g := range groups {
		g.Suggestions = RankCandidates(g.Normalized, items, confirmCounts, opts.TopK, opts.TokenCutoff)
		g.PackSize = ParsePackSize(g.RawDescription)
		g.Bucket = ClassifyBucket(g.TopScore(), opts.LikelyThreshold, opts.MaybeThreshold)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].TopScore() != groups[j].TopScore() {
			return groups[i].TopScore() > groups[j].TopScore()
		}
		if groups[i].VendorID != groups[j].VendorID {
			return groups[i].VendorID < groups[j].VendorID
		}
		return groups[i].Normalized < groups[j].Normalized
	})
	return groups, nil
}

// fetchUnresolvedLines pages through the venue's unresolved lines with keyset
// pagination; scale comes from fixed-size pages, not in-process parallelism.
func (s *suggestionService) fetchUnresolvedLines(ctx context.Context, venueID, pageSize int) ([]InvoiceLine, error) {
	var all []InvoiceLine
	lastID := 0
	for {
		rows, err := s.pool.Query(ctx, `
			SELECT il.id, il.invoice_id, i.vendor_id, v.name,
			       il.raw_description, il.vendor_item_code, il.quantity, il.unit_cost
			FROM invoice_lines il
			JOIN invoices i ON i.id = il.invoice_id
			JOIN vendors v  ON v.id = i.vendor_id
			WHERE i.venue_id = $1
			  AND il.item_id IS NULL
			  AND i.status <> 'approved'
			  AND NOT EXISTS (
					SELECT 1 FROM vendor_item_aliases a
					WHERE a.vendor_id = i.vendor_id
					  AND a.vendor_item_code = il.vendor_item_code
					  AND a.is_active = true)
			  AND il.id > $2
			ORDER BY il.id
			LIMIT $3`,
			venueID, lastID, pageSize,
		)
		if err != nil {
			return nil, fmt.Errorf("fetch unresolved lines: %w", err)
		}

		n := 0
		for rows.Next() {
			var ln InvoiceLine
			if err := rows.Scan(
				&ln.ID, &ln.InvoiceID, &ln.VendorID, &ln.VendorName,
				&ln.RawDescription, &ln.VendorItemCode, &ln.Quantity, &ln.UnitCost,
			); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan unresolved line: %w", err)
			}
			all = append(all, ln)
			lastID = ln.ID
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate unresolved lines: %w", err)
		}
		if n < pageSize {
			return all, nil
		}
	}
}

type groupKey struct {
	vendorID   int
	normalized string
}

// GroupUnresolvedLines partitions lines by (vendor, normalized description),
// preserving first-seen order. Lines with empty descriptions are skipped,
// never fatal. Already-mapped lines are ignored.
func GroupUnresolvedLines(lines []InvoiceLine) []*SuggestionGroup {
	byKey := make(map[groupKey]*SuggestionGroup)
	var order []*SuggestionGroup

	for _, ln := range lines {
		if ln.ItemID != nil {
			continue
		}
		norm := Normalize(ln.RawDescription)
		if norm == "" {
			continue
		}
		key := groupKey{vendorID: ln.VendorID, normalized: norm}
		g, ok := byKey[key]
		if !ok {
			g = &SuggestionGroup{
				VendorID:       ln.VendorID,
				VendorName:     ln.VendorName,
				Normalized:     norm,
				RawDescription: ln.RawDescription,
			}
			byKey[key] = g
			order = append(order, g)
		}
		g.LineIDs = append(g.LineIDs, ln.ID)
		if g.VendorItemCode == nil && ln.VendorItemCode != nil {
			code := *ln.VendorItemCode
			g.VendorItemCode = &code
		}
	}
	return order
}
