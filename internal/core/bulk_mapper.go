package core

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BulkMapper applies a confidence threshold across suggestion groups and maps
// every member line of each eligible group in one pass.
type BulkMapper interface {
	// BulkMap selects groups whose top suggestion scores at least minScore.
	// Dry-run (apply=false) returns the exact plan with zero mutation; apply
	// mode updates member lines in fixed-size batches, guarded by
	// "item_id IS NULL" so a concurrently claimed line is skipped, not
	// overwritten. A failed batch is counted and does not abort the rest.
	BulkMap(ctx context.Context, groups []*SuggestionGroup, minScore float64, apply bool) (*BulkMapResult, error)
}

type bulkMapper struct {
	pool      *pgxpool.Pool
	batchSize int
}

const DefaultBatchSize = 200

// NewBulkMapper constructs a BulkMapper backed by PostgreSQL. batchSize <= 0
// falls back to DefaultBatchSize.
func NewBulkMapper(pool *pgxpool.Pool, batchSize int) BulkMapper {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &bulkMapper{pool: pool, batchSize: batchSize}
}

// SelectEligible computes the bulk-map plan for the given threshold. Pure:
// this is the single source of truth for both dry-run reporting and apply
// mode, so dry-run output is exactly what apply would do.
func SelectEligible(groups []*SuggestionGroup, minScore float64) []BulkMapPlan {
	var plans []BulkMapPlan
	for _, g := range groups {
		if len(g.Suggestions) == 0 || g.TopScore() < minScore {
			continue
		}
		top := g.Suggestions[0]
		plans = append(plans, BulkMapPlan{
			VendorID:   g.VendorID,
			VendorName: g.VendorName,
			Normalized: g.Normalized,
			ItemID:     top.ItemID,
			ItemName:   top.ItemName,
			Score:      top.Score,
			LineIDs:    append([]int(nil), g.LineIDs...),
		})
	}
	return plans
}

func (m *bulkMapper) BulkMap(ctx context.Context, groups []*SuggestionGroup, minScore float64, apply bool) (*BulkMapResult, error) {
	res := &BulkMapResult{
		GroupsConsidered: len(groups),
		Plans:            SelectEligible(groups, minScore),
	}
	res.GroupsEligible = len(res.Plans)
	if !apply {
		return res, nil
	}

	for _, plan := range res.Plans {
		for _, batch := range intBatches(plan.LineIDs, m.batchSize) {
			tag, err := m.pool.Exec(ctx, `
				UPDATE invoice_lines il
				SET item_id = $1
				FROM invoices i
				WHERE i.id = il.invoice_id
				  AND il.id = ANY($2)
				  AND il.item_id IS NULL
				  AND i.status <> 'approved'`,
				plan.ItemID, batch,
			)
			if err != nil {
				// Partial-failure semantics: count and move on.
				res.Failed += len(batch)
				continue
			}
			updated := int(tag.RowsAffected())
			res.Updated += updated
			res.Skipped += len(batch) - updated
		}
	}
	return res, nil
}

// intBatches splits ids into fixed-size chunks to bound the blast radius of
// any single write failure.
func intBatches(ids []int, size int) [][]int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]int
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
