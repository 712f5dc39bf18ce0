package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService reads the canonical item catalog for a venue. The catalog is
// owned by the wider platform; the resolver treats it as read-only apart from
// the alias-confirmation bookkeeping that feeds the scorer tie-break.
type CatalogService interface {
	// GetItems returns all active canonical items for a venue, ordered by ID.
	GetItems(ctx context.Context, venueID int) ([]CanonicalItem, error)

	// GetAliasConfirmCounts aggregates active-alias confirmation counts per
	// item, across all of the venue's vendors.
	GetAliasConfirmCounts(ctx context.Context, venueID int) (map[int]int, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

// NewCatalogService constructs a CatalogService backed by PostgreSQL.
func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func (s *catalogService) GetItems(ctx context.Context, venueID int) ([]CanonicalItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, venue_id, name, sku, category, subcategory, base_uom, is_active, created_at
		FROM items
		WHERE venue_id = $1 AND is_active = true
		ORDER BY id`,
		venueID,
	)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	defer rows.Close()

	var items []CanonicalItem
	for rows.Next() {
		var it CanonicalItem
		if err := rows.Scan(
			&it.ID, &it.VenueID, &it.Name, &it.SKU,
			&it.Category, &it.Subcategory, &it.BaseUOM,
			&it.IsActive, &it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *catalogService) GetAliasConfirmCounts(ctx context.Context, venueID int) (map[int]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.item_id, COALESCE(SUM(a.confirm_count), 0)
		FROM vendor_item_aliases a
		JOIN vendors v ON v.id = a.vendor_id
		WHERE v.venue_id = $1 AND a.is_active = true
		GROUP BY a.item_id`,
		venueID,
	)
	if err != nil {
		return nil, fmt.Errorf("get alias confirm counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var itemID, n int
		if err := rows.Scan(&itemID, &n); err != nil {
			return nil, fmt.Errorf("scan confirm count: %w", err)
		}
		counts[itemID] = n
	}
	return counts, rows.Err()
}
