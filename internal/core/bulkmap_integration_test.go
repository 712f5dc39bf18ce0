package core_test

import (
	"context"
	"testing"

	"item-resolver/internal/core"
)

func TestSuggestions_GenerateForVenue(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	svc := core.NewSuggestionService(pool, core.NewCatalogService(pool))

	groups, err := svc.GenerateSuggestions(ctx, 1, core.SuggestOptions{})
	if err != nil {
		t.Fatalf("GenerateSuggestions: %v", err)
	}

	// Seed data collapses to two review groups on the pending invoice:
	// "grey goose" (lines 1+2) and "chicken breast" (line 3). The approved
	// invoice's line never surfaces.
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	t.Run("ExactMatchRanksFirst", func(t *testing.T) {
		g := groups[0]
		if g.Normalized != "grey goose" {
			t.Fatalf("top group = %q, want \"grey goose\"", g.Normalized)
		}
		if len(g.LineIDs) != 2 {
			t.Errorf("expected 2 member lines, got %v", g.LineIDs)
		}
		if g.TopScore() != 1.0 {
			t.Errorf("top score = %v, want 1.0", g.TopScore())
		}
		if g.Suggestions[0].ItemSKU != "GG-750" {
			t.Errorf("top suggestion = %q, want GG-750", g.Suggestions[0].ItemSKU)
		}
		if g.Bucket != core.BucketLikely {
			t.Errorf("bucket = %q, want likely", g.Bucket)
		}
	})

	t.Run("ContainmentScoresLikely", func(t *testing.T) {
		g := groups[1]
		if g.Normalized != "chicken breast" {
			t.Fatalf("second group = %q, want \"chicken breast\"", g.Normalized)
		}
		if g.TopScore() != 0.8 {
			t.Errorf("top score = %v, want 0.8", g.TopScore())
		}
		if g.Suggestions[0].ItemSKU != "CHX-BRST" {
			t.Errorf("top suggestion = %q, want CHX-BRST", g.Suggestions[0].ItemSKU)
		}
		if g.Bucket != core.BucketLikely {
			t.Errorf("bucket = %q, want likely", g.Bucket)
		}
	})

	t.Run("PackSizeAttached", func(t *testing.T) {
		g := groups[0]
		if g.PackSize == nil {
			t.Fatal("expected a parsed pack size for the grey goose group")
		}
		if g.PackSize.UnitSizeUOM != "mL" {
			t.Errorf("uom = %q, want mL", g.PackSize.UnitSizeUOM)
		}
	})
}

func TestSuggestions_AliasCoveredLinesNeverScored(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	aliases := core.NewAliasService(pool)
	suggest := core.NewSuggestionService(pool, core.NewCatalogService(pool))

	// An active alias for GG123 covers lines 1 and 2; the alias pass owns
	// them now, so review groups must hold only the chicken breast line.
	if _, err := aliases.ConfirmMapping(ctx, core.ConfirmInput{
		VendorID: 1, VendorItemCode: "GG123", ItemID: 1,
	}); err != nil {
		t.Fatalf("ConfirmMapping: %v", err)
	}

	groups, err := suggest.GenerateSuggestions(ctx, 1, core.SuggestOptions{})
	if err != nil {
		t.Fatalf("GenerateSuggestions: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].Normalized != "chicken breast" {
		t.Errorf("remaining group = %q, want \"chicken breast\"", groups[0].Normalized)
	}
	for _, id := range groups[0].LineIDs {
		if id == 1 || id == 2 {
			t.Errorf("alias-covered line %d surfaced for review", id)
		}
	}
}

func TestBulkMap_DryRunThenApply(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	suggest := core.NewSuggestionService(pool, core.NewCatalogService(pool))
	mapper := core.NewBulkMapper(pool, 0)

	groups, err := suggest.GenerateSuggestions(ctx, 1, core.SuggestOptions{})
	if err != nil {
		t.Fatalf("GenerateSuggestions: %v", err)
	}

	t.Run("DryRun_PlansWithoutMutating", func(t *testing.T) {
		res, err := mapper.BulkMap(ctx, groups, 0.8, false)
		if err != nil {
			t.Fatalf("BulkMap dry-run: %v", err)
		}
		if res.GroupsConsidered != 2 || res.GroupsEligible != 2 {
			t.Errorf("considered/eligible = %d/%d, want 2/2", res.GroupsConsidered, res.GroupsEligible)
		}
		if res.Updated != 0 {
			t.Errorf("dry-run must not update, got %d", res.Updated)
		}

		var mapped int
		if err := pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM invoice_lines WHERE item_id IS NOT NULL",
		).Scan(&mapped); err != nil {
			t.Fatalf("count mapped lines: %v", err)
		}
		if mapped != 0 {
			t.Errorf("dry-run mutated %d line(s)", mapped)
		}
	})

	t.Run("Apply_MapsExactlyThePlan", func(t *testing.T) {
		// Claim line 2 out from under the plan; the IS NULL guard must
		// skip it rather than overwrite.
		if _, err := pool.Exec(ctx,
			"UPDATE invoice_lines SET item_id = 3 WHERE id = 2",
		); err != nil {
			t.Fatalf("claim line 2: %v", err)
		}

		res, err := mapper.BulkMap(ctx, groups, 0.8, true)
		if err != nil {
			t.Fatalf("BulkMap apply: %v", err)
		}
		if res.Updated != 2 {
			t.Errorf("expected 2 updated (lines 1 and 3), got %d", res.Updated)
		}
		if res.Skipped != 1 {
			t.Errorf("expected 1 skipped (concurrently claimed line), got %d", res.Skipped)
		}
		if res.Failed != 0 {
			t.Errorf("expected 0 failed, got %d", res.Failed)
		}

		var itemID *int
		if err := pool.QueryRow(ctx,
			"SELECT item_id FROM invoice_lines WHERE id = 2",
		).Scan(&itemID); err != nil {
			t.Fatalf("read line 2: %v", err)
		}
		if itemID == nil || *itemID != 3 {
			t.Error("guard overwrote a concurrently claimed line")
		}

		var approvedMapped int
		if err := pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM invoice_lines WHERE invoice_id = 2 AND item_id IS NOT NULL",
		).Scan(&approvedMapped); err != nil {
			t.Fatalf("count approved-invoice lines: %v", err)
		}
		if approvedMapped != 0 {
			t.Error("approved invoice's line must stay untouched")
		}
	})

	t.Run("Rerun_NothingLeftToMap", func(t *testing.T) {
		groups, err := suggest.GenerateSuggestions(ctx, 1, core.SuggestOptions{})
		if err != nil {
			t.Fatalf("GenerateSuggestions: %v", err)
		}
		if len(groups) != 0 {
			t.Errorf("expected no unresolved groups after apply, got %d", len(groups))
		}
	})
}

func TestBulkMap_ThresholdExcludesLowScores(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	suggest := core.NewSuggestionService(pool, core.NewCatalogService(pool))
	mapper := core.NewBulkMapper(pool, 0)

	groups, err := suggest.GenerateSuggestions(ctx, 1, core.SuggestOptions{})
	if err != nil {
		t.Fatalf("GenerateSuggestions: %v", err)
	}

	res, err := mapper.BulkMap(ctx, groups, 0.95, true)
	if err != nil {
		t.Fatalf("BulkMap: %v", err)
	}
	// Only the exact-match group clears 0.95; the 0.8 containment group
	// stays for manual review.
	if res.GroupsEligible != 1 {
		t.Errorf("expected 1 eligible group, got %d", res.GroupsEligible)
	}
	if res.Updated != 2 {
		t.Errorf("expected 2 updated lines, got %d", res.Updated)
	}

	var unresolved int
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM invoice_lines il
		JOIN invoices i ON i.id = il.invoice_id
		WHERE il.item_id IS NULL AND i.status <> 'approved'`,
	).Scan(&unresolved); err != nil {
		t.Fatalf("count unresolved: %v", err)
	}
	if unresolved != 1 {
		t.Errorf("expected 1 line left unresolved, got %d", unresolved)
	}
}
