package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"item-resolver/internal/ai"
	"item-resolver/internal/config"
	"item-resolver/internal/core"
	"item-resolver/internal/db"
	"item-resolver/internal/report"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: resolver <command> [flags]

Commands:
  suggest        generate review groups for unresolved invoice lines (read-only)
  apply-aliases  auto-map lines whose vendor code has a learned alias
  bulk-map       map every group whose top suggestion clears --min-score
  merge-vendors  merge duplicate vendor master records
  confirm        record a confirmed vendor-code-to-item mapping
  unmap          reset a line's mapping to force re-review

Mutating commands default to dry-run; pass --apply to write.
Run "resolver <command> -h" for the command's flags.`)
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		usage()
		if len(os.Args) < 2 {
			os.Exit(2)
		}
		return
	}

	cfg := config.Load()
	logger := config.SetupLogger(cfg).With().
		Str("run_id", uuid.NewString()).
		Str("command", os.Args[1]).
		Logger()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		// Setup failure: the one case that exits nonzero.
		logger.Fatal().Err(err).Msg("cannot reach backing store")
	}
	defer pool.Close()

	args := os.Args[2:]
	switch os.Args[1] {
	case "suggest":
		err = runSuggest(ctx, pool, cfg, logger, args)
	case "apply-aliases":
		err = runApplyAliases(ctx, pool, logger, args)
	case "bulk-map":
		err = runBulkMap(ctx, pool, cfg, logger, args)
	case "merge-vendors":
		err = runMergeVendors(ctx, pool, logger, args)
	case "confirm":
		err = runConfirm(ctx, pool, logger, args)
	case "unmap":
		err = runUnmap(ctx, pool, logger, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func suggestOptions(cfg config.Config, topK int) core.SuggestOptions {
	return core.SuggestOptions{
		TopK:            topK,
		LikelyThreshold: cfg.LikelyThreshold,
		MaybeThreshold:  cfg.MaybeThreshold,
		TokenCutoff:     cfg.TokenCutoff,
		PageSize:        cfg.PageSize,
	}
}

func generateGroups(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, venueID, topK int) ([]*core.SuggestionGroup, error) {
	catalog := core.NewCatalogService(pool)
	svc := core.NewSuggestionService(pool, catalog)
	return svc.GenerateSuggestions(ctx, venueID, suggestOptions(cfg, topK))
}

func runSuggest(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	venueID := fs.Int("venue-id", 0, "venue to resolve (required)")
	topK := fs.Int("top-k", cfg.TopK, "candidates to keep per group")
	out := fs.String("out", "", "write a review workbook (.xlsx) to this path")
	useAI := fs.Bool("ai", false, "ask the LLM assistant to adjudicate ambiguous groups")
	fs.Parse(args)
	if *venueID == 0 {
		return fmt.Errorf("--venue-id is required")
	}

	groups, err := generateGroups(ctx, pool, cfg, *venueID, *topK)
	if err != nil {
		return err
	}

	lines := 0
	buckets := map[core.ConfidenceBucket]int{}
	for _, g := range groups {
		lines += len(g.LineIDs)
		buckets[g.Bucket]++
	}

	var assistant *ai.Assistant
	if *useAI {
		if cfg.OpenAIKey == "" {
			logger.Warn().Msg("OPENAI_API_KEY not set; skipping assistant")
		} else {
			assistant = ai.NewAssistant(cfg.OpenAIKey)
		}
	}

	for _, g := range groups {
		code := ""
		if g.VendorItemCode != nil {
			code = " code=" + *g.VendorItemCode
		}
		fmt.Printf("[%-12s] %s%s %q -> %q (%d lines)\n",
			g.Bucket, g.VendorName, code, g.RawDescription, g.Normalized, len(g.LineIDs))
		if g.PackSize != nil {
			fmt.Printf("    pack: %s\n", g.PackSize)
		}
		for _, s := range g.Suggestions {
			fmt.Printf("    %.2f  %-12s %s (%s/%s, confirmed %dx)\n",
				s.Score, s.ItemSKU, s.ItemName, s.MatchedOn, s.MatchReason, s.ConfirmCount)
		}
		if assistant != nil && (g.Bucket == core.BucketMaybe || g.Bucket == core.BucketProbableNew) {
			decision, err := assistant.PickMatch(ctx, g)
			if err != nil {
				logger.Warn().Err(err).Str("group", g.Normalized).Msg("assistant failed")
				continue
			}
			if decision.IsNewItem {
				fmt.Printf("    assistant: new item (%.2f) %s\n", decision.Confidence, decision.Reasoning)
			} else {
				fmt.Printf("    assistant: %s (%.2f) %s\n", decision.CandidateSKU, decision.Confidence, decision.Reasoning)
			}
		}
	}

	if *out != "" {
		if err := report.WriteReviewWorkbook(*out, groups); err != nil {
			return fmt.Errorf("write review workbook: %w", err)
		}
		logger.Info().Str("path", *out).Msg("review workbook written")
	}

	fmt.Printf("\nprocessed=%d groups=%d likely=%d maybe=%d probable-new=%d definite-new=%d\n",
		lines, len(groups),
		buckets[core.BucketLikely], buckets[core.BucketMaybe],
		buckets[core.BucketProbableNew], buckets[core.BucketDefiniteNew])
	return nil
}

func runApplyAliases(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("apply-aliases", flag.ExitOnError)
	venueID := fs.Int("venue-id", 0, "venue to resolve (required)")
	apply := fs.Bool("apply", false, "write mappings (default dry-run)")
	fs.Parse(args)
	if *venueID == 0 {
		return fmt.Errorf("--venue-id is required")
	}

	svc := core.NewAliasService(pool)
	res, err := svc.ApplyAliases(ctx, *venueID, *apply)
	if err != nil {
		return err
	}

	for _, h := range res.Hits {
		fmt.Printf("line %d: vendor %d code %q -> item %d\n", h.LineID, h.VendorID, h.VendorItemCode, h.ItemID)
	}
	mode := "dry-run"
	if *apply {
		mode = "apply"
	}
	logger.Info().Str("mode", mode).
		Int("processed", res.Processed).Int("matched", res.Matched).
		Int("updated", res.Updated).Int("skipped", res.Skipped).Int("failed", res.Failed).
		Msg("alias pass complete")
	fmt.Printf("\n[%s] processed=%d matched=%d updated=%d skipped=%d failed=%d\n",
		mode, res.Processed, res.Matched, res.Updated, res.Skipped, res.Failed)
	return nil
}

func runBulkMap(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("bulk-map", flag.ExitOnError)
	venueID := fs.Int("venue-id", 0, "venue to resolve (required)")
	minScore := fs.Float64("min-score", cfg.MinScore, "minimum top-suggestion score, in [0,1]")
	apply := fs.Bool("apply", false, "write mappings (default dry-run)")
	fs.Parse(args)
	if *venueID == 0 {
		return fmt.Errorf("--venue-id is required")
	}
	if *minScore < 0 || *minScore > 1 {
		return fmt.Errorf("--min-score must be in [0,1], got %v", *minScore)
	}

	groups, err := generateGroups(ctx, pool, cfg, *venueID, cfg.TopK)
	if err != nil {
		return err
	}

	mapper := core.NewBulkMapper(pool, cfg.BatchSize)
	res, err := mapper.BulkMap(ctx, groups, *minScore, *apply)
	if err != nil {
		return err
	}

	// The plan prints identically in both modes; dry-run is the contract for
	// what apply will do.
	for _, p := range res.Plans {
		fmt.Printf("%.2f %s %q -> %s (%d lines)\n",
			p.Score, p.VendorName, p.Normalized, p.ItemName, len(p.LineIDs))
	}
	mode := "dry-run"
	if *apply {
		mode = "apply"
	}
	logger.Info().Str("mode", mode).Float64("min_score", *minScore).
		Int("groups", res.GroupsConsidered).Int("eligible", res.GroupsEligible).
		Int("updated", res.Updated).Int("skipped", res.Skipped).Int("failed", res.Failed).
		Msg("bulk map complete")
	fmt.Printf("\n[%s] groups=%d eligible=%d updated=%d skipped=%d failed=%d\n",
		mode, res.GroupsConsidered, res.GroupsEligible, res.Updated, res.Skipped, res.Failed)
	return nil
}

func runMergeVendors(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("merge-vendors", flag.ExitOnError)
	venueID := fs.Int("venue-id", 0, "venue to resolve (required)")
	apply := fs.Bool("apply", false, "write the merge (default dry-run)")
	canonicalID := fs.Int("canonical-id", 0, "override the surviving vendor for the group containing this id")
	fs.Parse(args)
	if *venueID == 0 {
		return fmt.Errorf("--venue-id is required")
	}

	svc := core.NewVendorDedupService(pool)
	groups, err := svc.FindDuplicateVendors(ctx, *venueID)
	if err != nil {
		return err
	}

	total := core.MergeReport{}
	for _, g := range groups {
		if *canonicalID != 0 {
			member := false
			for _, v := range g.Vendors {
				if v.ID == *canonicalID {
					member = true
					break
				}
			}
			if !member {
				continue
			}
			g.CanonicalID = *canonicalID
		}

		names := make([]string, 0, len(g.Vendors))
		for _, v := range g.Vendors {
			names = append(names, fmt.Sprintf("%d:%s", v.ID, v.Name))
		}
		fmt.Printf("group %q canonical=%d members=[%s]\n", g.NormalizedName, g.CanonicalID, strings.Join(names, ", "))

		rep, err := svc.MergeGroup(ctx, g, *apply)
		if err != nil {
			return err
		}
		total.DuplicatesProcessed += rep.DuplicatesProcessed
		total.ReassignedPacks += rep.ReassignedPacks
		total.ReassignedInvoices += rep.ReassignedInvoices
		total.ReassignedAliases += rep.ReassignedAliases
		total.ReassignedCostRecords += rep.ReassignedCostRecords
		total.Deleted += rep.Deleted
		total.Skipped += rep.Skipped
		for _, w := range rep.Warnings {
			logger.Warn().Msg(w)
			fmt.Printf("    warning: %s\n", w)
		}
	}

	mode := "dry-run"
	if *apply {
		mode = "apply"
	}
	logger.Info().Str("mode", mode).
		Int("groups", len(groups)).Int("duplicates", total.DuplicatesProcessed).
		Int("packs", total.ReassignedPacks).Int("invoices", total.ReassignedInvoices).
		Int("aliases", total.ReassignedAliases).
		Int("cost_records", total.ReassignedCostRecords).
		Int("deleted", total.Deleted).Int("skipped", total.Skipped).
		Msg("vendor merge complete")
	fmt.Printf("\n[%s] groups=%d duplicates=%d reassigned(packs=%d invoices=%d aliases=%d cost-records=%d) deleted=%d skipped=%d\n",
		mode, len(groups), total.DuplicatesProcessed,
		total.ReassignedPacks, total.ReassignedInvoices, total.ReassignedAliases,
		total.ReassignedCostRecords, total.Deleted, total.Skipped)
	return nil
}

func runConfirm(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("confirm", flag.ExitOnError)
	vendorID := fs.Int("vendor-id", 0, "vendor the code belongs to (required)")
	code := fs.String("code", "", "vendor item code (required)")
	itemID := fs.Int("item-id", 0, "canonical item to map to (required)")
	lineID := fs.Int("line-id", 0, "invoice line to map alongside the confirmation")
	description := fs.String("description", "", "vendor description as seen on the invoice")
	packText := fs.String("pack-size", "", "pack size text, e.g. \"12/750ML\"")
	unitCost := fs.String("unit-cost", "", "unit cost for the cost-history ledger")
	date := fs.String("date", "", "cost effective date (YYYY-MM-DD, default today)")
	fs.Parse(args)
	if *vendorID == 0 || *code == "" || *itemID == 0 {
		return fmt.Errorf("--vendor-id, --code, and --item-id are required")
	}

	input := core.ConfirmInput{
		VendorID:       *vendorID,
		VendorItemCode: *code,
		ItemID:         *itemID,
		Description:    *description,
		PackSizeText:   *packText,
		EffectiveDate:  *date,
	}
	if *lineID != 0 {
		input.LineID = lineID
	}
	if *unitCost != "" {
		cost, err := decimal.NewFromString(*unitCost)
		if err != nil {
			return fmt.Errorf("invalid --unit-cost %q: %w", *unitCost, err)
		}
		input.UnitCost = &cost
	}

	svc := core.NewAliasService(pool)
	alias, err := svc.ConfirmMapping(ctx, input)
	if err != nil {
		return err
	}
	logger.Info().Int("vendor_id", alias.VendorID).Str("code", alias.VendorItemCode).
		Int("item_id", alias.ItemID).Int("confirm_count", alias.ConfirmCount).
		Msg("mapping confirmed")
	fmt.Printf("alias %d: vendor %d code %q -> item %d (confirmed %dx)\n",
		alias.ID, alias.VendorID, alias.VendorItemCode, alias.ItemID, alias.ConfirmCount)
	return nil
}

func runUnmap(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("unmap", flag.ExitOnError)
	lineID := fs.Int("line-id", 0, "invoice line to unmap (required)")
	fs.Parse(args)
	if *lineID == 0 {
		return fmt.Errorf("--line-id is required")
	}

	svc := core.NewAliasService(pool)
	if err := svc.UnmapLine(ctx, *lineID); err != nil {
		return err
	}
	logger.Info().Int("line_id", *lineID).Msg("line unmapped")
	fmt.Printf("line %d unmapped\n", *lineID)
	return nil
}
