package core

import (
	"sort"
	"strings"
)

// Empirically chosen in the source system; carried as defaults, overridable
// through configuration.
const (
	DefaultTokenCutoff     = 3
	DefaultLikelyThreshold = 0.5
	DefaultMaybeThreshold  = 0.3
)

// Score rates how likely a normalized description and a candidate item name
// refer to the same product. Symmetric; result is in [0,1].
func Score(query, candidate string) float64 {
	s, _ := scoreDetail(query, candidate, DefaultTokenCutoff)
	return s
}

// scoreDetail evaluates the match rules in order, first applicable wins:
// exact equality 1.0, substring containment 0.8, otherwise the ratio of
// shared long tokens to the union of long tokens from both strings.
func scoreDetail(query, candidate string, tokenCutoff int) (float64, string) {
	a := collapseSpaces(strings.ToLower(query))
	b := collapseSpaces(strings.ToLower(candidate))
	if a == "" || b == "" {
		return 0, ""
	}
	if a == b {
		return 1.0, "exact"
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8, "substring"
	}

	ta := longTokens(a, tokenCutoff)
	tb := longTokens(b, tokenCutoff)
	union := make(map[string]bool, len(ta)+len(tb))
	for t := range ta {
		union[t] = true
	}
	for t := range tb {
		union[t] = true
	}
	if len(union) == 0 {
		return 0, ""
	}
	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	if shared == 0 {
		return 0, ""
	}
	return float64(shared) / float64(len(union)), "tokens"
}

// longTokens keeps only tokens longer than cutoff runes; short connector
// words contribute noise, not signal.
func longTokens(s string, cutoff int) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		if len([]rune(tok)) > cutoff {
			out[tok] = true
		}
	}
	return out
}

// RankCandidates scores a normalized query against every catalog item on both
// name and SKU, returning the top-K suggestions. Ordering is deterministic:
// score descending, then historical alias-confirmation count descending, then
// smaller item ID.
func RankCandidates(query string, items []CanonicalItem, confirmCounts map[int]int, topK, tokenCutoff int) []MatchSuggestion {
	var out []MatchSuggestion
	for _, it := range items {
		score, reason := scoreDetail(query, it.Name, tokenCutoff)
		matchedOn := "name"
		if skuScore, skuReason := scoreDetail(query, it.SKU, tokenCutoff); skuScore > score {
			score, reason, matchedOn = skuScore, skuReason, "sku"
		}
		if score <= 0 {
			continue
		}
		out = append(out, MatchSuggestion{
			ItemID:       it.ID,
			ItemName:     it.Name,
			ItemSKU:      it.SKU,
			Score:        score,
			MatchedOn:    matchedOn,
			MatchReason:  reason,
			ConfirmCount: confirmCounts[it.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].ConfirmCount != out[j].ConfirmCount {
			return out[i].ConfirmCount > out[j].ConfirmCount
		}
		return out[i].ItemID < out[j].ItemID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// ClassifyBucket maps a group's top score to its review confidence bucket.
func ClassifyBucket(topScore, likely, maybe float64) ConfidenceBucket {
	switch {
	case topScore >= likely:
		return BucketLikely
	case topScore >= maybe:
		return BucketMaybe
	case topScore > 0:
		return BucketProbableNew
	default:
		return BucketDefiniteNew
	}
}
