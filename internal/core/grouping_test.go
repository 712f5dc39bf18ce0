package core_test

import (
	"testing"

	"item-resolver/internal/core"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestGroupUnresolvedLines(t *testing.T) {
	lines := []core.InvoiceLine{
		{ID: 1, VendorID: 1, VendorName: "Sysco Foods", RawDescription: "GREY GOOSE VODKA 750ML"},
		{ID: 2, VendorID: 1, VendorName: "Sysco Foods", RawDescription: "Grey Goose Vodka 750 ML", VendorItemCode: strPtr("GG123")},
		{ID: 3, VendorID: 2, VendorName: "US Foods", RawDescription: "GREY GOOSE VODKA 750ML"},
		{ID: 4, VendorID: 1, VendorName: "Sysco Foods", RawDescription: "FRESH CHIX BRST"},
		{ID: 5, VendorID: 1, VendorName: "Sysco Foods", RawDescription: "***"},
		{ID: 6, VendorID: 1, VendorName: "Sysco Foods", RawDescription: "GREY GOOSE VODKA 750ML", ItemID: intPtr(9)},
	}

	groups := core.GroupUnresolvedLines(lines)

	// Same normalized text under two vendors stays two groups; the blank
	// line and the already-mapped line are dropped.
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	g := groups[0]
	if g.VendorID != 1 || g.Normalized != "grey goose" {
		t.Fatalf("first group = vendor %d %q, want vendor 1 \"grey goose\"", g.VendorID, g.Normalized)
	}
	if len(g.LineIDs) != 2 || g.LineIDs[0] != 1 || g.LineIDs[1] != 2 {
		t.Errorf("line ids = %v, want [1 2]", g.LineIDs)
	}
	if g.RawDescription != "GREY GOOSE VODKA 750ML" {
		t.Errorf("representative raw = %q, want first line's text", g.RawDescription)
	}
	if g.VendorItemCode == nil || *g.VendorItemCode != "GG123" {
		t.Errorf("vendor item code = %v, want GG123 from the first line that has one", g.VendorItemCode)
	}

	if groups[1].VendorID != 2 || groups[1].Normalized != "grey goose" {
		t.Errorf("second group = vendor %d %q, want vendor 2 \"grey goose\"", groups[1].VendorID, groups[1].Normalized)
	}
	if groups[2].Normalized != "chicken breast" {
		t.Errorf("third group = %q, want \"chicken breast\"", groups[2].Normalized)
	}
}

func TestSelectEligible(t *testing.T) {
	groups := []*core.SuggestionGroup{
		{
			VendorID: 1, Normalized: "grey goose", LineIDs: []int{1, 2},
			Suggestions: []core.MatchSuggestion{{ItemID: 10, ItemName: "Grey Goose", Score: 1.0}},
		},
		{
			VendorID: 1, Normalized: "chicken breast", LineIDs: []int{3},
			Suggestions: []core.MatchSuggestion{{ItemID: 20, ItemName: "Chicken Breast Boneless", Score: 0.8}},
		},
		{
			VendorID: 1, Normalized: "house red blend", LineIDs: []int{4},
			Suggestions: []core.MatchSuggestion{{ItemID: 30, ItemName: "House Red", Score: 0.4}},
		},
		{
			VendorID: 1, Normalized: "mystery product", LineIDs: []int{5},
		},
	}

	plans := core.SelectEligible(groups, 0.8)
	if len(plans) != 2 {
		t.Fatalf("expected 2 eligible plans at 0.8, got %d", len(plans))
	}
	if plans[0].ItemID != 10 || plans[1].ItemID != 20 {
		t.Errorf("plan items = [%d %d], want [10 20]", plans[0].ItemID, plans[1].ItemID)
	}
	if len(plans[0].LineIDs) != 2 {
		t.Errorf("plan 0 line ids = %v, want the group's two lines", plans[0].LineIDs)
	}

	// The plan owns its line-ID slice; mutating it must not reach the group.
	plans[0].LineIDs[0] = 999
	if groups[0].LineIDs[0] != 1 {
		t.Error("plan shares line-ID backing array with group")
	}

	if got := core.SelectEligible(groups, 1.1); got != nil {
		t.Errorf("threshold above max: expected no plans, got %d", len(got))
	}
}

func TestNormalizeVendorName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Sysco Foods, Inc.", "sysco foods"},
		{"SYSCO FOODS", "sysco foods"},
		{"US Foods LLC", "us foods"},
		{"Baldor Specialty Foods Co.", "baldor specialty foods"},
		{"ABC Corp Ltd", "abc"},
		{"Company", "company"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := core.NormalizeVendorName(tc.name); got != tc.want {
			t.Errorf("NormalizeVendorName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
