package core_test

import (
	"testing"

	"item-resolver/internal/core"

	"github.com/shopspring/decimal"
)

func TestParsePackSize_PatternFamilies(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantType  core.PackType
		wantCount int
		wantSize  string
		wantUOM   string
	}{
		{
			name:      "compact count slash size",
			raw:       "GREY GOOSE VODKA 12/750ML",
			wantType:  core.PackCase,
			wantCount: 12,
			wantSize:  "750",
			wantUOM:   "mL",
		},
		{
			name:      "case token with separate size",
			raw:       "CS/12 GREY GOOSE 750ML",
			wantType:  core.PackCase,
			wantCount: 12,
			wantSize:  "750",
			wantUOM:   "mL",
		},
		{
			name:      "count before case token",
			raw:       "GREY GOOSE 750ML 12/CS",
			wantType:  core.PackCase,
			wantCount: 12,
			wantSize:  "750",
			wantUOM:   "mL",
		},
		{
			name:      "compact ounces",
			raw:       "MODELO ESPECIAL 24/12OZ",
			wantType:  core.PackCase,
			wantCount: 24,
			wantSize:  "12",
			wantUOM:   "oz",
		},
		{
			name:      "single liquid size infers bottle",
			raw:       "TITOS VODKA 1.75L",
			wantType:  core.PackBottle,
			wantCount: 1,
			wantSize:  "1.75",
			wantUOM:   "L",
		},
		{
			name:      "single mass size infers bag",
			raw:       "FLOUR AP 50LB",
			wantType:  core.PackBag,
			wantCount: 1,
			wantSize:  "50",
			wantUOM:   "lb",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := core.ParsePackSize(tc.raw)
			if got == nil {
				t.Fatalf("ParsePackSize(%q) = nil, want a parse", tc.raw)
			}
			if got.PackType != tc.wantType {
				t.Errorf("pack type = %q, want %q", got.PackType, tc.wantType)
			}
			if got.UnitsPerPack != tc.wantCount {
				t.Errorf("units per pack = %d, want %d", got.UnitsPerPack, tc.wantCount)
			}
			if !got.UnitSize.Equal(decimal.RequireFromString(tc.wantSize)) {
				t.Errorf("unit size = %s, want %s", got.UnitSize, tc.wantSize)
			}
			if got.UnitSizeUOM != tc.wantUOM {
				t.Errorf("uom = %q, want %q", got.UnitSizeUOM, tc.wantUOM)
			}
		})
	}
}

func TestParsePackSize_NoGuessing(t *testing.T) {
	// No pattern match means nil, never a best-effort default.
	for _, raw := range []string{"", "   ", "GREY GOOSE VODKA", "ASSORTED DRY GOODS", "12345"} {
		if got := core.ParsePackSize(raw); got != nil {
			t.Errorf("ParsePackSize(%q) = %+v, want nil", raw, got)
		}
	}
}

func TestNormalizeUOM(t *testing.T) {
	tests := []struct {
		tok  string
		want string
	}{
		{"ML", "mL"},
		{"ml", "mL"},
		{"Ltr", "L"},
		{"liters", "L"},
		{"LBS", "lb"},
		{"gr", "g"},
		{"FLOZ", "oz"},
		{"bogus", ""},
	}
	for _, tc := range tests {
		if got := core.NormalizeUOM(tc.tok); got != tc.want {
			t.Errorf("NormalizeUOM(%q) = %q, want %q", tc.tok, got, tc.want)
		}
	}
}

func TestPackSize_String(t *testing.T) {
	p := &core.PackSize{
		PackType:     core.PackCase,
		UnitsPerPack: 12,
		UnitSize:     decimal.RequireFromString("750"),
		UnitSizeUOM:  "mL",
	}
	if got, want := p.String(), "case of 12 x 750 mL"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	var nilPack *core.PackSize
	if got := nilPack.String(); got != "" {
		t.Errorf("nil String() = %q, want empty", got)
	}
}
