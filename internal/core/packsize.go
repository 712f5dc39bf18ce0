package core

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func mustCompileFold(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

// Pattern families, first match wins:
//  1. split-unit: a case-count token ("CS/12" or "12/CS") plus a separate
//     size+UOM token ("750ML") anywhere in the text
//  2. compact: "<int>/<number><uom>" in one token ("12/750ML")
//  3. single-size: a bare "<number><uom>" with no multiplier
var (
	reCaseCount = mustCompileFold(`\b(?:cs|case)\s*[/x-]?\s*(\d{1,4})\b|\b(\d{1,4})\s*/\s*(?:cs|case)\b`)
	reCompact   = mustCompileFold(`\b(\d{1,4})\s*/\s*(\d+(?:\.\d+)?)\s*(` + uomPattern + `)\b`)
	reSizeUnit  = mustCompileFold(`\b(\d+(?:\.\d+)?)\s*(` + uomPattern + `)\b`)
)

// Canonical casing and alias table for unit-of-measure tokens.
var uomAliases = map[string]string{
	"ml": "mL", "milliliter": "mL", "milliliters": "mL", "millilitre": "mL", "millilitres": "mL",
	"l": "L", "lt": "L", "ltr": "L", "liter": "L", "liters": "L", "litre": "L", "litres": "L",
	"oz": "oz", "floz": "oz",
	"gal": "gal", "gallon": "gal", "gallons": "gal",
	"qt": "qt", "pt": "pt",
	"lb": "lb", "lbs": "lb", "kg": "kg",
	"g": "g", "gr": "g",
}

var liquidUOM = map[string]bool{"mL": true, "L": true, "oz": true, "gal": true, "qt": true, "pt": true}
var massUOM = map[string]bool{"g": true, "kg": true, "lb": true}

// NormalizeUOM folds a raw unit token to its canonical spelling.
// Returns "" for unrecognized units.
func NormalizeUOM(tok string) string {
	t := strings.ToLower(tok)
	t = strings.ReplaceAll(t, ".", "")
	t = strings.ReplaceAll(t, " ", "")
	return uomAliases[t]
}

// String renders a pack size the way review surfaces display it,
// e.g. "case of 12 x 750 mL".
func (p *PackSize) String() string {
	if p == nil {
		return ""
	}
	return string(p.PackType) + " of " + strconv.Itoa(p.UnitsPerPack) + " x " + p.UnitSize.String() + " " + p.UnitSizeUOM
}

// ParsePackSize extracts structured pack metadata from raw invoice-line text.
// Returns nil when no pattern family matches or the numbers fail validation;
// nil means "needs manual entry", never a best-effort guess.
func ParsePackSize(raw string) *PackSize {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	// Family 1: case count + separate size token.
	if m := reCaseCount.FindStringSubmatch(raw); m != nil {
		countStr := m[1]
		if countStr == "" {
			countStr = m[2]
		}
		caseSpan := reCaseCount.FindStringIndex(raw)
		for _, sm := range reSizeUnit.FindAllStringSubmatchIndex(raw, -1) {
			// The size token must live outside the case-count token.
			if sm[0] >= caseSpan[0] && sm[1] <= caseSpan[1] {
				continue
			}
			size := raw[sm[2]:sm[3]]
			uom := raw[sm[4]:sm[5]]
			return buildPackSize(PackCase, countStr, size, uom, false)
		}
	}

	// Family 2: compact <int>/<number><uom>.
	if m := reCompact.FindStringSubmatch(raw); m != nil {
		return buildPackSize(PackCase, m[1], m[2], m[3], false)
	}

	// Family 3: bare <number><uom>, units_per_pack = 1, pack type from UOM class.
	if m := reSizeUnit.FindStringSubmatch(raw); m != nil {
		return buildPackSize("", "1", m[1], m[2], true)
	}

	return nil
}

func buildPackSize(packType PackType, countStr, sizeStr, uomTok string, inferType bool) *PackSize {
	uom := NormalizeUOM(uomTok)
	if uom == "" {
		return nil
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 1 {
		return nil
	}
	size, err := decimal.NewFromString(sizeStr)
	if err != nil || !size.IsPositive() {
		return nil
	}
	if inferType {
		switch {
		case liquidUOM[uom]:
			packType = PackBottle
		case massUOM[uom]:
			packType = PackBag
		default:
			packType = PackEach
		}
	}
	return &PackSize{
		PackType:     packType,
		UnitsPerPack: count,
		UnitSize:     size,
		UnitSizeUOM:  uom,
	}
}
