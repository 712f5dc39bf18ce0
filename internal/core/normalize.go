package core

import (
	"regexp"
	"strings"
)

// uomPattern matches the unit-of-measure spellings seen in vendor invoice
// text. Longest alternatives first so "ltr" wins over "lt" and "l".
const uomPattern = `milliliters?|millilitres?|liters?|litres?|gallons?|fl\.?\s?oz|floz|ml|ltr|lt|oz|gal|qt|pt|lbs|lb|kg|gr|g|l`

var (
	// Delimiter and punctuation characters OCR output carries; all become spaces.
	reDelims = regexp.MustCompile("[*\\-_/|\"'‘’“”`,;:()\\[\\]!?#]")

	// Proof, ABV, and age annotations: "80°", "90 proof", "12yr".
	reProof = regexp.MustCompile(`\b\d{1,3}(?:\.\d+)?\s*°|\b\d{1,3}(?:\.\d+)?\s*(?:proof|pf|abv)\b|\b\d{1,2}\s*(?:yrs?|years?|yo)\b`)

	// Size tokens ("750ml", "1.75 l") and pack counts in either order
	// ("24pk", "cs 12" after delimiter replacement of "CS/12").
	reSizeTok   = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*(?:` + uomPattern + `)\b`)
	reCountPack = regexp.MustCompile(`\b\d+\s*(?:pk|pack|cs|case|ct|count)\b|\b(?:pk|pack|cs|case)\s*\d+\b`)
	reUnitWord  = regexp.MustCompile(`\b(?:` + uomPattern + `|pk|pack|cs|case|ea|each|ct|count)\b`)
)

// categoryNoise carries no discriminating signal for matching: beverage
// category nouns, filler adjectives, nationality adjectives.
var categoryNoise = map[string]bool{
	"vodka": true, "gin": true, "rum": true, "tequila": true, "mezcal": true,
	"whiskey": true, "whisky": true, "bourbon": true, "scotch": true,
	"brandy": true, "cognac": true, "liqueur": true, "vermouth": true,
	"wine": true, "beer": true, "ale": true, "lager": true, "stout": true,
	"cider": true, "champagne": true, "prosecco": true,
	"spirit": true, "spirits": true, "liquor": true,
	"fresh": true, "frozen": true, "organic": true, "premium": true,
	"select": true, "imported": true, "domestic": true, "natural": true,
	"french": true, "italian": true, "mexican": true, "american": true,
	"irish": true, "scottish": true, "japanese": true, "spanish": true,
	"russian": true, "polish": true, "swedish": true, "dutch": true,
	"german": true, "canadian": true,
}

// ocrFixes expands known OCR truncations. Targets must not reappear in any
// earlier stripping stage or Normalize would stop being idempotent.
var ocrFixes = map[string]string{
	"chix": "chicken",
	"chkn": "chicken",
	"brst": "breast",
	"bnls": "boneless",
	"sknls": "skinless",
	"grnd": "ground",
	"chse": "cheese",
	"choc": "chocolate",
	"mozz": "mozzarella",
	"parm": "parmesan",
	"veg":  "vegetable",
	"lett": "lettuce",
	"onin": "onion",
	"tomat": "tomato",
}

// Normalize canonicalizes a raw invoice-line description for matching.
// Deterministic and idempotent: Normalize(Normalize(s)) == Normalize(s).
// Never returns empty output for non-empty input: if stripping would consume
// the whole string, the pre-strip collapsed form is returned instead.
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	s = reDelims.ReplaceAllString(s, " ")
	// Fallback captured before any token stripping, so even an input that is
	// nothing but a proof annotation or a size token survives.
	base := collapseSpaces(s)

	s = reProof.ReplaceAllString(s, " ")
	s = reSizeTok.ReplaceAllString(s, " ")
	s = reCountPack.ReplaceAllString(s, " ")
	s = reUnitWord.ReplaceAllString(s, " ")

	var kept []string
	for _, tok := range strings.Fields(s) {
		if categoryNoise[tok] {
			continue
		}
		if full, ok := ocrFixes[tok]; ok {
			tok = full
		}
		kept = append(kept, tok)
	}

	out := strings.Join(kept, " ")
	if out == "" {
		return base
	}
	return out
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
