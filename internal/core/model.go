package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type PackType string

const (
	PackCase   PackType = "case"
	PackBottle PackType = "bottle"
	PackBag    PackType = "bag"
	PackBox    PackType = "box"
	PackEach   PackType = "each"
	PackKeg    PackType = "keg"
	PackPail   PackType = "pail"
	PackDrum   PackType = "drum"
)

// CanonicalItem is the authoritative inventory record invoice text resolves to.
// Owned by the catalog; this engine only reads it and tracks usage frequency.
type CanonicalItem struct {
	ID          int
	VenueID     int
	Name        string
	SKU         string
	Category    *string
	Subcategory *string
	BaseUOM     string
	IsActive    bool
	CreatedAt   time.Time
}

// PackSize is the structured quantity metadata extracted from raw line text.
type PackSize struct {
	PackType     PackType
	UnitsPerPack int
	UnitSize     decimal.Decimal
	UnitSizeUOM  string
}

// PackConfiguration persists a PackSize against an item, optionally scoped to
// a vendor + vendor item code. Superseded, never merged: a new parse for the
// same vendor+code deactivates the old row and inserts a fresh one.
type PackConfiguration struct {
	ID             int
	ItemID         int
	VendorID       *int
	VendorItemCode *string
	PackType       PackType
	UnitsPerPack   int
	UnitSize       decimal.Decimal
	UnitSizeUOM    string
	IsActive       bool
	CreatedAt      time.Time
}

type Vendor struct {
	ID        int
	VenueID   int
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// VendorItemAlias is a learned mapping from (vendor, vendor item code) to a
// canonical item. At most one active row exists per natural key.
type VendorItemAlias struct {
	ID                int
	VendorID          int
	VendorItemCode    string
	ItemID            int
	VendorDescription *string
	PackSizeText      *string
	ConfirmCount      int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// InvoiceLine is an OCR-ingested line awaiting resolution. VendorID and
// VendorName are populated by joining through the parent invoice.
type InvoiceLine struct {
	ID             int
	InvoiceID      int
	VendorID       int
	VendorName     string
	RawDescription string
	VendorItemCode *string
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	ItemID         *int
	CreatedAt      time.Time
}

// MatchSuggestion is a transient scored candidate; never persisted.
type MatchSuggestion struct {
	ItemID       int
	ItemName     string
	ItemSKU      string
	Score        float64
	MatchedOn    string // "name" or "sku"
	MatchReason  string // "exact", "substring", "tokens"
	ConfirmCount int
}

type ConfidenceBucket string

const (
	BucketLikely      ConfidenceBucket = "likely"
	BucketMaybe       ConfidenceBucket = "maybe"
	BucketProbableNew ConfidenceBucket = "probable-new"
	BucketDefiniteNew ConfidenceBucket = "definite-new"
)

// SuggestionGroup is the unit of human review: all unresolved lines sharing
// (vendor, normalized description). A reviewer's action applies to every
// member line.
type SuggestionGroup struct {
	VendorID       int
	VendorName     string
	Normalized     string
	RawDescription string // representative raw text, first line seen
	VendorItemCode *string
	LineIDs        []int
	PackSize       *PackSize
	Suggestions    []MatchSuggestion
	Bucket         ConfidenceBucket
}

// TopScore returns the score of the best-ranked suggestion, or 0.
func (g *SuggestionGroup) TopScore() float64 {
	if len(g.Suggestions) == 0 {
		return 0
	}
	return g.Suggestions[0].Score
}

// ConfirmInput carries one confirmed vendor-code→item mapping.
type ConfirmInput struct {
	VendorID       int
	VendorItemCode string
	ItemID         int
	Description    string
	PackSizeText   string
	UnitCost       *decimal.Decimal
	EffectiveDate  string // YYYY-MM-DD, defaults to today
	LineID         *int   // invoice line to map alongside the confirmation
}

// BulkMapPlan is one group's pending mapping, reported identically in
// dry-run and apply mode.
type BulkMapPlan struct {
	VendorID   int
	VendorName string
	Normalized string
	ItemID     int
	ItemName   string
	Score      float64
	LineIDs    []int
}

type BulkMapResult struct {
	GroupsConsidered int
	GroupsEligible   int
	Plans            []BulkMapPlan
	Updated          int
	Skipped          int
	Failed           int
}

// AliasHit is one unresolved line short-circuited by an existing alias.
type AliasHit struct {
	LineID         int
	VendorID       int
	VendorItemCode string
	ItemID         int
}

type AliasApplyResult struct {
	Processed int
	Matched   int
	Hits      []AliasHit
	Updated   int
	Skipped   int
	Failed    int
}

type DuplicateVendorGroup struct {
	NormalizedName string
	CanonicalID    int
	Vendors        []Vendor
}

type MergeReport struct {
	DuplicatesProcessed   int
	ReassignedPacks       int
	ReassignedInvoices    int
	ReassignedAliases     int
	ReassignedCostRecords int
	Deleted               int
	Skipped               int
	Warnings              []string
}

// MatchDecision is the structured verdict returned by the LLM match
// assistant. Advisory only: it never drives a mutation by itself.
type MatchDecision struct {
	CandidateSKU string  `json:"candidate_sku" jsonschema_description:"SKU of the chosen candidate item, or empty when is_new_item is true"`
	IsNewItem    bool    `json:"is_new_item" jsonschema_description:"True if none of the candidates plausibly match and a new catalog item is needed"`
	Confidence   float64 `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning    string  `json:"reasoning" jsonschema_description:"Short explanation for the verdict"`
}
