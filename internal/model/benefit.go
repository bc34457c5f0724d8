package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period is a benefit period, half-open: [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MonthlyPeriod returns the calendar month (UTC) containing t.
func MonthlyPeriod(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// BenefitEntry is the remaining allotment of one card for one category in
// one period. Only the ledger's purchase path mutates Remaining.
type BenefitEntry struct {
	ID          string          `db:"id" json:"id"`
	CardID      string          `db:"card_id" json:"card_id"`
	Category    Category        `db:"category" json:"category"`
	PeriodStart time.Time       `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time       `db:"period_end" json:"period_end"`
	Allotment   decimal.Decimal `db:"allotment" json:"allotment"`
	Remaining   decimal.Decimal `db:"remaining" json:"remaining"`
	Unit        string          `db:"unit" json:"unit"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

func (e *BenefitEntry) Period() Period {
	return Period{Start: e.PeriodStart, End: e.PeriodEnd}
}

// PurchaseRecord is one checkout. Immutable once written.
type PurchaseRecord struct {
	ID          string             `db:"id" json:"id"`
	CardID      string             `db:"card_id" json:"card_id"`
	StoreID     *string            `db:"store_id" json:"store_id"`
	ReferenceID *string            `db:"reference_id" json:"reference_id"`
	PeriodStart time.Time          `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time          `db:"period_end" json:"period_end"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	Lines       []PurchaseLineItem `db:"-" json:"lines"`
	Changes     []BalanceChange    `db:"-" json:"balance_changes"`
}

type PurchaseLineItem struct {
	ID            string          `db:"id" json:"id"`
	PurchaseID    string          `db:"purchase_id" json:"purchase_id"`
	LineNo        int             `db:"line_no" json:"line_no"`
	Category      Category        `db:"category" json:"category"`
	Quantity      decimal.Decimal `db:"quantity" json:"quantity"`
	Unit          string          `db:"unit" json:"unit"`
	ProductName   string          `db:"product_name" json:"product_name"`
	ProductCode   *string         `db:"product_code" json:"product_code"`
	LedgerApplied bool            `db:"ledger_applied" json:"ledger_applied"` // false when no benefit entry matched
}

// BalanceChange is the before/after of one benefit entry touched by a purchase.
type BalanceChange struct {
	Category Category        `json:"category"`
	Unit     string          `json:"unit"`
	Before   decimal.Decimal `json:"before"`
	After    decimal.Decimal `json:"after"`
}

// PurchasePreview is the read-only "what would happen" view of a purchase.
type PurchasePreview struct {
	CardID           string          `json:"card_id"`
	Category         Category        `json:"category"`
	Unit             string          `json:"unit"`
	EntryFound       bool            `json:"entry_found"`
	CurrentRemaining decimal.Decimal `json:"current_remaining"`
	Quantity         decimal.Decimal `json:"quantity"`
	AfterPurchase    decimal.Decimal `json:"after_purchase"`
	CanAfford        bool            `json:"can_afford"`
	MaxQuantity      int64           `json:"max_quantity"`
}
