package dto

import (
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/shopspring/decimal"
)

type LineInput struct {
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	ProductName string          `json:"product_name"`
	ProductCode string          `json:"product_code"`
}

type ApplyPurchaseInput struct {
	CardID      string       `json:"card_id"`
	StoreID     string       `json:"store_id"`
	ReferenceID string       `json:"reference_id"` // checkout id, makes the call idempotent
	Period      model.Period `json:"period"`       // zero value means the current calendar month
	Lines       []LineInput  `json:"lines"`
}

type PreviewInput struct {
	CardID   string          `json:"card_id"`
	Category string          `json:"category"`
	Period   model.Period    `json:"period"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitSize decimal.Decimal `json:"unit_size"` // zero means Quantity
}

type PurchaseFilters struct {
	CardID   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
