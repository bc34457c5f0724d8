package dto

import "github.com/fekuna/omnipos-benefits-service/internal/model"

type ScanInput struct {
	Code string         `json:"code"`
	Kind model.CodeKind `json:"kind"` // inferred from the code when empty
	// UsedThisPeriodOz lets the caller apply monthly ceilings. The scan itself
	// never reads the ledger.
	UsedThisPeriodOz *float64 `json:"used_this_period_oz"`
}
