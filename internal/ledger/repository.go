package ledger

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// RunInTx commits when fn returns nil and rolls back otherwise. Transient
	// conflicts come back as apperr.ErrLedgerConflict.
	RunInTx(ctx context.Context, fn func(tx TxRepository) error) error

	// Reads, outside any transaction
	GetEntry(ctx context.Context, cardID string, category model.Category, periodStart time.Time) (*model.BenefitEntry, error)
	ListEntries(ctx context.Context, cardID string, asOf time.Time) ([]model.BenefitEntry, error)
	ListPurchases(ctx context.Context, filters *dto.PurchaseFilters) ([]model.PurchaseRecord, int, error)
}

// TxRepository is the write side, only reachable inside RunInTx.
type TxRepository interface {
	GetPurchaseByReference(ctx context.Context, referenceID string) (*model.PurchaseRecord, error)
	InsertPurchase(ctx context.Context, p *model.PurchaseRecord) error
	// LockEntries takes row locks in category order so concurrent purchases
	// touching the same rows cannot deadlock each other.
	LockEntries(ctx context.Context, cardID string, categories []model.Category, periodStart time.Time) ([]model.BenefitEntry, error)
	InsertLineItem(ctx context.Context, item *model.PurchaseLineItem) error
	UpdateRemaining(ctx context.Context, entryID string, remaining decimal.Decimal, updatedAt time.Time) error
}
