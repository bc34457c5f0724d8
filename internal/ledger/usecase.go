package ledger

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
)

type UseCase interface {
	ApplyPurchase(ctx context.Context, input *dto.ApplyPurchaseInput) (*model.PurchaseRecord, error)
	PreviewPurchase(ctx context.Context, input *dto.PreviewInput) (*model.PurchasePreview, error)
	ListBalances(ctx context.Context, cardID string, asOf time.Time) ([]model.BenefitEntry, error)
	ListPurchases(ctx context.Context, filters *dto.PurchaseFilters) ([]model.PurchaseRecord, int, error)
}
