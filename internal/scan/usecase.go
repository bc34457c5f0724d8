package scan

import (
	"context"

	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/fekuna/omnipos-benefits-service/internal/scan/dto"
)

type UseCase interface {
	Scan(ctx context.Context, input *dto.ScanInput) (*model.ScanResult, error)
}
