// Package nutrition enriches scanned codes with data from an external
// product database.
package nutrition

import (
	"context"

	"github.com/fekuna/omnipos-benefits-service/internal/model"
)

// Lookup resolves a code against an external source. Implementations return
// apperr.ErrNotFound when the source does not know the code and
// apperr.ErrProviderUnavailable for every transport level failure.
type Lookup interface {
	Lookup(ctx context.Context, code string, kind model.CodeKind) (*model.ExternalProductRecord, error)
}
