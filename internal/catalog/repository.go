package catalog

import (
	"context"

	"github.com/fekuna/omnipos-benefits-service/internal/model"
)

// Repository is the read side of the first-party approved-items registry.
// Entries are maintained by an admin process; nothing here writes them.
type Repository interface {
	// FindByCode returns nil, nil when the code is not in the registry.
	FindByCode(ctx context.Context, code string) (*model.CatalogEntry, error)
	// ListApprovedByCategory returns approved entries, largest package first.
	ListApprovedByCategory(ctx context.Context, category model.Category) ([]model.CatalogEntry, error)
}
