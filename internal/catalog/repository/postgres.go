package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/jmoiron/sqlx"
)

const entryColumns = `code, code_kind, name, brand, category, subcategory, size_oz, size_display, is_approved, notes`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByCode(ctx context.Context, code string) (*model.CatalogEntry, error) {
	var entry model.CatalogEntry
	query := `SELECT ` + entryColumns + ` FROM approved_items WHERE code = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &entry, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// categoryKey folds a stored category the same way model.ParseCategory does,
// so "Whole Grains" is found as whole_grains.
const categoryKey = `replace(lower(btrim(category)), ' ', '_')`

func (r *PGRepository) ListApprovedByCategory(ctx context.Context, category model.Category) ([]model.CatalogEntry, error) {
	var entries []model.CatalogEntry
	query := `
        SELECT ` + entryColumns + `
        FROM approved_items
        WHERE is_approved AND ` + categoryKey + ` = $1
        ORDER BY size_oz DESC NULLS LAST, name ASC, code ASC
    `
	if err := r.DB.SelectContext(ctx, &entries, query, string(category)); err != nil {
		return nil, err
	}
	return entries, nil
}
