package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	entryColumns    = `id, card_id, category, period_start, period_end, allotment, remaining, unit, updated_at`
	purchaseColumns = `id, card_id, store_id, reference_id, period_start, period_end, created_at`
	lineColumns     = `id, purchase_id, line_no, category, quantity, unit, product_name, product_code, ledger_applied`
)

// Postgres error codes that mean "try again".
var conflictCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"23505": true, // unique_violation, a concurrent insert of the same reference
}

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) RunInTx(ctx context.Context, fn func(tx ledger.TxRepository) error) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return translate(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(&txRepository{tx: tx}); err != nil {
		return translate(err)
	}

	if err := tx.Commit(); err != nil {
		return translate(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *PGRepository) GetEntry(ctx context.Context, cardID string, category model.Category, periodStart time.Time) (*model.BenefitEntry, error) {
	var entry model.BenefitEntry
	query := `SELECT ` + entryColumns + ` FROM benefit_entries
		WHERE card_id = $1 AND category = $2 AND period_start = $3`

	err := r.DB.GetContext(ctx, &entry, query, cardID, string(category), periodStart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListEntries returns the entries whose period contains asOf. Expired periods
// stay in the table and are filtered here.
func (r *PGRepository) ListEntries(ctx context.Context, cardID string, asOf time.Time) ([]model.BenefitEntry, error) {
	entries := []model.BenefitEntry{}
	query := `SELECT ` + entryColumns + ` FROM benefit_entries
		WHERE card_id = $1 AND period_start <= $2 AND period_end > $2
		ORDER BY category ASC`

	if err := r.DB.SelectContext(ctx, &entries, query, cardID, asOf); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *PGRepository) ListPurchases(ctx context.Context, f *dto.PurchaseFilters) ([]model.PurchaseRecord, int, error) {
	conditions := []string{"card_id = :card_id"}
	args := map[string]interface{}{"card_id": f.CardID}

	if f.From != nil {
		conditions = append(conditions, "created_at >= :from")
		args["from"] = *f.From
	}
	if f.To != nil {
		conditions = append(conditions, "created_at < :to")
		args["to"] = *f.To
	}
	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM purchases"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	var count int
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + purchaseColumns + " FROM purchases" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}
	listQuery, listArgs, err := sqlx.Named(query, args)
	if err != nil {
		return nil, 0, err
	}

	purchases := []model.PurchaseRecord{}
	if err := r.DB.SelectContext(ctx, &purchases, r.DB.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, err
	}
	if len(purchases) == 0 {
		return purchases, count, nil
	}

	if err := r.attachLines(ctx, purchases); err != nil {
		return nil, 0, err
	}
	return purchases, count, nil
}

func (r *PGRepository) attachLines(ctx context.Context, purchases []model.PurchaseRecord) error {
	ids := make([]string, len(purchases))
	for i := range purchases {
		ids[i] = purchases[i].ID
	}

	query, args, err := sqlx.In(`SELECT `+lineColumns+` FROM purchase_line_items
		WHERE purchase_id IN (?) ORDER BY purchase_id, line_no`, ids)
	if err != nil {
		return err
	}

	var lines []model.PurchaseLineItem
	if err := r.DB.SelectContext(ctx, &lines, r.DB.Rebind(query), args...); err != nil {
		return fmt.Errorf("load line items: %w", err)
	}

	byPurchase := make(map[string][]model.PurchaseLineItem, len(purchases))
	for _, l := range lines {
		byPurchase[l.PurchaseID] = append(byPurchase[l.PurchaseID], l)
	}
	for i := range purchases {
		purchases[i].Lines = byPurchase[purchases[i].ID]
	}
	return nil
}

type txRepository struct {
	tx *sqlx.Tx
}

func (t *txRepository) GetPurchaseByReference(ctx context.Context, referenceID string) (*model.PurchaseRecord, error) {
	var p model.PurchaseRecord
	err := t.tx.GetContext(ctx, &p, `SELECT `+purchaseColumns+` FROM purchases WHERE reference_id = $1`, referenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := t.tx.SelectContext(ctx, &p.Lines,
		`SELECT `+lineColumns+` FROM purchase_line_items WHERE purchase_id = $1 ORDER BY line_no`, p.ID); err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	return &p, nil
}

func (t *txRepository) InsertPurchase(ctx context.Context, p *model.PurchaseRecord) error {
	query := `
        INSERT INTO purchases (id, card_id, store_id, reference_id, period_start, period_end, created_at)
        VALUES (:id, :card_id, :store_id, :reference_id, :period_start, :period_end, :created_at)
    `
	if _, err := t.tx.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	return nil
}

func (t *txRepository) LockEntries(ctx context.Context, cardID string, categories []model.Category, periodStart time.Time) ([]model.BenefitEntry, error) {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}

	entries := []model.BenefitEntry{}
	query := `SELECT ` + entryColumns + ` FROM benefit_entries
		WHERE card_id = $1 AND period_start = $2 AND category = ANY($3)
		ORDER BY category ASC
		FOR UPDATE`

	if err := t.tx.SelectContext(ctx, &entries, query, cardID, periodStart, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("failed to lock benefit entries: %w", err)
	}
	return entries, nil
}

func (t *txRepository) InsertLineItem(ctx context.Context, item *model.PurchaseLineItem) error {
	query := `
        INSERT INTO purchase_line_items (
            id, purchase_id, line_no, category, quantity, unit,
            product_name, product_code, ledger_applied
        )
        VALUES (
            :id, :purchase_id, :line_no, :category, :quantity, :unit,
            :product_name, :product_code, :ledger_applied
        )
    `
	if _, err := t.tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("failed to insert line item %d: %w", item.LineNo, err)
	}
	return nil
}

func (t *txRepository) UpdateRemaining(ctx context.Context, entryID string, remaining decimal.Decimal, updatedAt time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE benefit_entries SET remaining = $1, updated_at = $2 WHERE id = $3`,
		remaining, updatedAt, entryID)
	if err != nil {
		return fmt.Errorf("failed to update benefit entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("benefit entry %s: %w", entryID, apperr.ErrNotFound)
	}
	return nil
}

// translate maps transient Postgres failures onto apperr.ErrLedgerConflict,
// keeping the original error in the chain.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && conflictCodes[pqErr.Code] {
		return fmt.Errorf("%w: %w", apperr.ErrLedgerConflict, err)
	}
	return err
}
