package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/enum"
	"github.com/tokoledger/api/internal/pricing"
	"github.com/tokoledger/api/internal/returns"
	"go.uber.org/zap"
)

var (
	ErrInvalidReturnType = errors.New("invalid return_type")
	ErrNotReturnable     = errors.New("only finalized sales can be returned against")
)

// ReturnStore defines the DB methods needed by the return service.
// Satisfied by *database.Queries.
type ReturnStore interface {
	stockStore
	GetTransaction(ctx context.Context, arg database.GetTransactionParams) (database.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, arg database.GetTransactionForUpdateParams) (database.Transaction, error)
	ListReturnableItems(ctx context.Context, transactionID uuid.UUID) ([]database.ListReturnableItemsRow, error)
	CreateReturnRecord(ctx context.Context, arg database.CreateReturnRecordParams) (database.ReturnRecord, error)
	CreateReturnItem(ctx context.Context, arg database.CreateReturnItemParams) (database.ReturnItem, error)
	RefreshTotalReturnedAmount(ctx context.Context, id uuid.UUID) (database.Transaction, error)
	ListReturnRecordsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]database.ReturnRecord, error)
	ListReturnItemsByReturn(ctx context.Context, returnID uuid.UUID) ([]database.ReturnItem, error)
}

// NewReturnStore creates a ReturnStore from a DBTX (pool or tx).
type NewReturnStore func(db database.DBTX) ReturnStore

// CreateReturnRequest is the validated input for a return against a sale.
type CreateReturnRequest struct {
	ShopID        uuid.UUID
	TransactionID uuid.UUID
	Actor         Actor
	ReturnType    string
	Note          string
	Items         []returns.Request
}

// ReturnResult is a stored return record and the original's new state.
type ReturnResult struct {
	Record      database.ReturnRecord
	Items       []database.ReturnItem
	Transaction database.Transaction
	Summary     returns.Summary
	// Returnable is the headroom per original line after this return.
	Returnable []returns.OriginalLine
}

// ReturnRecordResult is a stored return record with its lines.
type ReturnRecordResult struct {
	Record database.ReturnRecord
	Items  []database.ReturnItem
}

// ReturnService records post-sale returns.
type ReturnService struct {
	pool     TxBeginner
	store    ReturnStore
	newStore NewReturnStore
	notifier Notifier
	logger   *zap.Logger
}

// NewReturnService creates a new ReturnService. notifier may be nil.
func NewReturnService(pool TxBeginner, store ReturnStore, newStore NewReturnStore, notifier Notifier, logger *zap.Logger) *ReturnService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnService{pool: pool, store: store, newStore: newStore, notifier: notifier, logger: logger}
}

// Create validates the request against the original's returnable headroom
// and stores the return record. The original's sold quantities are never
// rewritten; its total_returned_amount is recomputed from all its returns.
func (s *ReturnService) Create(ctx context.Context, req CreateReturnRequest) (*ReturnResult, error) {
	returnType := req.ReturnType
	if returnType == "" {
		returnType = enum.ReturnTypeRefund
	}
	if returnType != enum.ReturnTypeRefund && returnType != enum.ReturnTypeExchange {
		return nil, ErrInvalidReturnType
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Lock the original so concurrent returns see each other's quantities.
	orig, err := store.GetTransactionForUpdate(ctx, database.GetTransactionForUpdateParams{
		ID:     req.TransactionID,
		ShopID: req.ShopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if !isFinal(orig.Status) {
		return nil, ErrNotReturnable
	}

	rows, err := store.ListReturnableItems(ctx, orig.ID)
	if err != nil {
		return nil, fmt.Errorf("list returnable items: %w", err)
	}
	lines := toOriginalLines(rows)

	rec, err := returns.Reconcile(lines, req.Items)
	if err != nil {
		return nil, err
	}

	record, err := store.CreateReturnRecord(ctx, database.CreateReturnRecordParams{
		ShopID:        req.ShopID,
		TransactionID: orig.ID,
		InvoiceNumber: orig.InvoiceNumber,
		ReturnType:    returnType,
		Total:         database.DecimalToNumeric(rec.Total),
		Note:          optionalText(req.Note),
		CreatedBy:     req.Actor.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create return record: %w", err)
	}

	var items []database.ReturnItem
	for _, it := range rec.Items {
		ri, err := store.CreateReturnItem(ctx, database.CreateReturnItemParams{
			ReturnID:          record.ID,
			TransactionItemID: it.Line.LineID,
			Quantity:          it.Quantity,
			UnitPrice:         database.DecimalToNumeric(it.Line.UnitPrice),
			Amount:            database.DecimalToNumeric(it.Amount),
		})
		if err != nil {
			return nil, fmt.Errorf("create return item: %w", err)
		}
		items = append(items, ri)

		key := pricing.Key{ProductID: it.Line.ProductID, VariationID: it.Line.VariationID}
		if err := adjustStock(ctx, store, key, it.Quantity); err != nil {
			return nil, err
		}
	}

	updated, err := store.RefreshTotalReturnedAmount(ctx, orig.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh total returned amount: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if err := s.notifier.Publish(req.ShopID, EventReturnCreated, ReturnEvent{
		ID:            record.ID.String(),
		TransactionID: orig.ID.String(),
		InvoiceNumber: orig.InvoiceNumber,
		Total:         rec.Total.StringFixed(2),
	}); err != nil {
		s.logger.Warn("publish event", zap.String("type", EventReturnCreated), zap.Error(err))
	}

	return &ReturnResult{
		Record:      record,
		Items:       items,
		Transaction: updated,
		Summary:     returnsSummary(updated, database.NumericToDecimal(updated.GrandTotal)),
		Returnable:  returns.Apply(lines, rec),
	}, nil
}

// Returnable lists the original's sold lines with their remaining headroom.
func (s *ReturnService) Returnable(ctx context.Context, shopID, transactionID uuid.UUID) ([]returns.OriginalLine, error) {
	if _, err := s.getTransaction(ctx, shopID, transactionID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListReturnableItems(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list returnable items: %w", err)
	}
	return toOriginalLines(rows), nil
}

// List returns the return records of a transaction, oldest first.
func (s *ReturnService) List(ctx context.Context, shopID, transactionID uuid.UUID) ([]ReturnRecordResult, error) {
	if _, err := s.getTransaction(ctx, shopID, transactionID); err != nil {
		return nil, err
	}
	records, err := s.store.ListReturnRecordsByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list return records: %w", err)
	}
	out := make([]ReturnRecordResult, 0, len(records))
	for _, r := range records {
		items, err := s.store.ListReturnItemsByReturn(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("list return items: %w", err)
		}
		out = append(out, ReturnRecordResult{Record: r, Items: items})
	}
	return out, nil
}

func (s *ReturnService) getTransaction(ctx context.Context, shopID, id uuid.UUID) (database.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, database.GetTransactionParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Transaction{}, ErrTransactionNotFound
		}
		return database.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func toOriginalLines(rows []database.ListReturnableItemsRow) []returns.OriginalLine {
	lines := make([]returns.OriginalLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, returns.OriginalLine{
			LineID:      r.ID,
			ProductID:   r.ProductID,
			VariationID: fromPgUUID(r.VariationID),
			Name:        r.Name,
			SoldQty:     r.Quantity,
			ReturnedQty: r.ReturnedQty,
			UnitPrice:   database.NumericToDecimal(r.UnitPrice),
		})
	}
	return lines
}
