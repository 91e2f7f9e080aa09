package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/enum"
	"github.com/tokoledger/api/internal/payment"
	"github.com/tokoledger/api/internal/pricing"
	"go.uber.org/zap"
)

// Errors returned by the transaction services.
var (
	ErrEmptyCart           = errors.New("cart has no sale items")
	ErrInvalidQuantity     = pricing.ErrInvalidQuantity
	ErrInvalidLineRole     = errors.New("invalid line role")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotEditable         = errors.New("transaction cannot be edited")
	ErrNotDiscardable      = errors.New("only draft or held transactions can be discarded")
	ErrForbiddenEdit       = errors.New("only owners and managers can edit a finalized transaction")
	ErrHasReturns          = errors.New("transaction has returns")
	ErrOriginNotFound      = errors.New("exchange origin not found")
	ErrOriginNotFinal      = errors.New("exchange origin is not a finalized sale")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrProductNotFound     = errors.New("product not found in shop")
	ErrShopNotFound        = errors.New("shop not found")
	ErrDuplicateSubmission = errors.New("duplicate submission")
)

// allowedTransitions maps a stored status to the statuses a resubmission
// may move it to.
var allowedTransitions = map[string][]string{
	enum.TransactionStatusDraft:    {enum.TransactionStatusDraft, enum.TransactionStatusHold, enum.TransactionStatusSale},
	enum.TransactionStatusHold:     {enum.TransactionStatusHold, enum.TransactionStatusDraft, enum.TransactionStatusSale},
	enum.TransactionStatusSale:     {enum.TransactionStatusSale},
	enum.TransactionStatusExchange: {enum.TransactionStatusExchange},
}

func validateTransition(current, next string) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
}

// TransactionStore defines the DB methods needed by the transaction service.
// Satisfied by *database.Queries.
type TransactionStore interface {
	ledgerStore
	GetTransaction(ctx context.Context, arg database.GetTransactionParams) (database.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, arg database.GetTransactionForUpdateParams) (database.Transaction, error)
	ListTransactions(ctx context.Context, arg database.ListTransactionsParams) ([]database.Transaction, error)
}

// NewTransactionStore creates a TransactionStore from a DBTX (pool or tx).
type NewTransactionStore func(db database.DBTX) TransactionStore

// SaveTransactionRequest is the validated input for creating or resubmitting
// a transaction.
type SaveTransactionRequest struct {
	ShopID         uuid.UUID
	Actor          Actor
	Status         string
	ExchangeOf     uuid.NullUUID
	CustomerName   string
	Note           string
	Items          []ItemInput
	BillDiscount   pricing.BillDiscount
	PointsDiscount decimal.Decimal
	Charges        pricing.Charges
	// Payment may be nil for DRAFT and HOLD.
	Payment        payment.Payment
	IdempotencyKey string
}

// ListTransactionsRequest filters the transaction list.
type ListTransactionsRequest struct {
	ShopID uuid.UUID
	Status string
	Limit  int32
	Offset int32
}

// TransactionService runs the transaction lifecycle.
type TransactionService struct {
	pool     TxBeginner
	store    TransactionStore
	newStore NewTransactionStore
	guard    SubmissionGuard
	notifier Notifier
	logger   *zap.Logger
}

// NewTransactionService creates a new TransactionService. guard and notifier
// may be nil.
func NewTransactionService(pool TxBeginner, store TransactionStore, newStore NewTransactionStore, guard SubmissionGuard, notifier Notifier, logger *zap.Logger) *TransactionService {
	if guard == nil {
		guard = nopGuard{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

// Create prices and stores a new DRAFT, HOLD or SALE transaction. A SALE
// against an origin sale is stored as EXCHANGE. A repeated idempotency key
// returns the transaction stored under it with Replayed set.
// Retries up to maxInvoiceNumberRetries times on invoice number conflicts.
func (s *TransactionService) Create(ctx context.Context, req SaveTransactionRequest) (*TransactionResult, error) {
	switch req.Status {
	case enum.TransactionStatusDraft, enum.TransactionStatusHold, enum.TransactionStatusSale:
	default:
		return nil, ErrInvalidStatus
	}
	if req.ExchangeOf.Valid && req.Status != enum.TransactionStatusSale {
		return nil, fmt.Errorf("%w: exchange must be checked out as %s", ErrInvalidStatus, enum.TransactionStatusSale)
	}

	if req.IdempotencyKey != "" {
		key := submissionKey(req.ShopID, req.IdempotencyKey)
		ok, err := s.guard.Claim(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("claim submission: %w", err)
		}
		if !ok {
			return s.replay(ctx, req.ShopID, key)
		}
		result, err := s.create(ctx, req)
		if err != nil {
			if rerr := s.guard.Release(ctx, key); rerr != nil {
				s.logger.Warn("release submission key", zap.String("key", key), zap.Error(rerr))
			}
			return nil, err
		}
		if err := s.guard.Complete(ctx, key, result.Transaction.ID.String()); err != nil {
			s.logger.Warn("complete submission key", zap.String("key", key), zap.Error(err))
		}
		return result, nil
	}
	return s.create(ctx, req)
}

// replay answers a resubmitted key with the transaction the first attempt
// stored. While that attempt is still running the key has no id yet and the
// retry is refused.
func (s *TransactionService) replay(ctx context.Context, shopID uuid.UUID, key string) (*TransactionResult, error) {
	ref, err := s.guard.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup submission: %w", err)
	}
	if ref == "" {
		return nil, ErrDuplicateSubmission
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable key value", ErrDuplicateSubmission)
	}
	result, err := s.Get(ctx, shopID, id)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			// held or draft record discarded since
			return nil, fmt.Errorf("%w: stored transaction is gone", ErrDuplicateSubmission)
		}
		return nil, err
	}
	result.Replayed = true
	return result, nil
}

func (s *TransactionService) create(ctx context.Context, req SaveTransactionRequest) (*TransactionResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxInvoiceNumberRetries; attempt++ {
		result, err := s.createTx(ctx, req)
		if err == nil {
			s.publishSaved(result.Transaction)
			return result, nil
		}
		if isInvoiceNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *TransactionService) createTx(ctx context.Context, req SaveTransactionRequest) (*TransactionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	shop, err := store.GetShop(ctx, req.ShopID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("get shop: %w", err)
	}

	status := req.Status
	if req.ExchangeOf.Valid {
		origin, err := store.GetTransaction(ctx, database.GetTransactionParams{
			ID:     req.ExchangeOf.UUID,
			ShopID: req.ShopID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOriginNotFound
			}
			return nil, fmt.Errorf("get exchange origin: %w", err)
		}
		if !isFinal(origin.Status) {
			return nil, ErrOriginNotFinal
		}
		status = enum.TransactionStatusExchange
	}

	lines, err := resolveLines(ctx, store, req.ShopID, req.Items, nil)
	if err != nil {
		return nil, err
	}
	if err := checkNotEmpty(status, lines); err != nil {
		return nil, err
	}

	e, err := priceEntry(status, lines, pricingInput(req, shop), req.Payment)
	if err != nil {
		return nil, err
	}

	seq, err := store.GetNextInvoiceNumber(ctx, req.ShopID)
	if err != nil {
		return nil, fmt.Errorf("get next invoice number: %w", err)
	}

	params := e.createParams(req.ShopID, seq, req.Actor)
	params.ExchangeOf = toPgUUID(req.ExchangeOf)
	params.CustomerName = optionalText(req.CustomerName)
	params.Note = optionalText(req.Note)

	txn, err := store.CreateTransaction(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	items, payments, err := e.writeLines(ctx, store, txn.ID)
	if err != nil {
		return nil, err
	}

	if isFinal(status) {
		if err := moveStock(ctx, store, nil, lines); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return e.result(txn, items, payments), nil
}

// Update resubmits an existing transaction from a fresh line set. Held and
// draft records may be edited or checked out by anyone in the shop; finalized
// records only by owners and managers and only while no returns exist.
func (s *TransactionService) Update(ctx context.Context, id uuid.UUID, req SaveTransactionRequest) (*TransactionResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	existing, err := store.GetTransactionForUpdate(ctx, database.GetTransactionForUpdateParams{
		ID:     id,
		ShopID: req.ShopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if existing.RepairID.Valid {
		return nil, fmt.Errorf("%w: generated by a repair", ErrNotEditable)
	}

	next := req.Status
	if existing.Status == enum.TransactionStatusExchange && next == enum.TransactionStatusSale {
		next = enum.TransactionStatusExchange
	}
	if err := validateTransition(existing.Status, next); err != nil {
		return nil, err
	}

	wasFinal := isFinal(existing.Status)
	salesman := req.Actor
	if wasFinal {
		if !canEditFinal(req.Actor.Role) {
			return nil, ErrForbiddenEdit
		}
		n, err := store.CountReturnsByTransaction(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("count returns: %w", err)
		}
		if n > 0 {
			return nil, ErrHasReturns
		}
		salesman = Actor{UserID: existing.SalesmanID, Name: existing.SalesmanName}
	}

	shop, err := store.GetShop(ctx, req.ShopID)
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}

	oldItems, err := store.ListTransactionItems(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("list transaction items: %w", err)
	}
	var before []pricing.LineItem
	if wasFinal {
		before = toLineItems(oldItems)
	}

	lines, err := resolveLines(ctx, store, req.ShopID, req.Items, stockTaken(before))
	if err != nil {
		return nil, err
	}
	if err := checkNotEmpty(next, lines); err != nil {
		return nil, err
	}

	e, err := priceEntry(next, lines, pricingInput(req, shop), req.Payment)
	if err != nil {
		return nil, err
	}

	if err := clearLines(ctx, store, existing.ID); err != nil {
		return nil, err
	}
	params := e.updateParams(existing.ID, salesman)
	params.CustomerName = optionalText(req.CustomerName)
	params.Note = optionalText(req.Note)
	txn, err := store.UpdateTransaction(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	items, payments, err := e.writeLines(ctx, store, txn.ID)
	if err != nil {
		return nil, err
	}

	var after []pricing.LineItem
	if isFinal(next) {
		after = lines
	}
	if err := moveStock(ctx, store, before, after); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.publishSaved(txn)
	return e.result(txn, items, payments), nil
}

// Discard deletes a DRAFT or HOLD transaction.
func (s *TransactionService) Discard(ctx context.Context, shopID, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	existing, err := store.GetTransactionForUpdate(ctx, database.GetTransactionForUpdateParams{
		ID:     id,
		ShopID: shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		return fmt.Errorf("get transaction: %w", err)
	}
	if isFinal(existing.Status) {
		return ErrNotDiscardable
	}
	if err := store.DeleteTransaction(ctx, existing.ID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.publish(shopID, EventTransactionDiscarded, TransactionEvent{
		ID:            existing.ID.String(),
		InvoiceNumber: existing.InvoiceNumber,
		Status:        existing.Status,
	})
	return nil
}

// Get loads a transaction and recomputes its totals from the stored lines.
func (s *TransactionService) Get(ctx context.Context, shopID, id uuid.UUID) (*TransactionResult, error) {
	txn, err := s.store.GetTransaction(ctx, database.GetTransactionParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	items, err := s.store.ListTransactionItems(ctx, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("list transaction items: %w", err)
	}
	payments, err := s.store.ListTransactionPayments(ctx, txn.ID)
	if err != nil {
		return nil, fmt.Errorf("list transaction payments: %w", err)
	}
	return recompute(txn, items, payments)
}

// List returns stored transactions, newest first.
func (s *TransactionService) List(ctx context.Context, req ListTransactionsRequest) ([]database.Transaction, error) {
	status := pgtype.Text{}
	if req.Status != "" {
		switch req.Status {
		case enum.TransactionStatusDraft, enum.TransactionStatusHold,
			enum.TransactionStatusSale, enum.TransactionStatusExchange:
		default:
			return nil, ErrInvalidStatus
		}
		status = pgtype.Text{String: req.Status, Valid: true}
	}
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	return s.store.ListTransactions(ctx, database.ListTransactionsParams{
		ShopID: req.ShopID,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *TransactionService) publishSaved(t database.Transaction) {
	s.publish(t.ShopID, EventTransactionSaved, transactionEvent(t))
}

func (s *TransactionService) publish(shopID uuid.UUID, eventType string, payload interface{}) {
	if err := s.notifier.Publish(shopID, eventType, payload); err != nil {
		s.logger.Warn("publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func pricingInput(req SaveTransactionRequest, shop database.Shop) pricing.Input {
	return pricing.Input{
		BillDiscount:   req.BillDiscount,
		PointsDiscount: req.PointsDiscount,
		Charges:        req.Charges,
		Rates:          shopRates(shop),
	}
}

func canEditFinal(role string) bool {
	return role == enum.UserRoleOwner || role == enum.UserRoleManager
}

func (e entry) result(t database.Transaction, items []database.TransactionItem, payments []database.TransactionPayment) *TransactionResult {
	return &TransactionResult{
		Transaction: t,
		Items:       items,
		Payments:    payments,
		Totals:      e.totals,
		Settlement:  e.settlement,
		Returns:     returnsSummary(t, e.totals.GrandTotal),
	}
}
