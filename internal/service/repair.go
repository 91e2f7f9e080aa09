package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tokoledger/api/internal/database"
	"github.com/tokoledger/api/internal/enum"
	"github.com/tokoledger/api/internal/payment"
	"github.com/tokoledger/api/internal/pricing"
	"go.uber.org/zap"
)

var (
	ErrRepairNotFound          = errors.New("repair not found")
	ErrRepairReferenceRequired = errors.New("reference is required")
)

// RepairStore defines the DB methods needed by the repair service.
// Satisfied by *database.Queries.
type RepairStore interface {
	ledgerStore
	CreateRepair(ctx context.Context, arg database.CreateRepairParams) (database.Repair, error)
	GetRepair(ctx context.Context, arg database.GetRepairParams) (database.Repair, error)
	TouchRepairForUpdate(ctx context.Context, arg database.TouchRepairForUpdateParams) (database.Repair, error)
	ListRepairParts(ctx context.Context, repairID uuid.UUID) ([]database.RepairPart, error)
	DeleteRepairParts(ctx context.Context, repairID uuid.UUID) error
	CreateRepairPart(ctx context.Context, arg database.CreateRepairPartParams) (database.RepairPart, error)
	GetTransactionByRepair(ctx context.Context, repairID uuid.UUID) (database.Transaction, error)
}

// NewRepairStore creates a RepairStore from a DBTX (pool or tx).
type NewRepairStore func(db database.DBTX) RepairStore

// CreateRepairRequest is the input for registering a repair job.
type CreateRepairRequest struct {
	ShopID       uuid.UUID
	Actor        Actor
	Reference    string
	CustomerName string
	Device       string
}

// PartInput is one part used on a repair.
type PartInput struct {
	ProductID   uuid.UUID
	VariationID uuid.NullUUID
	Quantity    int32
}

// SyncPartsRequest replaces a repair's parts list.
type SyncPartsRequest struct {
	ShopID   uuid.UUID
	RepairID uuid.UUID
	Actor    Actor
	Parts    []PartInput
}

// RepairResult is a repair with its parts and companion sale, if any.
type RepairResult struct {
	Repair    database.Repair
	Parts     []database.RepairPart
	Companion *TransactionResult
}

// RepairService keeps a repair's companion sale in step with its parts.
type RepairService struct {
	pool          TxBeginner
	store         RepairStore
	newStore      NewRepairStore
	paymentMethod string
	notifier      Notifier
	logger        *zap.Logger
}

// NewRepairService creates a new RepairService. Companion sales are settled
// in full with paymentMethod. notifier may be nil.
func NewRepairService(pool TxBeginner, store RepairStore, newStore NewRepairStore, paymentMethod string, notifier Notifier, logger *zap.Logger) *RepairService {
	if paymentMethod == "" {
		paymentMethod = enum.PaymentMethodCash
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairService{
		pool:          pool,
		store:         store,
		newStore:      newStore,
		paymentMethod: paymentMethod,
		notifier:      notifier,
		logger:        logger,
	}
}

// Create registers a repair job with no parts.
func (s *RepairService) Create(ctx context.Context, req CreateRepairRequest) (database.Repair, error) {
	if req.Reference == "" {
		return database.Repair{}, ErrRepairReferenceRequired
	}
	r, err := s.store.CreateRepair(ctx, database.CreateRepairParams{
		ShopID:       req.ShopID,
		Reference:    req.Reference,
		CustomerName: req.CustomerName,
		Device:       req.Device,
		CreatedBy:    req.Actor.UserID,
	})
	if err != nil {
		return database.Repair{}, fmt.Errorf("create repair: %w", err)
	}
	return r, nil
}

// Get loads a repair with its parts and recomputed companion sale.
func (s *RepairService) Get(ctx context.Context, shopID, id uuid.UUID) (*RepairResult, error) {
	r, err := s.store.GetRepair(ctx, database.GetRepairParams{ID: id, ShopID: shopID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRepairNotFound
		}
		return nil, fmt.Errorf("get repair: %w", err)
	}
	parts, err := s.store.ListRepairParts(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("list repair parts: %w", err)
	}

	result := &RepairResult{Repair: r, Parts: parts}
	companion, err := s.store.GetTransactionByRepair(ctx, r.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return result, nil
		}
		return nil, fmt.Errorf("get companion: %w", err)
	}
	items, err := s.store.ListTransactionItems(ctx, companion.ID)
	if err != nil {
		return nil, fmt.Errorf("list companion items: %w", err)
	}
	payments, err := s.store.ListTransactionPayments(ctx, companion.ID)
	if err != nil {
		return nil, fmt.Errorf("list companion payments: %w", err)
	}
	result.Companion, err = recompute(companion, items, payments)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SyncParts replaces the repair's parts and, in the same database
// transaction, brings the companion sale in line with them:
//
//   - no parts: the companion is deleted
//   - parts and a companion: the companion is recomputed in place
//   - parts and no companion: a companion SALE is created
//
// The companion is found through transactions.repair_id.
func (s *RepairService) SyncParts(ctx context.Context, req SyncPartsRequest) (*RepairResult, error) {
	for i, p := range req.Parts {
		if p.Quantity <= 0 {
			return nil, fmt.Errorf("parts[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxInvoiceNumberRetries; attempt++ {
		result, deleted, err := s.syncPartsTx(ctx, req)
		if err == nil {
			s.publishSync(req.ShopID, result, deleted)
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

func (s *RepairService) syncPartsTx(ctx context.Context, req SyncPartsRequest) (*RepairResult, *database.Transaction, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	repair, err := store.TouchRepairForUpdate(ctx, database.TouchRepairForUpdateParams{
		ID:     req.RepairID,
		ShopID: req.ShopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrRepairNotFound
		}
		return nil, nil, fmt.Errorf("lock repair: %w", err)
	}

	if err := store.DeleteRepairParts(ctx, repair.ID); err != nil {
		return nil, nil, fmt.Errorf("delete repair parts: %w", err)
	}
	parts := make([]database.RepairPart, 0, len(req.Parts))
	for i, p := range req.Parts {
		part, err := store.CreateRepairPart(ctx, database.CreateRepairPartParams{
			RepairID:    repair.ID,
			ProductID:   p.ProductID,
			VariationID: toPgUUID(p.VariationID),
			Quantity:    p.Quantity,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("parts[%d]: create repair part: %w", i, err)
		}
		parts = append(parts, part)
	}

	companion, found, err := s.companionOf(ctx, store, repair.ID)
	if err != nil {
		return nil, nil, err
	}
	var before []pricing.LineItem
	if found {
		n, err := store.CountReturnsByTransaction(ctx, companion.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("count returns: %w", err)
		}
		if n > 0 {
			return nil, nil, fmt.Errorf("companion %s: %w", companion.InvoiceNumber, ErrHasReturns)
		}
		oldItems, err := store.ListTransactionItems(ctx, companion.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("list companion items: %w", err)
		}
		before = toLineItems(oldItems)
	}

	result := &RepairResult{Repair: repair, Parts: parts}

	if len(parts) == 0 {
		if !found {
			if err := tx.Commit(ctx); err != nil {
				return nil, nil, fmt.Errorf("commit tx: %w", err)
			}
			return result, nil, nil
		}
		if err := moveStock(ctx, store, before, nil); err != nil {
			return nil, nil, err
		}
		if err := store.DeleteTransaction(ctx, companion.ID); err != nil {
			return nil, nil, fmt.Errorf("delete companion: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, fmt.Errorf("commit tx: %w", err)
		}
		return result, &companion, nil
	}

	items := make([]ItemInput, 0, len(parts))
	for _, p := range req.Parts {
		items = append(items, ItemInput{
			ProductID:   p.ProductID,
			VariationID: p.VariationID,
			Quantity:    p.Quantity,
			Role:        enum.LineRoleSale,
		})
	}
	lines, err := resolveLines(ctx, store, req.ShopID, items, stockTaken(before))
	if err != nil {
		return nil, nil, err
	}

	shop, err := store.GetShop(ctx, req.ShopID)
	if err != nil {
		return nil, nil, fmt.Errorf("get shop: %w", err)
	}
	in := pricing.Input{Items: lines, Rates: shopRates(shop)}
	totals, err := pricing.ComputeTotals(in)
	if err != nil {
		return nil, nil, err
	}
	e, err := priceEntry(enum.TransactionStatusSale, lines, in, payment.Full(s.paymentMethod, totals.GrandTotal))
	if err != nil {
		return nil, nil, err
	}

	var txn database.Transaction
	if found {
		if err := clearLines(ctx, store, companion.ID); err != nil {
			return nil, nil, err
		}
		params := e.updateParams(companion.ID, Actor{UserID: companion.SalesmanID, Name: companion.SalesmanName})
		params.CustomerName = companion.CustomerName
		params.Note = companion.Note
		txn, err = store.UpdateTransaction(ctx, params)
		if err != nil {
			return nil, nil, fmt.Errorf("update companion: %w", err)
		}
	} else {
		seq, err := store.GetNextInvoiceNumber(ctx, req.ShopID)
		if err != nil {
			return nil, nil, fmt.Errorf("get next invoice number: %w", err)
		}
		params := e.createParams(req.ShopID, seq, req.Actor)
		params.RepairID = toPgUUID(uuid.NullUUID{UUID: repair.ID, Valid: true})
		params.CustomerName = optionalText(repair.CustomerName)
		params.Note = optionalText("Repair " + repair.Reference)
		txn, err = store.CreateTransaction(ctx, params)
		if err != nil {
			return nil, nil, fmt.Errorf("create companion: %w", err)
		}
	}

	txnItems, payments, err := e.writeLines(ctx, store, txn.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := moveStock(ctx, store, before, lines); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	result.Companion = e.result(txn, txnItems, payments)
	return result, nil, nil
}

func (s *RepairService) companionOf(ctx context.Context, store RepairStore, repairID uuid.UUID) (database.Transaction, bool, error) {
	t, err := store.GetTransactionByRepair(ctx, repairID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Transaction{}, false, nil
		}
		return database.Transaction{}, false, fmt.Errorf("get companion: %w", err)
	}
	return t, true, nil
}

func (s *RepairService) publishSync(shopID uuid.UUID, result *RepairResult, deleted *database.Transaction) {
	var eventType string
	var payload TransactionEvent
	switch {
	case deleted != nil:
		eventType = EventCompanionDeleted
		payload = transactionEvent(*deleted)
	case result.Companion != nil:
		eventType = EventCompanionSynced
		payload = transactionEvent(result.Companion.Transaction)
	default:
		return
	}
	if err := s.notifier.Publish(shopID, eventType, payload); err != nil {
		s.logger.Warn("publish event", zap.String("type", eventType), zap.Error(err))
	}
}
