package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/tokoledger/api/internal/database"
)

// Event types published to a shop's listeners.
const (
	EventTransactionSaved     = "transaction.saved"
	EventTransactionDiscarded = "transaction.discarded"
	EventReturnCreated        = "return.created"
	EventCompanionSynced      = "companion.synced"
	EventCompanionDeleted     = "companion.deleted"
)

// Notifier fans events out to a shop's connected clients.
// Satisfied by *ws.Hub.
type Notifier interface {
	Publish(shopID uuid.UUID, eventType string, payload interface{}) error
}

// SubmissionGuard claims idempotency keys so a retried POS submission is not
// stored twice. Complete attaches the stored transaction id to a key and
// Lookup reads it back, empty while the first attempt is in flight.
// Satisfied by cache.RedisGuard and cache.NoopGuard.
type SubmissionGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key, id string) error
	Lookup(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key string) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(uuid.UUID, string, interface{}) error { return nil }

type nopGuard struct{}

func (nopGuard) Claim(context.Context, string) (bool, error)    { return true, nil }
func (nopGuard) Complete(context.Context, string, string) error { return nil }
func (nopGuard) Lookup(context.Context, string) (string, error) { return "", nil }
func (nopGuard) Release(context.Context, string) error          { return nil }

func submissionKey(shopID uuid.UUID, key string) string {
	return "submission:" + shopID.String() + ":" + key
}

// TransactionEvent is the payload of transaction events.
type TransactionEvent struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	Status        string `json:"status"`
	GrandTotal    string `json:"grand_total,omitempty"`
	RepairID      string `json:"repair_id,omitempty"`
}

func transactionEvent(t database.Transaction) TransactionEvent {
	ev := TransactionEvent{
		ID:            t.ID.String(),
		InvoiceNumber: t.InvoiceNumber,
		Status:        t.Status,
		GrandTotal:    database.NumericToDecimal(t.GrandTotal).StringFixed(2),
	}
	if t.RepairID.Valid {
		ev.RepairID = uuid.UUID(t.RepairID.Bytes).String()
	}
	return ev
}

// ReturnEvent is the payload of return.created.
type ReturnEvent struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	InvoiceNumber string `json:"invoice_number"`
	Total         string `json:"total"`
}
