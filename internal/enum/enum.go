package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	TransactionStatusDraft    = "DRAFT"
	TransactionStatusHold     = "HOLD"
	TransactionStatusSale     = "SALE"
	TransactionStatusExchange = "EXCHANGE"
)

const (
	ReturnTypeRefund   = "REFUND"
	ReturnTypeExchange = "EXCHANGE"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner    = "OWNER"
	UserRoleManager  = "MANAGER"
	UserRoleSalesman = "SALESMAN"
)

const (
	LineRoleSale   = "SALE"
	LineRoleReturn = "RETURN"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash   = "CASH"
	PaymentMethodCard   = "CARD"
	PaymentMethodMobile = "MOBILE_BANKING"
	PaymentMethodBank   = "BANK_TRANSFER"
	PaymentMethodCheque = "CHEQUE"

	// PaymentTypeMixed is recorded on a transaction settled by a split payment.
	PaymentTypeMixed = "MIXED"
)

const (
	ItemDiscountPercentage = "PERCENTAGE"
	ItemDiscountFlat       = "FLAT"
)

const (
	BillDiscountCash       = "CASH"
	BillDiscountPercentage = "PERCENTAGE"
)
