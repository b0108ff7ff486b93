package domain

import "errors"

// Kind groups errors by where they originate.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindLifecycle
	KindAccounting
	KindReference
	KindPayment
	KindReentrancy
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindLifecycle:
		return "lifecycle"
	case KindAccounting:
		return "accounting"
	case KindReference:
		return "reference"
	case KindPayment:
		return "payment"
	case KindReentrancy:
		return "reentrancy"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Code is a machine-readable error code.
type Code string

// Error is a typed failure surfaced from a marketplace operation. Sentinels
// are compared by identity, so wrap them with %w to add context.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain, or "UNKNOWN".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "UNKNOWN"
}

var (
	ErrNotAdmin           = newError(KindAuthorization, "NOT_ADMIN", "caller is not admin")
	ErrNotAdminOrOperator = newError(KindAuthorization, "NOT_ADMIN_OR_OPERATOR", "caller is neither admin nor operator")
	ErrNotBuyer           = newError(KindAuthorization, "NOT_BUYER", "caller is not the buyer of this order")
	ErrNotAuthority       = newError(KindAuthorization, "NOT_AUTHORITY", "caller is not the order authority")
	ErrNotSeller          = newError(KindAuthorization, "NOT_SELLER", "caller is not an approved seller")
	ErrNotListingOwner    = newError(KindAuthorization, "NOT_LISTING_OWNER", "caller is neither the listing seller nor admin")
	ErrReservedAccount    = newError(KindAuthorization, "RESERVED_ACCOUNT", "account is reserved for the marketplace")

	ErrNotActive           = newError(KindLifecycle, "NOT_ACTIVE", "inventory is not active")
	ErrNotFrozen           = newError(KindLifecycle, "NOT_FROZEN", "inventory is not frozen")
	ErrLedgerClosed        = newError(KindLifecycle, "LEDGER_CLOSED", "inventory is closed")
	ErrInvalidOrderState   = newError(KindLifecycle, "INVALID_ORDER_STATE", "order state does not allow this transition")
	ErrCancelWindowExpired = newError(KindLifecycle, "CANCEL_WINDOW_EXPIRED", "cancellation window has expired")
	ErrListingDelisted     = newError(KindLifecycle, "LISTING_DELISTED", "listing is delisted")
	ErrListingInactive     = newError(KindLifecycle, "LISTING_INACTIVE", "listing is not active")
	ErrNoAvailableStock    = newError(KindLifecycle, "NO_AVAILABLE_STOCK", "listing has no available stock")
	ErrUnchanged           = newError(KindLifecycle, "UNCHANGED", "value is unchanged")

	ErrQuantityZero                = newError(KindAccounting, "QUANTITY_ZERO", "quantity must be greater than zero")
	ErrAmountZero                  = newError(KindAccounting, "AMOUNT_ZERO", "amount must be greater than zero")
	ErrPriceZero                   = newError(KindAccounting, "PRICE_ZERO", "price must be greater than zero")
	ErrNotEnoughAvailable          = newError(KindAccounting, "NOT_ENOUGH_AVAILABLE", "not enough available quantity")
	ErrNotEnoughReserved           = newError(KindAccounting, "NOT_ENOUGH_RESERVED", "not enough reserved quantity")
	ErrQuantityBelowReserved       = newError(KindAccounting, "QUANTITY_BELOW_RESERVED", "quantity cannot drop below reserved")
	ErrItemHasReservations         = newError(KindAccounting, "ITEM_HAS_RESERVATIONS", "item has live reservations")
	ErrInsufficientBalance         = newError(KindAccounting, "INSUFFICIENT_BALANCE", "insufficient balance")
	ErrInsufficientPlatformBalance = newError(KindAccounting, "INSUFFICIENT_PLATFORM_BALANCE", "insufficient platform balance")
	ErrFeeTooHigh                  = newError(KindAccounting, "FEE_TOO_HIGH", "fee exceeds the maximum")
	ErrCashbackTooHigh             = newError(KindAccounting, "CASHBACK_TOO_HIGH", "cashback exceeds the maximum")
	ErrAmountOverflow              = newError(KindAccounting, "AMOUNT_OVERFLOW", "amount overflows")
	ErrAmountUnderflow             = newError(KindAccounting, "AMOUNT_UNDERFLOW", "amount underflows")
	ErrQuantityOverflow            = newError(KindAccounting, "QUANTITY_OVERFLOW", "quantity overflows")

	ErrItemMissing    = newError(KindReference, "ITEM_MISSING", "item does not exist")
	ErrOrderMissing   = newError(KindReference, "ORDER_MISSING", "order does not exist")
	ErrListingMissing = newError(KindReference, "LISTING_MISSING", "listing does not exist")

	ErrInsufficientPayment = newError(KindPayment, "INSUFFICIENT_PAYMENT", "supplied funds do not cover the total")
	ErrPayoutFailed        = newError(KindPayment, "PAYOUT_FAILED", "value transfer failed")

	ErrReentrantCall = newError(KindReentrancy, "REENTRANT_CALL", "reentrant call")

	ErrSelfPurchase    = newError(KindValidation, "SELF_PURCHASE", "buyer cannot be the seller")
	ErrEmptyAccount    = newError(KindValidation, "EMPTY_ACCOUNT", "account is empty")
	ErrInvalidOperator = newError(KindValidation, "INVALID_OPERATOR", "operator must be set and differ from admin")
	ErrInvalidArgument = newError(KindValidation, "INVALID_ARGUMENT", "invalid argument")
)
