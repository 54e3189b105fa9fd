package errors

const (
	CodeInternal            = "INTERNAL"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeEntryNotFound       = "ENTRY_NOT_FOUND"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeInvalidOperation    = "INVALID_OPERATION"
	CodeUnitMismatch        = "UNIT_MISMATCH"
	CodeContention          = "CONTENTION"
	CodeDuplicateRequest    = "DUPLICATE_REQUEST"
	CodeIdempotencyMismatch = "IDEMPOTENCY_MISMATCH"
	CodeNegativeBalance     = "NEGATIVE_BALANCE"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
)

var (
	ErrInvalidAmount = &DomainError{
		Code:    CodeInvalidAmount,
		Message: "amount must be a positive number",
	}
	ErrAccountNotFound = &DomainError{
		Code:    CodeAccountNotFound,
		Message: "account not found",
	}
	ErrEntryNotFound = &DomainError{
		Code:    CodeEntryNotFound,
		Message: "ledger entry not found",
	}
	ErrInsufficientFunds = &DomainError{
		Code:    CodeInsufficientFunds,
		Message: "insufficient funds",
	}
	ErrInvalidOperation = &DomainError{
		Code:    CodeInvalidOperation,
		Message: "invalid operation",
	}
	ErrUnitMismatch = &DomainError{
		Code:    CodeUnitMismatch,
		Message: "accounts hold different units",
	}
	ErrContention = &DomainError{
		Code:    CodeContention,
		Message: "account is busy, retry later",
	}
	ErrDuplicateRequest = &DomainError{
		Code:    CodeDuplicateRequest,
		Message: "request with this idempotency key is in progress",
	}
	ErrIdempotencyMismatch = &DomainError{
		Code:    CodeIdempotencyMismatch,
		Message: "idempotency key reused with a different request",
	}
	ErrNegativeBalance = &DomainError{
		Code:    CodeNegativeBalance,
		Message: "balance cannot be negative",
	}
	ErrConstraintViolation = &DomainError{
		Code:    CodeConstraintViolation,
		Message: "referenced account does not exist",
	}
)
