package finance

import "github.com/erp/ledger/internal/domain/shared"

// Validation errors are raised before any mutation.
var (
	ErrInvalidAmount      = shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrInvalidTransition  = shared.NewDomainError("INVALID_TRANSITION", "Status transition is not allowed")
	ErrMissingBankAccount = shared.NewDomainError("MISSING_BANK_ACCOUNT", "A bank account is required for this operation")
	ErrAccountInactive    = shared.NewDomainError("ACCOUNT_INACTIVE", "Account is inactive")
)

// Conflict errors mean the requested change is redundant or unsafe.
var (
	ErrAlreadyPaid           = shared.NewDomainError("ALREADY_PAID", "Record is already paid")
	ErrClosureAlreadyExists  = shared.NewDomainError("CLOSURE_ALREADY_EXISTS", "A commission closure already exists for this seller and month")
	ErrReversalForbidden     = shared.NewDomainError("REVERSAL_FORBIDDEN", "Transaction references a settled record and cannot be reversed")
	ErrNoCommissionsInPeriod = shared.NewDomainError("NO_COMMISSIONS_IN_PERIOD", "No unlinked commissions in the reference month")
	ErrNoEligibleReceivables = shared.NewDomainError("NO_ELIGIBLE_RECEIVABLES", "None of the receivables can be settled")
	ErrBatchConflict         = shared.NewDomainError("BATCH_CONFLICT", "Batch contains receivables that are no longer outstanding")
	ErrUnmatchedPayment      = shared.NewDomainError("UNMATCHED_PAYMENT", "Payment notification matches no record and carries no customer for recovery")
)
