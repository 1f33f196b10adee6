package dto

import "net/http"

// Error codes are ERR_<CATEGORY>_<DESCRIPTION>; ledger rule violations reuse
// the domain code with the ERR_ prefix.
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeTooLarge    = "ERR_PAYLOAD_TOO_LARGE"
	// ErrCodeTimeout means the outcome is unknown and the request is safe to retry
	ErrCodeTimeout = "ERR_TIMEOUT"

	ErrCodeTenantRequired = "ERR_TENANT_REQUIRED"
	ErrCodeTenantInvalid  = "ERR_TENANT_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
)

// Ledger rule codes
const (
	ErrCodeInvalidAmount         = "ERR_INVALID_AMOUNT"
	ErrCodeInvalidTransition     = "ERR_INVALID_TRANSITION"
	ErrCodeMissingBankAccount    = "ERR_MISSING_BANK_ACCOUNT"
	ErrCodeAccountInactive       = "ERR_ACCOUNT_INACTIVE"
	ErrCodeAlreadyPaid           = "ERR_ALREADY_PAID"
	ErrCodeClosureAlreadyExists  = "ERR_CLOSURE_ALREADY_EXISTS"
	ErrCodeReversalForbidden     = "ERR_REVERSAL_FORBIDDEN"
	ErrCodeNoCommissionsInPeriod = "ERR_NO_COMMISSIONS_IN_PERIOD"
	ErrCodeNoEligibleReceivables = "ERR_NO_ELIGIBLE_RECEIVABLES"
	ErrCodeBatchConflict         = "ERR_BATCH_CONFLICT"
	ErrCodeUnmatchedPayment      = "ERR_UNMATCHED_PAYMENT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeInvalidJSON:    http.StatusBadRequest,
	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeTooLarge:       http.StatusRequestEntityTooLarge,
	ErrCodeTimeout:        http.StatusGatewayTimeout,
	ErrCodeTenantRequired: http.StatusBadRequest,
	ErrCodeTenantInvalid:  http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	// Validation: the request can never succeed as sent
	ErrCodeInvalidAmount:      http.StatusBadRequest,
	ErrCodeInvalidTransition:  http.StatusUnprocessableEntity,
	ErrCodeMissingBankAccount: http.StatusUnprocessableEntity,
	ErrCodeAccountInactive:    http.StatusUnprocessableEntity,

	// Conflict: the target already moved past the requested state
	ErrCodeAlreadyPaid:          http.StatusConflict,
	ErrCodeClosureAlreadyExists: http.StatusConflict,
	ErrCodeReversalForbidden:    http.StatusConflict,
	ErrCodeBatchConflict:        http.StatusConflict,

	ErrCodeNoCommissionsInPeriod: http.StatusUnprocessableEntity,
	ErrCodeNoEligibleReceivables: http.StatusUnprocessableEntity,
	ErrCodeUnmatchedPayment:      http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the status for code, 500 when the code is unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode turns a domain code such as ALREADY_PAID into its API
// code. Codes that are already prefixed, or unknown, are returned unchanged.
func NormalizeErrorCode(code string) string {
	prefixed := "ERR_" + code
	if _, ok := ErrorCodeHTTPStatus[prefixed]; ok {
		return prefixed
	}
	return code
}
