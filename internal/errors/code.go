package errors

import (
	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Error code format: SSMMEE (6 digits), SS=21 for the payment core.
// Modules:
//   01: fee engine
//   02: transaction state machine
//   03: checkout orchestration
//   04: webhook ingestion
//   05: retry scheduling

// Fee engine (210100-210199)
const (
	// ErrCodeNoFeeConfiguration no fee rule matches the requested combination
	ErrCodeNoFeeConfiguration = 210101
)

// Transaction state machine (210200-210299)
const (
	// ErrCodeTransactionNotFound transaction does not exist
	ErrCodeTransactionNotFound = 210201
	// ErrCodeInvalidTransition the requested state change is not legal
	ErrCodeInvalidTransition = 210202
	// ErrCodeTerminalTransaction the transaction is terminal and immutable
	ErrCodeTerminalTransaction = 210203
	// ErrCodeRefundExceedsNet refund amount exceeds the original net amount
	ErrCodeRefundExceedsNet = 210204
	// ErrCodeStaleTransaction optimistic status guard lost a concurrent race
	ErrCodeStaleTransaction = 210205
)

// Checkout orchestration (210300-210399)
const (
	// ErrCodeValidation bad caller input
	ErrCodeValidation = 210301
	// ErrCodeCustomerNotFound customer does not exist
	ErrCodeCustomerNotFound = 210302
	// ErrCodeProviderUnknown no adapter registered for the provider code
	ErrCodeProviderUnknown = 210303
	// ErrCodeProviderUnreachable provider session creation failed or timed out
	ErrCodeProviderUnreachable = 210304
	// ErrCodeProviderRejected provider refused the checkout request
	ErrCodeProviderRejected = 210305
)

// Webhook ingestion (210400-210499)
const (
	// ErrCodeSignatureInvalid callback signature verification failed
	ErrCodeSignatureInvalid = 210401
	// ErrCodeInvalidCallback callback payload could not be parsed
	ErrCodeInvalidCallback = 210402
	// ErrCodeDuplicateEvent the provider event was already processed
	ErrCodeDuplicateEvent = 210403
)

// Retry scheduling (210500-210599)
const (
	// ErrCodeRetryExhausted all configured retry attempts are used up
	ErrCodeRetryExhausted = 210501
)

// Machine-readable reasons carried in the error envelope.
const (
	ReasonValidation          = "VALIDATION"
	ReasonNoFeeConfiguration  = "NO_FEE_CONFIGURATION"
	ReasonTransactionNotFound = "TRANSACTION_NOT_FOUND"
	ReasonInvalidTransition   = "INVALID_TRANSITION"
	ReasonTerminalTransaction = "TERMINAL_TRANSACTION"
	ReasonRefundExceedsNet    = "REFUND_EXCEEDS_NET"
	ReasonStaleTransaction    = "STALE_TRANSACTION"
	ReasonCustomerNotFound    = "CUSTOMER_NOT_FOUND"
	ReasonProviderUnknown     = "PROVIDER_UNKNOWN"
	ReasonProviderUnreachable = "PROVIDER_UNREACHABLE"
	ReasonProviderRejected    = "PROVIDER_REJECTED"
	ReasonSignatureInvalid    = "SIGNATURE_INVALID"
	ReasonInvalidCallback     = "INVALID_CALLBACK"
	ReasonDuplicateEvent      = "DUPLICATE_EVENT"
	ReasonRetryExhausted      = "RETRY_EXHAUSTED"
)

func Validation(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(ErrCodeValidation, ReasonValidation, format, args...)
}

func NoFeeConfiguration(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(ErrCodeNoFeeConfiguration, ReasonNoFeeConfiguration, format, args...)
}

func TransactionNotFound(id string) *kerrors.Error {
	return kerrors.Newf(ErrCodeTransactionNotFound, ReasonTransactionNotFound, "transaction %s not found", id)
}

func InvalidTransition(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(ErrCodeInvalidTransition, ReasonInvalidTransition, format, args...)
}

func TerminalTransaction(id, status string) *kerrors.Error {
	return kerrors.Newf(ErrCodeTerminalTransaction, ReasonTerminalTransaction, "transaction %s is terminal in status %s", id, status)
}

func RefundExceedsNet(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(ErrCodeRefundExceedsNet, ReasonRefundExceedsNet, format, args...)
}

func StaleTransaction(id string) *kerrors.Error {
	return kerrors.Newf(ErrCodeStaleTransaction, ReasonStaleTransaction, "transaction %s was modified concurrently", id)
}

func CustomerNotFound(id string) *kerrors.Error {
	return kerrors.Newf(ErrCodeCustomerNotFound, ReasonCustomerNotFound, "customer %s not found", id)
}

func ProviderUnknown(code string) *kerrors.Error {
	return kerrors.Newf(ErrCodeProviderUnknown, ReasonProviderUnknown, "no adapter registered for provider %s", code)
}

func ProviderUnreachable(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(ErrCodeProviderUnreachable, ReasonProviderUnreachable, format, args...)
}

func ProviderRejected(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(ErrCodeProviderRejected, ReasonProviderRejected, format, args...)
}

func SignatureInvalid(provider string) *kerrors.Error {
	return kerrors.Newf(ErrCodeSignatureInvalid, ReasonSignatureInvalid, "signature verification failed for provider %s", provider)
}

func InvalidCallback(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Newf(ErrCodeInvalidCallback, ReasonInvalidCallback, format, args...)
}

func DuplicateEvent(provider, eventID string) *kerrors.Error {
	return kerrors.Newf(ErrCodeDuplicateEvent, ReasonDuplicateEvent, "event %s from provider %s already processed", eventID, provider)
}

func RetryExhausted(transactionID string) *kerrors.Error {
	return kerrors.Newf(ErrCodeRetryExhausted, ReasonRetryExhausted, "retry attempts exhausted for transaction %s", transactionID)
}

// IsReason reports whether err carries the given reason.
func IsReason(err error, reason string) bool {
	return kerrors.Reason(err) == reason
}

func IsInvalidTransition(err error) bool { return IsReason(err, ReasonInvalidTransition) }

func IsStaleTransaction(err error) bool { return IsReason(err, ReasonStaleTransaction) }

func IsDuplicateEvent(err error) bool { return IsReason(err, ReasonDuplicateEvent) }
