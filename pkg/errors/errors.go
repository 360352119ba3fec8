package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a more specific message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrAuthenticationMissing = &AppError{
		Code:       "AUTHENTICATION_MISSING",
		Message:    "Wallet address required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrPaymentRequired = &AppError{
		Code:       "PAYMENT_REQUIRED",
		Message:    "Payment required to access this resource",
		StatusCode: http.StatusPaymentRequired,
	}

	// ErrTxNotFound is transient: the transaction may not have propagated yet
	// and the client is expected to retry after a short delay.
	ErrTxNotFound = &AppError{
		Code:       "TX_NOT_FOUND",
		Message:    "Transaction not found; it may not be visible yet, retry shortly",
		StatusCode: http.StatusNotFound,
	}

	// ErrTransactionFailed is terminal: the transaction executed and reverted.
	ErrTransactionFailed = &AppError{
		Code:       "TX_FAILED",
		Message:    "Transaction failed on chain",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrSenderMismatch = &AppError{
		Code:       "SENDER_MISMATCH",
		Message:    "Transaction sender does not match the claimed wallet address",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrRecipientMismatch = &AppError{
		Code:       "RECIPIENT_MISMATCH",
		Message:    "Transaction recipient does not match the payment address",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrInsufficientPayment = &AppError{
		Code:       "INSUFFICIENT_PAYMENT",
		Message:    "Transaction amount is below the required fee",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrAlreadyConsumed = &AppError{
		Code:       "ALREADY_CONSUMED",
		Message:    "Transaction has already been used for a payment",
		StatusCode: http.StatusConflict,
	}

	// ErrConflict signals a storage-level uniqueness violation. The verifier
	// maps it to ErrAlreadyConsumed before it reaches API consumers.
	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Record already exists",
		StatusCode: http.StatusConflict,
	}

	ErrStoreUnavailable = &AppError{
		Code:       "STORE_UNAVAILABLE",
		Message:    "Storage backend unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
