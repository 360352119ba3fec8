package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageAndInternal(t *testing.T) {
	base := New("SOMETHING", "something happened", http.StatusTeapot)
	require.Equal(t, "something happened", base.Error())

	wrapped := base.WithInternal(errors.New("root cause"))
	require.Equal(t, "something happened: root cause", wrapped.Error())
	require.EqualError(t, wrapped.Unwrap(), "root cause")

	// The sentinel itself is untouched.
	require.Nil(t, base.Internal)
}

func TestWithMessageKeepsCodeAndStatus(t *testing.T) {
	err := ErrTxNotFound.WithMessage("Transaction not confirmed yet; retry shortly")
	require.Equal(t, ErrTxNotFound.Code, err.Code)
	require.Equal(t, ErrTxNotFound.StatusCode, err.StatusCode)
	require.Equal(t, "Transaction not confirmed yet; retry shortly", err.Message)
	require.Empty(t, ErrTxNotFound.Internal)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrAlreadyConsumed)
	require.Equal(t, "ALREADY_CONSUMED", appErr.Code)

	wrapped := fmt.Errorf("outer: %w", ErrConflict)
	require.Equal(t, "CONFLICT", FromError(wrapped).Code)

	plain := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, plain.Code)
	require.Equal(t, http.StatusInternalServerError, plain.StatusCode)
}

func TestStatusCodesDistinguishFailureKinds(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, ErrAuthenticationMissing.StatusCode)
	require.Equal(t, http.StatusPaymentRequired, ErrPaymentRequired.StatusCode)
	require.Equal(t, http.StatusNotFound, ErrTxNotFound.StatusCode)
	require.Equal(t, http.StatusUnprocessableEntity, ErrTransactionFailed.StatusCode)
	require.Equal(t, http.StatusUnprocessableEntity, ErrSenderMismatch.StatusCode)
	require.Equal(t, http.StatusUnprocessableEntity, ErrInsufficientPayment.StatusCode)
	require.Equal(t, http.StatusConflict, ErrAlreadyConsumed.StatusCode)
	require.Equal(t, http.StatusServiceUnavailable, ErrStoreUnavailable.StatusCode)
}
