package ledger

import (
	"context"
	"errors"
	"math/big"
)

// Payment holds the observed facts of a ledger transaction that matter to
// fee verification. Addresses are reported in their checksummed form; callers
// are expected to compare them case-insensitively.
type Payment struct {
	TxReference string
	Sender      string
	Recipient   string
	Amount      *big.Int // native units (wei)
	BlockNumber uint64
}

var (
	// ErrTxNotFound means the transaction is not visible to the ledger yet.
	// This is transient: the caller should surface a retry-later signal, not
	// a terminal failure.
	ErrTxNotFound = errors.New("ledger: transaction not found")

	// ErrTxReverted means the transaction executed and failed. Terminal.
	ErrTxReverted = errors.New("ledger: transaction reverted")

	// ErrConfirmationTimeout means the server-side confirmation wait was
	// abandoned before the transaction confirmed.
	ErrConfirmationTimeout = errors.New("ledger: confirmation timed out")
)

// Client is the read-only ledger surface consumed by payment verification.
type Client interface {
	// PaymentByRef resolves a transaction by its reference. The second
	// return value reports whether the transaction is still pending.
	PaymentByRef(ctx context.Context, txRef string) (*Payment, bool, error)

	// AwaitConfirmation suspends until the transaction is included in a
	// sufficiently confirmed block, the transaction reverts, or the
	// context / server-side bound expires.
	AwaitConfirmation(ctx context.Context, txRef string) (*Payment, error)

	Network() string
	ChainID() *big.Int
	Close()
}
