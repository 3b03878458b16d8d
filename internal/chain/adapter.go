// Package chain defines the verification boundary between the points economy
// and the token chain. The economy never talks to a node directly; it hands a
// transaction reference and its expectation to an Adapter and trusts the
// answer.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bloblets/arena-backend/pkg/address"
)

var (
	// ErrTransactionNotFound means the reference does not exist on chain or
	// has not been indexed yet. Callers may treat it as retryable.
	ErrTransactionNotFound = errors.New("chain transaction not found")
	// ErrTransactionFailed means the transaction exists but reverted.
	ErrTransactionFailed = errors.New("chain transaction failed")
	// ErrTransactionPending means the transaction has not reached finality.
	ErrTransactionPending = errors.New("chain transaction pending")
)

// Expected is what the caller believes the transaction did. VerifyTransaction
// rejects the transaction when chain reality disagrees. Direction is encoded
// through the endpoints: a deposit expects the user as sender and the
// treasury as recipient, a withdrawal the reverse.
type Expected struct {
	Amount    decimal.Decimal
	Sender    string
	Recipient string
}

// VerifiedTransaction is the adapter's view of a finalized transaction.
type VerifiedTransaction struct {
	Reference   string
	Sender      string
	Recipient   string
	Amount      decimal.Decimal
	FinalizedAt time.Time
}

// Adapter verifies token transactions against an external chain.
// Implementations wrap a node RPC or an indexer; the economy only depends on
// this interface.
type Adapter interface {
	VerifyTransaction(ctx context.Context, txRef string, expected Expected) (*VerifiedTransaction, error)
}

// Match checks a verified transaction against the expectation. Adapters that
// fetch raw transactions call this so every implementation rejects mismatches
// the same way. A zero expected amount skips the amount check; callers that
// only need existence and finality leave it unset.
func Match(verified *VerifiedTransaction, expected Expected) error {
	if verified == nil {
		return ErrTransactionNotFound
	}
	if !expected.Amount.IsZero() && !verified.Amount.Equal(expected.Amount) {
		return fmt.Errorf("amount mismatch: chain says %s, expected %s",
			verified.Amount.String(), expected.Amount.String())
	}
	if expected.Sender != "" && !address.Equal(verified.Sender, expected.Sender) {
		return fmt.Errorf("sender mismatch: chain says %s", address.Mask(verified.Sender))
	}
	if expected.Recipient != "" && !address.Equal(verified.Recipient, expected.Recipient) {
		return fmt.Errorf("recipient mismatch: chain says %s", address.Mask(verified.Recipient))
	}
	return nil
}
