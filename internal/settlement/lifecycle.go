package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"otcdesk/internal/storage"
)

var (
	// ErrInvalidTransition indicates the requested status change is not
	// permitted from the record's current state, or the state moved
	// underneath the caller.
	ErrInvalidTransition = errors.New("settlement: invalid transaction transition")
	// ErrNotAllowed indicates the actor lacks permission for the transition.
	ErrNotAllowed = errors.New("settlement: actor not allowed")
)

// Actor identifies who requests a transition.
type Actor struct {
	ID      int64
	IsAdmin bool
}

// Lifecycle owns the transaction state machine. All mutations flow through
// the store's conditional transition so a mid-flight status change fails
// cleanly instead of silently overwriting.
type Lifecycle struct {
	txs    storage.TransactionStore
	logger zerolog.Logger
}

// NewLifecycle constructs the lifecycle manager.
func NewLifecycle(txs storage.TransactionStore, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		txs:    txs,
		logger: logger.With().Str("component", "lifecycle").Logger(),
	}
}

// MarkPaid moves pending -> paid. The owning user or an admin may mark a
// transaction paid; paymentHash is optional and recorded when present.
func (l *Lifecycle) MarkPaid(ctx context.Context, transactionID string, actor Actor, paymentHash *string) error {
	tx, err := l.load(ctx, transactionID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin && actor.ID != tx.UserID {
		return fmt.Errorf("%w: only the owner or an admin may mark paid", ErrNotAllowed)
	}
	if tx.Status != storage.TxPending {
		return transitionError(tx.Status, storage.TxPaid)
	}
	return l.apply(ctx, tx, storage.TxPaid, actor, "mark_paid", paymentHash, "payment reported")
}

// Confirm moves paid -> confirmed. Admin only; confirmed is terminal.
func (l *Lifecycle) Confirm(ctx context.Context, transactionID string, actor Actor) error {
	tx, err := l.load(ctx, transactionID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin {
		return fmt.Errorf("%w: only an admin may confirm", ErrNotAllowed)
	}
	if tx.Status != storage.TxPaid {
		return transitionError(tx.Status, storage.TxConfirmed)
	}
	return l.apply(ctx, tx, storage.TxConfirmed, actor, "confirm", nil, "settlement confirmed")
}

// Cancel moves pending or paid -> cancelled. The owning user or an admin may
// cancel; cancelled is terminal.
func (l *Lifecycle) Cancel(ctx context.Context, transactionID string, actor Actor, reason string) error {
	tx, err := l.load(ctx, transactionID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin && actor.ID != tx.UserID {
		return fmt.Errorf("%w: only the owner or an admin may cancel", ErrNotAllowed)
	}
	if tx.Status != storage.TxPending && tx.Status != storage.TxPaid {
		return transitionError(tx.Status, storage.TxCancelled)
	}
	if reason == "" {
		reason = "cancelled"
	}
	return l.apply(ctx, tx, storage.TxCancelled, actor, "cancel", nil, reason)
}

func (l *Lifecycle) load(ctx context.Context, transactionID string) (storage.Transaction, error) {
	tx, err := l.txs.GetTransaction(ctx, transactionID)
	if err != nil {
		return storage.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}
	return *tx, nil
}

func (l *Lifecycle) apply(ctx context.Context, tx storage.Transaction, to storage.TxStatus, actor Actor, operation string, paymentHash *string, description string) error {
	audit := storage.AuditEntry{
		ID:            uuid.NewString(),
		TransactionID: tx.TransactionID,
		ActorID:       actor.ID,
		Operation:     operation,
		FromStatus:    tx.Status,
		ToStatus:      to,
		Description:   description,
	}

	err := l.txs.TransitionTransaction(ctx, tx.TransactionID, tx.Status, to, paymentHash, time.Now().UTC(), audit)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return err
	}

	l.logger.Info().
		Str("transaction_id", tx.TransactionID).
		Str("from", string(tx.Status)).
		Str("to", string(to)).
		Int64("actor_id", actor.ID).
		Msg("transaction transitioned")
	return nil
}

func transitionError(from, to storage.TxStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
