package documents

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
)

const defaultWriteAttempts = 3

// TxRepository exposes the statements executed inside one write transaction.
type TxRepository interface {
	// NumberTaken reports whether a header other than excludeID uses number.
	NumberTaken(ctx context.Context, kind Kind, number string, excludeID int64) (bool, error)
	FindRecipient(ctx context.Context, name string) (int64, bool, error)
	// CreateRecipient returns ErrRecipientConflict when another transaction inserted name first.
	CreateRecipient(ctx context.Context, name string) (int64, error)
	InsertHeader(ctx context.Context, rec Record, userID int64) (int64, error)
	// UpdateHeader returns ErrNotFound when id does not exist.
	UpdateHeader(ctx context.Context, id int64, rec Record, userID int64) error
	DeleteItems(ctx context.Context, kind Kind, headerID int64) error
	InsertItem(ctx context.Context, kind Kind, headerID int64, item Item) error
}

// Store opens write transactions.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Writer persists a header and its items atomically.
type Writer struct {
	store    Store
	attempts int
	logger   *slog.Logger
}

// NewWriter constructs a Writer.
func NewWriter(store Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, attempts: defaultWriteAttempts, logger: logger}
}

// retryable marks failures of the recipient find-or-create step.
type retryable struct {
	err error
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

// Write inserts rec when targetID is zero and replaces header targetID otherwise.
// Only recipient conflicts are retried; every other failure is returned as is.
func (w *Writer) Write(ctx context.Context, rec Record, targetID int64) (Result, error) {
	var (
		res Result
		err error
	)
	for attempt := 1; attempt <= w.attempts; attempt++ {
		res, err = w.writeOnce(ctx, rec, targetID)
		var retry *retryable
		if err == nil || !errors.As(err, &retry) {
			return res, err
		}
		if attempt < w.attempts {
			w.logger.Warn("retrying document write",
				slog.String("kind", string(rec.Kind)),
				slog.Int("attempt", attempt),
				slog.Any("error", retry.err))
		}
		err = retry.err
	}
	return Result{}, err
}

func (w *Writer) writeOnce(ctx context.Context, rec Record, targetID int64) (Result, error) {
	res := Result{Kind: rec.Kind, Number: rec.Number, Total: rec.ComputeTotal(), Created: targetID == 0, Items: len(rec.Items)}
	rec.Total = res.Total
	err := w.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.NumberTaken(ctx, rec.Kind, rec.Number, targetID)
		if err != nil {
			return err
		}
		if taken {
			return &DuplicateKeyError{Kind: rec.Kind, Number: rec.Number}
		}

		var userID int64
		if rec.Kind == KindPAR {
			userID, err = findOrCreateRecipient(ctx, tx, rec.Counterparty)
			if err != nil {
				return err
			}
		}

		id := targetID
		if id == 0 {
			id, err = tx.InsertHeader(ctx, rec, userID)
			if err != nil {
				return err
			}
		} else {
			if err := tx.UpdateHeader(ctx, id, rec, userID); err != nil {
				return err
			}
			if err := tx.DeleteItems(ctx, rec.Kind, id); err != nil {
				return err
			}
		}

		for _, item := range rec.Items {
			if err := tx.InsertItem(ctx, rec.Kind, id, item); err != nil {
				return err
			}
		}
		res.ID = id
		res.UserID = userID
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func findOrCreateRecipient(ctx context.Context, tx TxRepository, name string) (int64, error) {
	id, ok, err := tx.FindRecipient(ctx, name)
	if err == nil && !ok {
		id, err = tx.CreateRecipient(ctx, name)
	}
	if err != nil {
		if errors.Is(err, ErrRecipientConflict) || db.IsSerializationFailure(err) {
			return 0, &retryable{err: err}
		}
		return 0, err
	}
	return id, nil
}
