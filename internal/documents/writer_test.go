package documents

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func poRecord(number string, lines ...[2]string) Record {
	rec := Record{Kind: KindPO, Number: number, Counterparty: "Acme", Date: "2024-01-05"}
	for i, l := range lines {
		qty, cost := dec(l[0]), dec(l[1])
		rec.Items = append(rec.Items, Item{LineNo: i + 1, Description: "item", Quantity: qty, UnitCost: cost, Amount: qty.Mul(cost)})
	}
	return rec
}

func parRecord(number, recipient string, lines ...[2]string) Record {
	rec := Record{Kind: KindPAR, Number: number, Counterparty: recipient, Date: "2024-02-01"}
	for i, l := range lines {
		rec.Items = append(rec.Items, Item{LineNo: i + 1, Description: "laptop", Quantity: dec(l[0]), Amount: dec(l[1]), DateAcquired: "2024-02-01"})
	}
	return rec
}

func TestWriterInsertComputesTotalIgnoringClientValue(t *testing.T) {
	store := newMemoryStore()
	w := NewWriter(store, nil)

	rec := poRecord("PO-1001", [2]string{"2", "150.00"})
	rec.Total = dec("999")

	res, err := w.Write(context.Background(), rec, 0)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotZero(t, res.ID)
	assert.True(t, res.Total.Equal(dec("300")), "total %s", res.Total)

	h, ok := store.header(KindPO, res.ID)
	require.True(t, ok)
	assert.True(t, h.rec.Total.Equal(dec("300")))
	assert.Len(t, store.itemsOf(KindPO, res.ID), 1)
}

func TestWriterTotalMatchesFloatSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	w := NewWriter(newMemoryStore(), nil)
	for run := 0; run < 50; run++ {
		rec := Record{Kind: KindPO, Number: "PO-R" + decimal.NewFromInt(int64(run)).String(), Counterparty: "Acme", Date: "2024-01-05"}
		want := 0.0
		for i := 0; i < 1+rng.Intn(8); i++ {
			qty := math.Round(rng.Float64()*1000) / 100
			cost := math.Round(rng.Float64()*100000) / 100
			want += qty * cost
			rec.Items = append(rec.Items, Item{LineNo: i + 1, Description: "x", Quantity: decimal.NewFromFloat(qty), UnitCost: decimal.NewFromFloat(cost)})
		}
		res, err := w.Write(context.Background(), rec, 0)
		require.NoError(t, err)
		got, _ := res.Total.Float64()
		assert.InDelta(t, want, got, 1e-6)
	}
}

func TestWriterRejectsDuplicateNumber(t *testing.T) {
	w := NewWriter(newMemoryStore(), nil)
	_, err := w.Write(context.Background(), poRecord("PO-1001", [2]string{"1", "1"}), 0)
	require.NoError(t, err)

	_, err = w.Write(context.Background(), poRecord("PO-1001", [2]string{"1", "1"}), 0)
	require.ErrorIs(t, err, ErrDuplicateKey)
	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "PO-1001", dup.Number)
	assert.Contains(t, err.Error(), "PO-1001")
}

func TestWriterConcurrentInsertsSameNumber(t *testing.T) {
	w := NewWriter(newMemoryStore(), nil)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dups      int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Write(context.Background(), poRecord("PO-RACE", [2]string{"1", "5"}), 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateKey):
				dups++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, dups)
}

func TestWriterUpdateKeepsOwnNumberAndReplacesItems(t *testing.T) {
	store := newMemoryStore()
	w := NewWriter(store, nil)
	res, err := w.Write(context.Background(), poRecord("PO-7", [2]string{"1", "10"}, [2]string{"2", "10"}, [2]string{"3", "10"}), 0)
	require.NoError(t, err)
	require.Len(t, store.itemsOf(KindPO, res.ID), 3)

	updated, err := w.Write(context.Background(), poRecord("PO-7", [2]string{"4", "2.5"}), res.ID)
	require.NoError(t, err)
	assert.False(t, updated.Created)
	assert.Equal(t, res.ID, updated.ID)
	assert.True(t, updated.Total.Equal(dec("10")))

	items := store.itemsOf(KindPO, res.ID)
	require.Len(t, items, 1)
	assert.True(t, items[0].Quantity.Equal(dec("4")))
}

func TestWriterUpdateCannotStealAnotherNumber(t *testing.T) {
	w := NewWriter(newMemoryStore(), nil)
	first, err := w.Write(context.Background(), poRecord("PO-A", [2]string{"1", "1"}), 0)
	require.NoError(t, err)
	second, err := w.Write(context.Background(), poRecord("PO-B", [2]string{"1", "1"}), 0)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	_, err = w.Write(context.Background(), poRecord("PO-A", [2]string{"1", "1"}), second.ID)
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestWriterUpdateMissingHeader(t *testing.T) {
	store := newMemoryStore()
	w := NewWriter(store, nil)
	_, err := w.Write(context.Background(), poRecord("PO-404", [2]string{"1", "1"}), 404)
	require.ErrorIs(t, err, ErrNotFound)
	headers, items, _ := store.counts()
	assert.Zero(t, headers)
	assert.Zero(t, items)
}

func TestWriterRollsBackOnItemFailure(t *testing.T) {
	store := newMemoryStore()
	w := NewWriter(store, nil)
	existing, err := w.Write(context.Background(), poRecord("PO-1", [2]string{"1", "10"}, [2]string{"1", "20"}), 0)
	require.NoError(t, err)
	headersBefore, itemsBefore, _ := store.counts()

	store.failItemAt = 2
	_, err = w.Write(context.Background(), poRecord("PO-2", [2]string{"1", "1"}, [2]string{"1", "2"}, [2]string{"1", "3"}), 0)
	require.ErrorIs(t, err, errInjected)
	headers, items, _ := store.counts()
	assert.Equal(t, headersBefore, headers)
	assert.Equal(t, itemsBefore, items)

	_, err = w.Write(context.Background(), poRecord("PO-1", [2]string{"9", "9"}, [2]string{"9", "9"}), existing.ID)
	require.ErrorIs(t, err, errInjected)
	headers, items, _ = store.counts()
	assert.Equal(t, headersBefore, headers)
	assert.Equal(t, itemsBefore, items)
	h, _ := store.header(KindPO, existing.ID)
	assert.True(t, h.rec.Total.Equal(dec("30")))
	assert.Equal(t, 3, store.txCount, "item failures are not retried")
}

func TestWriterFindOrCreateRecipientOnce(t *testing.T) {
	store := newMemoryStore()
	w := NewWriter(store, nil)

	first, err := w.Write(context.Background(), parRecord("PAR-1", "Juan dela Cruz", [2]string{"1", "45000"}), 0)
	require.NoError(t, err)
	second, err := w.Write(context.Background(), parRecord("PAR-2", "Juan dela Cruz", [2]string{"2", "300"}), 0)
	require.NoError(t, err)

	_, _, users := store.counts()
	assert.Equal(t, 1, users)
	assert.NotZero(t, first.UserID)
	assert.Equal(t, first.UserID, second.UserID)
	assert.True(t, second.Total.Equal(dec("600")))
}

func TestWriterRetriesLostRecipientRace(t *testing.T) {
	store := newMemoryStore()
	store.recipientRaces = 1
	w := NewWriter(store, nil)

	res, err := w.Write(context.Background(), parRecord("PAR-9", "Maria Santos", [2]string{"1", "10"}), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, store.txCount)

	headers, items, users := store.counts()
	assert.Equal(t, 1, headers)
	assert.Equal(t, 1, items)
	assert.Equal(t, 1, users)
	h, _ := store.header(KindPAR, res.ID)
	assert.Equal(t, res.UserID, h.userID)
}

func TestWriterGivesUpAfterBoundedRetries(t *testing.T) {
	store := newMemoryStore()
	store.findErr = &pgconn.PgError{Code: db.CodeSerializationFailure}
	w := NewWriter(store, nil)

	_, err := w.Write(context.Background(), parRecord("PAR-9", "Maria Santos", [2]string{"1", "10"}), 0)
	require.Error(t, err)
	assert.True(t, db.IsSerializationFailure(err))
	assert.Equal(t, defaultWriteAttempts, store.txCount)
	headers, _, _ := store.counts()
	assert.Zero(t, headers)
}

func TestWriterDoesNotRetryPOWrites(t *testing.T) {
	store := newMemoryStore()
	store.findErr = &pgconn.PgError{Code: db.CodeSerializationFailure}
	w := NewWriter(store, nil)

	_, err := w.Write(context.Background(), poRecord("PO-5", [2]string{"1", "1"}), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.txCount)
}
