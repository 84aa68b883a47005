package documents

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/migrate"
	"github.com/Palpita209/Palpita209-sub001/internal/shared"
)

// newPostgresService needs a disposable database in ASSETTRACK_TEST_PG_DSN.
func newPostgresService(t *testing.T) (*Service, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("ASSETTRACK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("ASSETTRACK_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, 8)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrations, err := migrate.Embedded()
	require.NoError(t, err)
	_, err = migrate.New(pool, nil).Up(ctx, migrations)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE po_items, purchase_orders, par_items, property_acknowledgement_receipts, users, audit_logs RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return NewService(NewRepository(pool), newTestNormalizer(), nil, shared.NewAuditLogger(pool), nil, nil), pool
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestPostgresSaveUpdateAndRead(t *testing.T) {
	svc, pool := newPostgresService(t)
	ctx := context.Background()

	res, err := svc.Save(ctx, KindPO, ModeSave, []byte(`{"po_no":"PO-1001","supplier":"Acme","po_date":"2024-01-05","date_of_delivery":"01/20/2024",
		"items":[{"description":"A","quantity":1,"unit_cost":10},{"description":"B","quantity":2,"unit_cost":10},{"description":"C","quantity":3,"unit_cost":10,"property_number":"PN-3"}]}`))
	require.NoError(t, err)
	assert.True(t, res.Total.Equal(dec("60")))
	assert.Equal(t, 3, countRows(t, pool, "po_items"))

	_, err = svc.Save(ctx, KindPO, ModeSave, []byte(`{"po_no":"PO-1001","supplier":"Other","po_date":"2024-01-05","items":[{"description":"x"}]}`))
	require.ErrorIs(t, err, ErrDuplicateKey)

	_, err = svc.Save(ctx, KindPO, ModeUpdate, []byte(`{"id":`+jsonInt(res.ID)+`,"po_no":"PO-1001","supplier":"Acme","po_date":"2024-01-05","items":[{"description":"only","quantity":"1,000","unit_cost":"0.5"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, pool, "po_items"))

	details, err := svc.GetPO(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "PO-1001", details.PONo)
	assert.Nil(t, details.DateOfDelivery)
	assert.True(t, details.TotalAmount.Equal(dec("500")))
	require.Len(t, details.Items, 1)
	assert.Equal(t, "only", details.Items[0].Description)

	_, err = svc.GetPO(ctx, res.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, countRows(t, pool, "audit_logs"))
}

func TestPostgresConcurrentRecipientsAndNumbers(t *testing.T) {
	svc, pool := newPostgresService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := `{"par_no":"PAR-` + jsonInt(int64(i)) + `","received_by":"Juan dela Cruz","par_date":"2024-01-05","items":[{"description":"Laptop","quantity":1,"amount":100}]}`
			_, errs[i] = svc.Save(ctx, KindPAR, ModeSave, []byte(body))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			require.True(t, db.IsSerializationFailure(err) || errors.Is(err, ErrRecipientConflict), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, countRows(t, pool, "users"))

	dups := make([]error, 4)
	for i := range dups {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, dups[i] = svc.Save(ctx, KindPO, ModeSave, []byte(`{"po_no":"PO-RACE","supplier":"Acme","po_date":"2024-01-05","items":[{"description":"x","quantity":1,"unit_cost":1}]}`))
		}(i)
	}
	wg.Wait()
	successes := 0
	for _, err := range dups {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateKey)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, countRows(t, pool, "purchase_orders"))
}

func TestPostgresRepairTotals(t *testing.T) {
	svc, pool := newPostgresService(t)
	ctx := context.Background()

	res, err := svc.Save(ctx, KindPAR, ModeSave, []byte(`{"par_no":"PAR-T","received_by":"Ana","par_date":"2024-01-05","items":[{"description":"Chair","quantity":4,"amount":250}]}`))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE property_acknowledgement_receipts SET total_amount = 1 WHERE par_id = $1`, res.ID)
	require.NoError(t, err)

	repaired, err := svc.ReconcileTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), repaired[KindPAR])

	details, err := svc.GetPAR(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, details.TotalAmount.Equal(dec("1000")))
	assert.Equal(t, "2024-01-05", details.Items[0].DateAcquired)
}
