package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
)

type tableSpec struct {
	header     string
	idCol      string
	numberCol  string
	items      string
	constraint string
	lineTotal  string
}

var tables = map[Kind]tableSpec{
	KindPO: {
		header:     "purchase_orders",
		idCol:      "po_id",
		numberCol:  "po_no",
		items:      "po_items",
		constraint: "purchase_orders_po_no_key",
		lineTotal:  "i.quantity * i.unit_cost",
	},
	KindPAR: {
		header:     "property_acknowledgement_receipts",
		idCol:      "par_id",
		numberCol:  "par_no",
		items:      "par_items",
		constraint: "property_acknowledgement_receipts_par_no_key",
		lineTotal:  "i.quantity * i.amount",
	},
}

func specFor(kind Kind) (tableSpec, error) {
	spec, ok := tables[kind]
	if !ok {
		return tableSpec{}, fmt.Errorf("documents: unknown kind %q", kind)
	}
	return spec, nil
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) NumberTaken(ctx context.Context, kind Kind, number string, excludeID int64) (bool, error) {
	spec, err := specFor(kind)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND %s <> $2)`, spec.header, spec.numberCol, spec.idCol)
	var taken bool
	if err := t.tx.QueryRow(ctx, query, number, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("check %s: %w", spec.numberCol, err)
	}
	return taken, nil
}

func (t *txRepo) FindRecipient(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT user_id FROM users WHERE full_name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find recipient: %w", err)
	}
	return id, true, nil
}

func (t *txRepo) CreateRecipient(ctx context.Context, name string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO users (full_name) VALUES ($1) ON CONFLICT (full_name) DO NOTHING RETURNING user_id`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrRecipientConflict
	}
	if err != nil {
		return 0, fmt.Errorf("create recipient: %w", err)
	}
	return id, nil
}

func (t *txRepo) InsertHeader(ctx context.Context, rec Record, userID int64) (int64, error) {
	var (
		id  int64
		err error
	)
	switch rec.Kind {
	case KindPO:
		err = t.tx.QueryRow(ctx, `INSERT INTO purchase_orders
    (po_no, supplier, supplier_address, tin, po_date, mode_of_procurement, place_of_delivery,
     date_of_delivery, delivery_term, payment_term, remarks, total_amount)
VALUES ($1, $2, $3, $4, $5::text::date, $6, $7, $8::text::date, $9, $10, $11, $12::text::numeric)
RETURNING po_id`,
			rec.Number, rec.Counterparty, rec.PO.SupplierAddress, rec.PO.TIN, rec.Date,
			rec.PO.ModeOfProcurement, rec.PO.PlaceOfDelivery, nullable(rec.PO.DateOfDelivery),
			rec.PO.DeliveryTerm, rec.PO.PaymentTerm, rec.PO.Remarks, rec.Total.String(),
		).Scan(&id)
	case KindPAR:
		err = t.tx.QueryRow(ctx, `INSERT INTO property_acknowledgement_receipts
    (par_no, user_id, par_date, entity_name, fund_cluster, position, office, issued_by, remarks, total_amount)
VALUES ($1, $2, $3::text::date, $4, $5, $6, $7, $8, $9, $10::text::numeric)
RETURNING par_id`,
			rec.Number, userID, rec.Date, rec.PAR.EntityName, rec.PAR.FundCluster, rec.PAR.Position,
			rec.PAR.Office, rec.PAR.IssuedBy, rec.PAR.Remarks, rec.Total.String(),
		).Scan(&id)
	default:
		return 0, fmt.Errorf("documents: unknown kind %q", rec.Kind)
	}
	if err != nil {
		return 0, translateWriteErr(rec, "insert header", err)
	}
	return id, nil
}

func (t *txRepo) UpdateHeader(ctx context.Context, id int64, rec Record, userID int64) error {
	var (
		rows int64
		err  error
	)
	switch rec.Kind {
	case KindPO:
		tag, execErr := t.tx.Exec(ctx, `UPDATE purchase_orders SET
    po_no = $1, supplier = $2, supplier_address = $3, tin = $4, po_date = $5::text::date,
    mode_of_procurement = $6, place_of_delivery = $7, date_of_delivery = $8::text::date,
    delivery_term = $9, payment_term = $10, remarks = $11, total_amount = $12::text::numeric,
    updated_at = NOW()
WHERE po_id = $13`,
			rec.Number, rec.Counterparty, rec.PO.SupplierAddress, rec.PO.TIN, rec.Date,
			rec.PO.ModeOfProcurement, rec.PO.PlaceOfDelivery, nullable(rec.PO.DateOfDelivery),
			rec.PO.DeliveryTerm, rec.PO.PaymentTerm, rec.PO.Remarks, rec.Total.String(), id,
		)
		rows, err = tag.RowsAffected(), execErr
	case KindPAR:
		tag, execErr := t.tx.Exec(ctx, `UPDATE property_acknowledgement_receipts SET
    par_no = $1, user_id = $2, par_date = $3::text::date, entity_name = $4, fund_cluster = $5,
    position = $6, office = $7, issued_by = $8, remarks = $9, total_amount = $10::text::numeric,
    updated_at = NOW()
WHERE par_id = $11`,
			rec.Number, userID, rec.Date, rec.PAR.EntityName, rec.PAR.FundCluster, rec.PAR.Position,
			rec.PAR.Office, rec.PAR.IssuedBy, rec.PAR.Remarks, rec.Total.String(), id,
		)
		rows, err = tag.RowsAffected(), execErr
	default:
		return fmt.Errorf("documents: unknown kind %q", rec.Kind)
	}
	if err != nil {
		return translateWriteErr(rec, "update header", err)
	}
	if rows == 0 {
		return notFound(rec.Kind, id)
	}
	return nil
}

func (t *txRepo) DeleteItems(ctx context.Context, kind Kind, headerID int64) error {
	spec, err := specFor(kind)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, spec.items, spec.idCol), headerID); err != nil {
		return fmt.Errorf("delete %s: %w", spec.items, err)
	}
	return nil
}

func (t *txRepo) InsertItem(ctx context.Context, kind Kind, headerID int64, item Item) error {
	var err error
	switch kind {
	case KindPO:
		_, err = t.tx.Exec(ctx, `INSERT INTO po_items
    (po_id, line_no, description, unit, quantity, unit_cost, amount, property_number, date_acquired)
VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7::text::numeric, $8, $9::text::date)`,
			headerID, item.LineNo, item.Description, item.Unit, item.Quantity.String(), item.UnitCost.String(),
			item.Amount.String(), nullable(item.PropertyNumber), nullable(item.DateAcquired),
		)
	case KindPAR:
		_, err = t.tx.Exec(ctx, `INSERT INTO par_items
    (par_id, line_no, description, unit, quantity, amount, property_number, date_acquired)
VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7, $8::text::date)`,
			headerID, item.LineNo, item.Description, item.Unit, item.Quantity.String(), item.Amount.String(),
			nullable(item.PropertyNumber), item.DateAcquired,
		)
	default:
		return fmt.Errorf("documents: unknown kind %q", kind)
	}
	if err != nil {
		return fmt.Errorf("insert item %d: %w", item.LineNo, err)
	}
	return nil
}

func translateWriteErr(rec Record, op string, err error) error {
	if spec, ok := tables[rec.Kind]; ok && db.IsUniqueViolation(err, spec.constraint) {
		return &DuplicateKeyError{Kind: rec.Kind, Number: rec.Number}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetPO returns a purchase order with its items.
func (r *Repository) GetPO(ctx context.Context, id int64) (PODetails, error) {
	var (
		d     PODetails
		total string
	)
	err := r.pool.QueryRow(ctx, `SELECT po_id, po_no, supplier, supplier_address, tin,
    to_char(po_date, 'YYYY-MM-DD'), mode_of_procurement, place_of_delivery,
    to_char(date_of_delivery, 'YYYY-MM-DD'), delivery_term, payment_term, remarks, total_amount::text
FROM purchase_orders WHERE po_id = $1`, id).Scan(
		&d.POID, &d.PONo, &d.Supplier, &d.SupplierAddress, &d.TIN, &d.PODate, &d.ModeOfProcurement,
		&d.PlaceOfDelivery, &d.DateOfDelivery, &d.DeliveryTerm, &d.PaymentTerm, &d.Remarks, &total,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PODetails{}, notFound(KindPO, id)
	}
	if err != nil {
		return PODetails{}, fmt.Errorf("get purchase order: %w", err)
	}
	d.TotalAmount = NewMoney(decimalText(total))

	rows, err := r.pool.Query(ctx, `SELECT po_item_id, line_no, description, unit, quantity::text,
    unit_cost::text, amount::text, property_number, to_char(date_acquired, 'YYYY-MM-DD')
FROM po_items WHERE po_id = $1 ORDER BY line_no, po_item_id`, id)
	if err != nil {
		return PODetails{}, fmt.Errorf("list po items: %w", err)
	}
	defer rows.Close()
	d.Items = []POItemView{}
	for rows.Next() {
		var (
			item            POItemView
			qty, cost, amnt string
		)
		if err := rows.Scan(&item.POItemID, &item.LineNo, &item.Description, &item.Unit, &qty, &cost, &amnt,
			&item.PropertyNumber, &item.DateAcquired); err != nil {
			return PODetails{}, err
		}
		item.Quantity = NewQuantity(decimalText(qty))
		item.UnitCost = NewMoney(decimalText(cost))
		item.Amount = NewMoney(decimalText(amnt))
		d.Items = append(d.Items, item)
	}
	return d, rows.Err()
}

// GetPAR returns a receipt with its recipient and items.
func (r *Repository) GetPAR(ctx context.Context, id int64) (PARDetails, error) {
	var (
		d     PARDetails
		total string
	)
	err := r.pool.QueryRow(ctx, `SELECT p.par_id, p.par_no, p.user_id, u.full_name,
    to_char(p.par_date, 'YYYY-MM-DD'), p.entity_name, p.fund_cluster, p.position, p.office,
    p.issued_by, p.remarks, p.total_amount::text
FROM property_acknowledgement_receipts p
JOIN users u ON u.user_id = p.user_id
WHERE p.par_id = $1`, id).Scan(
		&d.PARID, &d.PARNo, &d.UserID, &d.ReceivedBy, &d.PARDate, &d.EntityName, &d.FundCluster,
		&d.Position, &d.Office, &d.IssuedBy, &d.Remarks, &total,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return PARDetails{}, notFound(KindPAR, id)
	}
	if err != nil {
		return PARDetails{}, fmt.Errorf("get receipt: %w", err)
	}
	d.TotalAmount = NewMoney(decimalText(total))

	rows, err := r.pool.Query(ctx, `SELECT par_item_id, line_no, description, unit, quantity::text,
    amount::text, property_number, to_char(date_acquired, 'YYYY-MM-DD')
FROM par_items WHERE par_id = $1 ORDER BY line_no, par_item_id`, id)
	if err != nil {
		return PARDetails{}, fmt.Errorf("list par items: %w", err)
	}
	defer rows.Close()
	d.Items = []PARItemView{}
	for rows.Next() {
		var (
			item      PARItemView
			qty, amnt string
		)
		if err := rows.Scan(&item.PARItemID, &item.LineNo, &item.Description, &item.Unit, &qty, &amnt,
			&item.PropertyNumber, &item.DateAcquired); err != nil {
			return PARDetails{}, err
		}
		item.Quantity = NewQuantity(decimalText(qty))
		item.Amount = NewMoney(decimalText(amnt))
		d.Items = append(d.Items, item)
	}
	return d, rows.Err()
}

// ListPOs returns purchase order summaries, newest first.
func (r *Repository) ListPOs(ctx context.Context, filter ListFilter) ([]POSummary, error) {
	filter = filter.normalize()
	rows, err := r.pool.Query(ctx, `SELECT h.po_id, h.po_no, h.supplier, to_char(h.po_date, 'YYYY-MM-DD'),
    h.total_amount::text, COUNT(i.po_item_id)
FROM purchase_orders h
LEFT JOIN po_items i ON i.po_id = h.po_id
WHERE $1::text = '' OR h.po_no ILIKE '%' || $1 || '%' OR h.supplier ILIKE '%' || $1 || '%'
GROUP BY h.po_id
ORDER BY h.po_date DESC, h.po_id DESC
LIMIT $2 OFFSET $3`, filter.Search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()
	out := []POSummary{}
	for rows.Next() {
		var (
			s     POSummary
			total string
		)
		if err := rows.Scan(&s.POID, &s.PONo, &s.Supplier, &s.PODate, &total, &s.ItemCount); err != nil {
			return nil, err
		}
		s.TotalAmount = NewMoney(decimalText(total))
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListPARs returns receipt summaries, optionally for one recipient.
func (r *Repository) ListPARs(ctx context.Context, filter ListFilter) ([]PARSummary, error) {
	filter = filter.normalize()
	rows, err := r.pool.Query(ctx, `SELECT p.par_id, p.par_no, p.user_id, u.full_name,
    to_char(p.par_date, 'YYYY-MM-DD'), p.total_amount::text, COUNT(i.par_item_id)
FROM property_acknowledgement_receipts p
JOIN users u ON u.user_id = p.user_id
LEFT JOIN par_items i ON i.par_id = p.par_id
WHERE ($1::bigint = 0 OR p.user_id = $1)
  AND ($2::text = '' OR p.par_no ILIKE '%' || $2 || '%' OR u.full_name ILIKE '%' || $2 || '%')
GROUP BY p.par_id, u.full_name
ORDER BY p.par_date DESC, p.par_id DESC
LIMIT $3 OFFSET $4`, filter.UserID, filter.Search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()
	out := []PARSummary{}
	for rows.Next() {
		var (
			s     PARSummary
			total string
		)
		if err := rows.Scan(&s.PARID, &s.PARNo, &s.UserID, &s.ReceivedBy, &s.PARDate, &total, &s.ItemCount); err != nil {
			return nil, err
		}
		s.TotalAmount = NewMoney(decimalText(total))
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListRecipients returns every recipient with the number of receipts issued to them.
func (r *Repository) ListRecipients(ctx context.Context) ([]Recipient, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.user_id, u.full_name, COUNT(p.par_id)
FROM users u
LEFT JOIN property_acknowledgement_receipts p ON p.user_id = u.user_id
GROUP BY u.user_id
ORDER BY u.full_name`)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()
	out := []Recipient{}
	for rows.Next() {
		var rc Recipient
		if err := rows.Scan(&rc.UserID, &rc.FullName, &rc.PARCount); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// RepairTotals rewrites every header of kind whose stored total differs from its item sum.
func (r *Repository) RepairTotals(ctx context.Context, kind Kind) (int64, error) {
	spec, err := specFor(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`WITH sums AS (
    SELECT h.%[2]s AS id, COALESCE(SUM(%[4]s), 0) AS total
    FROM %[1]s h
    LEFT JOIN %[3]s i ON i.%[2]s = h.%[2]s
    GROUP BY h.%[2]s
)
UPDATE %[1]s t SET total_amount = s.total, updated_at = NOW()
FROM sums s
WHERE t.%[2]s = s.id AND t.total_amount <> s.total`, spec.header, spec.idCol, spec.items, spec.lineTotal)

	var repaired int64
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query)
		if err != nil {
			return fmt.Errorf("repair %s totals: %w", spec.header, err)
		}
		repaired = tag.RowsAffected()
		return nil
	})
	return repaired, err
}

func decimalText(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
