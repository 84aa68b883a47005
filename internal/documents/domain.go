package documents

import (
	"github.com/shopspring/decimal"
)

// Kind identifies a document family.
type Kind string

const (
	KindPO  Kind = "PO"
	KindPAR Kind = "PAR"
)

// Label is the human readable name used in messages.
func (k Kind) Label() string {
	switch k {
	case KindPO:
		return "purchase order"
	case KindPAR:
		return "property acknowledgement receipt"
	default:
		return "document"
	}
}

// NumberField is the JSON name of the natural key.
func (k Kind) NumberField() string {
	if k == KindPAR {
		return "par_no"
	}
	return "po_no"
}

// IDField is the JSON name of the surrogate key.
func (k Kind) IDField() string {
	if k == KindPAR {
		return "par_id"
	}
	return "po_id"
}

// Scope is the lowercase name used for cache scopes and metrics.
func (k Kind) Scope() string {
	if k == KindPAR {
		return "par"
	}
	return "po"
}

// ItemPolicy decides what happens to line items without a description.
type ItemPolicy int

const (
	// PolicyReject fails the whole request.
	PolicyReject ItemPolicy = iota
	// PolicySkip drops the offending rows.
	PolicySkip
)

// Item is one normalized line item.
type Item struct {
	LineNo         int
	Description    string
	Unit           string
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	Amount         decimal.Decimal
	PropertyNumber string
	DateAcquired   string
}

// LineTotal is the item's contribution to the header total.
// PO lines price quantity by unit cost, PAR lines by their flat amount.
func (i Item) LineTotal(kind Kind) decimal.Decimal {
	if kind == KindPAR {
		return i.Quantity.Mul(i.Amount)
	}
	return i.Quantity.Mul(i.UnitCost)
}

// POTerms holds the descriptive purchase order columns.
type POTerms struct {
	SupplierAddress   string
	TIN               string
	ModeOfProcurement string
	PlaceOfDelivery   string
	DateOfDelivery    string
	DeliveryTerm      string
	PaymentTerm       string
	Remarks           string
}

// PARTerms holds the descriptive receipt columns.
type PARTerms struct {
	EntityName  string
	FundCluster string
	Position    string
	Office      string
	IssuedBy    string
	Remarks     string
}

// Record is a validated document ready to be written.
type Record struct {
	Kind         Kind
	Number       string
	Counterparty string
	Date         string
	PO           POTerms
	PAR          PARTerms
	Items        []Item
	Total        decimal.Decimal
}

// ComputeTotal sums the line totals of the record's items.
func (r Record) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.LineTotal(r.Kind))
	}
	return total
}

// Result describes a committed write.
type Result struct {
	Kind    Kind
	ID      int64
	UserID  int64
	Number  string
	Total   decimal.Decimal
	Created bool
	Items   int
}
