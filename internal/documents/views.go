package documents

// PODetails is the raw purchase order record served by /api/po/details.
type PODetails struct {
	POID              int64        `json:"po_id"`
	PONo              string       `json:"po_no"`
	Supplier          string       `json:"supplier"`
	SupplierAddress   string       `json:"supplier_address"`
	TIN               string       `json:"tin"`
	PODate            string       `json:"po_date"`
	ModeOfProcurement string       `json:"mode_of_procurement"`
	PlaceOfDelivery   string       `json:"place_of_delivery"`
	DateOfDelivery    *string      `json:"date_of_delivery"`
	DeliveryTerm      string       `json:"delivery_term"`
	PaymentTerm       string       `json:"payment_term"`
	Remarks           string       `json:"remarks"`
	TotalAmount       Money        `json:"total_amount"`
	Items             []POItemView `json:"items"`
}

// POItemView is a stored purchase order line.
type POItemView struct {
	POItemID       int64    `json:"po_item_id"`
	LineNo         int      `json:"line_no"`
	Description    string   `json:"description"`
	Unit           string   `json:"unit"`
	Quantity       Quantity `json:"quantity"`
	UnitCost       Money    `json:"unit_cost"`
	Amount         Money    `json:"amount"`
	PropertyNumber *string  `json:"property_number"`
	DateAcquired   *string  `json:"date_acquired"`
}

// POSummary is one row of /api/po/list.
type POSummary struct {
	POID        int64  `json:"po_id"`
	PONo        string `json:"po_no"`
	Supplier    string `json:"supplier"`
	PODate      string `json:"po_date"`
	TotalAmount Money  `json:"total_amount"`
	ItemCount   int    `json:"item_count"`
}

// PARDetails is a receipt with its items.
type PARDetails struct {
	PARID       int64         `json:"par_id"`
	PARNo       string        `json:"par_no"`
	UserID      int64         `json:"user_id"`
	ReceivedBy  string        `json:"received_by"`
	PARDate     string        `json:"par_date"`
	EntityName  string        `json:"entity_name"`
	FundCluster string        `json:"fund_cluster"`
	Position    string        `json:"position"`
	Office      string        `json:"office"`
	IssuedBy    string        `json:"issued_by"`
	Remarks     string        `json:"remarks"`
	TotalAmount Money         `json:"total_amount"`
	Items       []PARItemView `json:"items"`
}

// PARItemView is a stored receipt line.
type PARItemView struct {
	PARItemID      int64    `json:"par_item_id"`
	LineNo         int      `json:"line_no"`
	Description    string   `json:"description"`
	Unit           string   `json:"unit"`
	Quantity       Quantity `json:"quantity"`
	Amount         Money    `json:"amount"`
	PropertyNumber *string  `json:"property_number"`
	DateAcquired   string   `json:"date_acquired"`
}

// PARSummary is one row of /api/par/list.
type PARSummary struct {
	PARID       int64  `json:"par_id"`
	PARNo       string `json:"par_no"`
	UserID      int64  `json:"user_id"`
	ReceivedBy  string `json:"received_by"`
	PARDate     string `json:"par_date"`
	TotalAmount Money  `json:"total_amount"`
	ItemCount   int    `json:"item_count"`
}

// Recipient is a row of the users table.
type Recipient struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	PARCount int    `json:"par_count"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListFilter narrows the summary listings.
type ListFilter struct {
	Search string
	UserID int64
	Limit  int
	Offset int
}

func (f ListFilter) normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
