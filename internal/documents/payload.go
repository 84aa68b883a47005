package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errInvalidID = errors.New("id must be a positive integer")

// Text accepts strings, numbers and booleans. null and composite values decode to "".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[', 'n':
		*t = ""
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) trimmed() string {
	return strings.TrimSpace(string(t))
}

// Number accepts JSON numbers and numeric strings. Everything else, and any
// value out of range, is zero.
type Number struct {
	value decimal.Decimal
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	n.value = decimal.Zero
	if len(data) == 0 {
		return nil
	}
	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n.value = parseNumber(s)
	case c == '-' || (c >= '0' && c <= '9'):
		if len(data) > maxNumberLen {
			return nil
		}
		if d, err := decimal.NewFromString(string(data)); err == nil {
			n.value = bounded(d)
		}
	}
	return nil
}

// Decimal returns the parsed value.
func (n Number) Decimal() decimal.Decimal {
	return n.value
}

// FlexibleID accepts an integer id as a number or a numeric string.
// null, "" and 0 mean absent.
type FlexibleID int64

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = 0
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fv, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || fv != math.Trunc(fv) || fv >= 1<<63 {
			return errInvalidID
		}
		id = int64(fv)
	}
	if id < 0 {
		return errInvalidID
	}
	*f = FlexibleID(id)
	return nil
}

// POPayload is the request body of the purchase order endpoints.
// The first four fields are required and checked in declaration order.
type POPayload struct {
	PONo     Text            `json:"po_no" validate:"nonblank"`
	Supplier Text            `json:"supplier" validate:"nonblank"`
	PODate   Text            `json:"po_date" validate:"nonblank"`
	Items    []POItemPayload `json:"items" validate:"required,min=1"`

	ID                FlexibleID `json:"id"`
	POID              FlexibleID `json:"po_id"`
	SupplierAddress   Text       `json:"supplier_address"`
	TIN               Text       `json:"tin"`
	ModeOfProcurement Text       `json:"mode_of_procurement"`
	PlaceOfDelivery   Text       `json:"place_of_delivery"`
	DateOfDelivery    Text       `json:"date_of_delivery"`
	DeliveryTerm      Text       `json:"delivery_term"`
	PaymentTerm       Text       `json:"payment_term"`
	Remarks           Text       `json:"remarks"`
	// TotalAmount is accepted but never persisted.
	TotalAmount Number `json:"total_amount"`
}

// POItemPayload is one purchase order line as sent by the client.
type POItemPayload struct {
	Description    Text   `json:"description"`
	Unit           Text   `json:"unit"`
	Quantity       Number `json:"quantity"`
	UnitCost       Number `json:"unit_cost"`
	Amount         Number `json:"amount"`
	PropertyNumber Text   `json:"property_number"`
	DateAcquired   Text   `json:"date_acquired"`
}

// PARPayload is the request body of the receipt endpoints.
type PARPayload struct {
	PARNo      Text             `json:"par_no" validate:"nonblank"`
	ReceivedBy Text             `json:"received_by" validate:"nonblank"`
	PARDate    Text             `json:"par_date" validate:"nonblank"`
	Items      []PARItemPayload `json:"items" validate:"required,min=1"`

	ID          FlexibleID `json:"id"`
	PARID       FlexibleID `json:"par_id"`
	EntityName  Text       `json:"entity_name"`
	FundCluster Text       `json:"fund_cluster"`
	Position    Text       `json:"position"`
	Office      Text       `json:"office"`
	IssuedBy    Text       `json:"issued_by"`
	Remarks     Text       `json:"remarks"`
	TotalAmount Number     `json:"total_amount"`
}

// PARItemPayload is one receipt line. Amount is the per-unit value.
type PARItemPayload struct {
	Description    Text   `json:"description"`
	Unit           Text   `json:"unit"`
	Quantity       Number `json:"quantity"`
	Amount         Number `json:"amount"`
	PropertyNumber Text   `json:"property_number"`
	DateAcquired   Text   `json:"date_acquired"`
}
