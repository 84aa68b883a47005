package documents

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal rendered as an unquoted JSON number with at least two decimals.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (m Money) MarshalJSON() ([]byte, error) {
	s := m.String()
	if dot := strings.IndexByte(s, '.'); dot < 0 || len(s)-dot-1 < 2 {
		s = m.StringFixed(2)
	}
	return []byte(s), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	m.Decimal = d
	return nil
}

// Quantity is a decimal rendered as an unquoted JSON number.
type Quantity struct {
	decimal.Decimal
}

// NewQuantity wraps d.
func NewQuantity(d decimal.Decimal) Quantity {
	return Quantity{Decimal: d}
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	q.Decimal = d
	return nil
}

// SaveResponse is the envelope returned by the save and update endpoints.
type SaveResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	POID         *int64 `json:"po_id,omitempty"`
	PARID        *int64 `json:"par_id,omitempty"`
	UserID       *int64 `json:"user_id,omitempty"`
	TotalAmount  *Money `json:"total_amount,omitempty"`
	InvalidItems []int  `json:"invalid_items,omitempty"`
}

// FormatSuccess maps a committed write into the response envelope.
func FormatSuccess(res Result) SaveResponse {
	verb := "updated"
	if res.Created {
		verb = "saved"
	}
	id := res.ID
	total := NewMoney(res.Total)
	out := SaveResponse{
		Success:     true,
		Message:     capitalize(res.Kind.Label()) + " " + verb + " successfully",
		TotalAmount: &total,
	}
	if res.Kind == KindPAR {
		userID := res.UserID
		out.PARID = &id
		out.UserID = &userID
	} else {
		out.POID = &id
	}
	return out
}

// FormatError maps a failure into a status code and envelope. Validation
// failures keep status 200; everything below the validator is a 500.
// Persistence messages are replaced unless verbose is set.
func FormatError(kind Kind, err error, verbose bool) (int, SaveResponse) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusOK, SaveResponse{Message: verr.Error(), InvalidItems: verr.Indices}
	}
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return http.StatusInternalServerError, SaveResponse{Message: dup.Error()}
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusInternalServerError, SaveResponse{Message: err.Error()}
	}
	msg := "failed to save " + kind.Label()
	if verbose && err != nil {
		msg += ": " + err.Error()
	}
	return http.StatusInternalServerError, SaveResponse{Message: msg}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
