package documents

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// Submission is the outcome of normalizing a request body.
type Submission struct {
	Record   Record
	TargetID int64
	// Dropped lists the 1-based positions removed under PolicySkip.
	Dropped []int
}

// Normalizer turns raw request bodies into records.
type Normalizer struct {
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
}

// NewNormalizer builds a Normalizer whose "today" fallback uses loc.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(fmt.Sprintf("documents: register nonblank validation: %v", err))
	}
	return &Normalizer{validate: v, loc: loc, now: time.Now}
}

// WithClock overrides the clock used for date fallbacks.
func (n *Normalizer) WithClock(now func() time.Time) {
	if now != nil {
		n.now = now
	}
}

// Normalize decodes raw as a document of the given kind, checks required
// fields, applies the item policy and coerces dates and numbers.
func (n *Normalizer) Normalize(kind Kind, raw []byte, policy ItemPolicy) (Submission, error) {
	switch kind {
	case KindPO:
		return n.normalizePO(raw, policy)
	case KindPAR:
		return n.normalizePAR(raw, policy)
	default:
		return Submission{}, fmt.Errorf("documents: unknown kind %q", kind)
	}
}

func (n *Normalizer) normalizePO(raw []byte, policy ItemPolicy) (Submission, error) {
	var p POPayload
	if err := n.decode(raw, &p); err != nil {
		return Submission{}, err
	}
	target, err := resolveTarget(KindPO, p.ID, p.POID)
	if err != nil {
		return Submission{}, err
	}
	descriptions := make([]Text, len(p.Items))
	for i, it := range p.Items {
		descriptions[i] = it.Description
	}
	keep, dropped, err := applyPolicy(descriptions, policy)
	if err != nil {
		return Submission{}, err
	}

	date := dateOr(string(p.PODate), n.today())
	delivery, _ := parseDate(string(p.DateOfDelivery))
	rec := Record{
		Kind:         KindPO,
		Number:       p.PONo.trimmed(),
		Counterparty: p.Supplier.trimmed(),
		Date:         date,
		PO: POTerms{
			SupplierAddress:   p.SupplierAddress.trimmed(),
			TIN:               p.TIN.trimmed(),
			ModeOfProcurement: p.ModeOfProcurement.trimmed(),
			PlaceOfDelivery:   p.PlaceOfDelivery.trimmed(),
			DateOfDelivery:    delivery,
			DeliveryTerm:      p.DeliveryTerm.trimmed(),
			PaymentTerm:       p.PaymentTerm.trimmed(),
			Remarks:           p.Remarks.trimmed(),
		},
	}
	for _, idx := range keep {
		it := p.Items[idx]
		acquired := ""
		if it.DateAcquired.trimmed() != "" {
			acquired = dateOr(string(it.DateAcquired), date)
		}
		qty, cost := it.Quantity.Decimal(), it.UnitCost.Decimal()
		rec.Items = append(rec.Items, Item{
			LineNo:         len(rec.Items) + 1,
			Description:    it.Description.trimmed(),
			Unit:           it.Unit.trimmed(),
			Quantity:       qty,
			UnitCost:       cost,
			Amount:         qty.Mul(cost),
			PropertyNumber: it.PropertyNumber.trimmed(),
			DateAcquired:   acquired,
		})
	}
	rec.Total = rec.ComputeTotal()
	return Submission{Record: rec, TargetID: target, Dropped: dropped}, nil
}

func (n *Normalizer) normalizePAR(raw []byte, policy ItemPolicy) (Submission, error) {
	var p PARPayload
	if err := n.decode(raw, &p); err != nil {
		return Submission{}, err
	}
	target, err := resolveTarget(KindPAR, p.ID, p.PARID)
	if err != nil {
		return Submission{}, err
	}
	descriptions := make([]Text, len(p.Items))
	for i, it := range p.Items {
		descriptions[i] = it.Description
	}
	keep, dropped, err := applyPolicy(descriptions, policy)
	if err != nil {
		return Submission{}, err
	}

	date := dateOr(string(p.PARDate), n.today())
	rec := Record{
		Kind:         KindPAR,
		Number:       p.PARNo.trimmed(),
		Counterparty: RecipientName(string(p.ReceivedBy)),
		Date:         date,
		PAR: PARTerms{
			EntityName:  p.EntityName.trimmed(),
			FundCluster: p.FundCluster.trimmed(),
			Position:    p.Position.trimmed(),
			Office:      p.Office.trimmed(),
			IssuedBy:    p.IssuedBy.trimmed(),
			Remarks:     p.Remarks.trimmed(),
		},
	}
	for _, idx := range keep {
		it := p.Items[idx]
		rec.Items = append(rec.Items, Item{
			LineNo:         len(rec.Items) + 1,
			Description:    it.Description.trimmed(),
			Unit:           it.Unit.trimmed(),
			Quantity:       it.Quantity.Decimal(),
			Amount:         it.Amount.Decimal(),
			PropertyNumber: it.PropertyNumber.trimmed(),
			DateAcquired:   dateOr(string(it.DateAcquired), date),
		})
	}
	rec.Total = rec.ComputeTotal()
	return Submission{Record: rec, TargetID: target, Dropped: dropped}, nil
}

// decode unmarshals raw into dest and reports the first missing required field.
func (n *Normalizer) decode(raw []byte, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		if errors.Is(err, errInvalidID) {
			return malformed(errInvalidID.Error())
		}
		return malformed("malformed JSON request body")
	}
	if err := n.validate.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return missingField(fieldErrs[0].Field())
		}
		return malformed(err.Error())
	}
	return nil
}

func (n *Normalizer) today() string {
	return n.now().In(n.loc).Format(dateLayout)
}

// RecipientName is the canonical form used for find-or-create lookups.
func RecipientName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func resolveTarget(kind Kind, id, alias FlexibleID) (int64, error) {
	if id != 0 && alias != 0 && id != alias {
		return 0, malformed("conflicting id and " + kind.IDField())
	}
	if id != 0 {
		return int64(id), nil
	}
	return int64(alias), nil
}

// applyPolicy returns the indices of the items to keep and the 1-based
// positions dropped.
func applyPolicy(descriptions []Text, policy ItemPolicy) ([]int, []int, error) {
	var keep, blank []int
	for i, d := range descriptions {
		if d.trimmed() == "" {
			blank = append(blank, i+1)
			continue
		}
		keep = append(keep, i)
	}
	if len(blank) == 0 {
		return keep, nil, nil
	}
	if policy == PolicyReject || len(keep) == 0 {
		return nil, nil, invalidItems(blank)
	}
	return keep, blank, nil
}
