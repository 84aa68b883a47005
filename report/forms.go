package report

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Palpita209/Palpita209-sub001/internal/documents"
)

//go:embed templates/*.html
var templateFS embed.FS

// Forms renders the printable document layouts.
type Forms struct {
	po  *template.Template
	par *template.Template
	loc *time.Location
	now func() time.Time
}

// NewForms parses the embedded templates.
func NewForms(loc *time.Location) (*Forms, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := &Forms{loc: loc, now: time.Now}
	funcs := template.FuncMap{
		"money":     formatMoney,
		"deref":     deref,
		"generated": func() string { return f.now().In(f.loc).Format("2006-01-02 15:04 MST") },
	}
	var err error
	if f.po, err = template.New("po.html").Funcs(funcs).ParseFS(templateFS, "templates/po.html", "templates/style.html"); err != nil {
		return nil, err
	}
	if f.par, err = template.New("par.html").Funcs(funcs).ParseFS(templateFS, "templates/par.html", "templates/style.html"); err != nil {
		return nil, err
	}
	return f, nil
}

// PO renders a purchase order form.
func (f *Forms) PO(po documents.PODetails) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.po.Execute(&buf, po); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PAR renders a property acknowledgement receipt.
func (f *Forms) PAR(par documents.PARDetails) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.par.Execute(&buf, par); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var printer = message.NewPrinter(language.English)

// formatMoney groups thousands and fixes two decimals: 48500 -> "48,500.00".
func formatMoney(m documents.Money) string {
	fixed := m.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return sign + fixed
	}
	return sign + printer.Sprintf("%d", n) + "." + frac
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
