package csvimport

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Accepted header names, English first then the Portuguese exports
var (
	idColumns          = []string{"external_id", "id", "fitid", "documento", "document"}
	dateColumns        = []string{"date", "data", "data lançamento", "data lancamento"}
	amountColumns      = []string{"amount", "valor"}
	typeColumns        = []string{"type", "tipo"}
	descriptionColumns = []string{"description", "descrição", "descricao", "histórico", "historico"}

	dateLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02T15:04:05Z07:00", "02/01/2006 15:04"}
)

// StatementLine is one parsed statement record. Type is INCOME, EXPENSE or
// empty when the file does not say; the sign of Amount decides then.
type StatementLine struct {
	Row         int             `json:"row"`
	ExternalID  string          `json:"external_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Statement is the result of reading a file. Rows with errors are left out
// of Lines.
type Statement struct {
	Lines  []StatementLine
	Errors *ErrorCollection
}

// ReadStatement parses a statement export. File level problems are returned
// as errors; row level problems are collected in Statement.Errors.
func ReadStatement(r io.Reader, opts ...ParserOption) (*Statement, error) {
	p, err := NewCSVParser(r, opts...)
	if err != nil {
		return nil, err
	}
	if err := p.ParseHeader(); err != nil {
		return nil, err
	}

	idCol, okID := p.Column(idColumns...)
	dateCol, okDate := p.Column(dateColumns...)
	amountCol, okAmount := p.Column(amountColumns...)
	errs := NewErrorCollection(0)
	for _, c := range []struct {
		name    string
		present bool
	}{{"external_id", okID}, {"date", okDate}, {"amount", okAmount}} {
		if !c.present {
			errs.Add(NewRowError(1, c.name, ErrCodeRequiredField, "missing column '"+c.name+"'"))
		}
	}
	if errs.HasErrors() {
		return &Statement{Errors: errs}, nil
	}
	typeCol, _ := p.Column(typeColumns...)
	descCol, _ := p.Column(descriptionColumns...)

	st := &Statement{Errors: errs}
	seen := make(map[string]int)
	for {
		row, err := p.ReadRow()
		if err == io.EOF {
			break
		}
		var rowErr RowError
		if errors.As(err, &rowErr) {
			errs.Add(rowErr)
			continue
		}
		if err != nil {
			return nil, err
		}
		if row.IsEmpty() {
			continue
		}

		line := StatementLine{Row: row.Line, ExternalID: row.Get(idCol), Description: row.Get(descCol)}
		valid := true
		if line.ExternalID == "" {
			errs.addRequired(row.Line, idCol)
			valid = false
		} else if first, dup := seen[line.ExternalID]; dup {
			e := NewRowError(row.Line, idCol, ErrCodeDuplicate, "id already used on row "+strconv.Itoa(first))
			e.Value = line.ExternalID
			errs.Add(e)
			valid = false
		} else {
			seen[line.ExternalID] = row.Line
		}

		if raw := row.Get(dateCol); raw == "" {
			errs.addRequired(row.Line, dateCol)
			valid = false
		} else if line.Date, err = ParseDate(raw); err != nil {
			errs.addFormat(row.Line, dateCol, "YYYY-MM-DD or DD/MM/YYYY", raw)
			valid = false
		}

		if raw := row.Get(amountCol); raw == "" {
			errs.addRequired(row.Line, amountCol)
			valid = false
		} else if line.Amount, err = ParseAmount(raw); err != nil {
			errs.addFormat(row.Line, amountCol, "a decimal amount", raw)
			valid = false
		}

		if typeCol != "" {
			t, ok := parseDirection(row.Get(typeCol))
			if !ok {
				errs.addFormat(row.Line, typeCol, "C, D, INCOME or EXPENSE", row.Get(typeCol))
				valid = false
			}
			line.Type = t
		}

		if valid {
			st.Lines = append(st.Lines, line)
		}
	}
	if len(st.Lines) == 0 && !errs.HasErrors() {
		return nil, ErrNoDataRows
	}
	return st, nil
}

// ParseDate reads the date layouts banks export
func ParseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// ParseAmount reads "1234.56", "1.234,56", "-10,00", "(10.00)" and "R$ 5,00".
// When both separators appear the last one is the decimal point.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, " ", "")

	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot > comma && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func parseDirection(s string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "C", "CREDIT", "CREDITO", "CRÉDITO", "INCOME":
		return "INCOME", true
	case "D", "DEBIT", "DEBITO", "DÉBITO", "EXPENSE":
		return "EXPENSE", true
	}
	return "", false
}
