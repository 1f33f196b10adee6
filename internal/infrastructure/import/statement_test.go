package csvimport

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestReadStatement_CommaSeparated(t *testing.T) {
	csv := "external_id,date,amount,type,description\n" +
		"tx-1,2026-09-01,150.00,C,Deposit\n" +
		"tx-2,2026-09-02,-42.10,,Fee\n" +
		"\n"

	st, err := ReadStatement(strings.NewReader(csv))
	require.NoError(t, err)
	assert.False(t, st.Errors.HasErrors())
	require.Len(t, st.Lines, 2)

	assert.Equal(t, "tx-1", st.Lines[0].ExternalID)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), st.Lines[0].Date)
	assert.True(t, decimal.RequireFromString("150").Equal(st.Lines[0].Amount))
	assert.Equal(t, "INCOME", st.Lines[0].Type)
	assert.Equal(t, "Deposit", st.Lines[0].Description)

	assert.Empty(t, st.Lines[1].Type)
	assert.True(t, decimal.RequireFromString("-42.10").Equal(st.Lines[1].Amount))
	assert.Equal(t, 3, st.Lines[1].Row)
}

func TestReadStatement_BrazilianExport(t *testing.T) {
	csv := "Documento;Data;Histórico;Valor;Tipo\n" +
		"000123;05/09/2026;TED RECEBIDA;1.234,56;Crédito\n" +
		"000124;06/09/2026;TARIFA;R$ 12,90;D\n"
	latin1, err := charmap.Windows1252.NewEncoder().String(csv)
	require.NoError(t, err)

	st, err := ReadStatement(strings.NewReader(latin1))
	require.NoError(t, err)
	require.False(t, st.Errors.HasErrors(), st.Errors.Errors())
	require.Len(t, st.Lines, 2)

	assert.Equal(t, "000123", st.Lines[0].ExternalID)
	assert.Equal(t, "TED RECEBIDA", st.Lines[0].Description)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(st.Lines[0].Amount))
	assert.Equal(t, "INCOME", st.Lines[0].Type)
	assert.Equal(t, time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), st.Lines[0].Date)
	assert.Equal(t, "EXPENSE", st.Lines[1].Type)
	assert.True(t, decimal.RequireFromString("12.90").Equal(st.Lines[1].Amount))
}

func TestReadStatement_RowErrors(t *testing.T) {
	csv := "id,date,amount\n" +
		"a,2026-09-01,10\n" +
		"a,2026-09-01,10\n" +
		",2026-09-01,10\n" +
		"b,yesterday,10\n" +
		"c,2026-09-01,ten\n" +
		"d,2026-09-03,7.5\n"

	st, err := ReadStatement(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, st.Lines, 2)
	assert.Equal(t, "d", st.Lines[1].ExternalID)

	codes := map[string]int{}
	for _, e := range st.Errors.Errors() {
		codes[e.Code]++
	}
	assert.Equal(t, map[string]int{
		ErrCodeDuplicate:     1,
		ErrCodeRequiredField: 1,
		ErrCodeInvalidFormat: 2,
	}, codes)
}

func TestReadStatement_FileErrors(t *testing.T) {
	_, err := ReadStatement(strings.NewReader("  \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = ReadStatement(strings.NewReader("id,date,amount\n"))
	assert.ErrorIs(t, err, ErrNoDataRows)

	st, err := ReadStatement(strings.NewReader("id,when\nx,2026-01-01\n"))
	require.NoError(t, err)
	require.Equal(t, 2, st.Errors.TotalCount())
	assert.Equal(t, "date", st.Errors.Errors()[0].Column)
	assert.Equal(t, "amount", st.Errors.Errors()[1].Column)
}

func TestParseAmount(t *testing.T) {
	for in, want := range map[string]string{
		"1234.56":  "1234.56",
		"1,234.56": "1234.56",
		"1.234,56": "1234.56",
		"-10,00":   "-10",
		"(10.00)":  "-10",
		"R$ 5,00":  "5",
		"1 000,25": "1000.25",
		"0.5":      "0.5",
	} {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "%s => %s", in, got)
	}
	_, err := ParseAmount("abc")
	assert.Error(t, err)
}

func TestNewCSVParser_DetectsDelimiterAndBOM(t *testing.T) {
	p, err := NewCSVParser(strings.NewReader("\xEF\xBB\xBFid;date;amount\n1;2026-01-01;1\n"))
	require.NoError(t, err)
	assert.Equal(t, ';', p.Delimiter())
	assert.False(t, p.Latin1())
	require.NoError(t, p.ParseHeader())
	assert.Equal(t, []string{"id", "date", "amount"}, p.Headers())

	p, err = NewCSVParser(strings.NewReader("id;date;amount\n"), WithDelimiter(','))
	require.NoError(t, err)
	assert.Equal(t, ',', p.Delimiter())
}
