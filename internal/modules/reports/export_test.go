package reports

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/aristath/folio/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSV(t *testing.T) {
	f := newReportFixture(t)

	doc, err := f.svc.Export(f.alice, "investments", "", Query{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", doc.ContentType)
	assert.Equal(t, "folio-investments-2024-06-01.csv", doc.Filename)

	records, err := csv.NewReader(bytes.NewReader(doc.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Symbol", records[0][0])
	assert.Equal(t, "AAPL", records[1][0])
	assert.Equal(t, "1500.00", records[1][8])

	tx, err := f.svc.Export(f.alice, "transactions", FormatCSV, Query{From: "2024-01-01"})
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(tx.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "2024-01-15", rows[1][0], "transactions export oldest first")
}

func TestExportCSVSections(t *testing.T) {
	f := newReportFixture(t)

	doc, err := f.svc.Export(f.alice, "distribution", FormatCSV, Query{})
	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(doc.Body))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"By type"}, records[0])
	assert.Equal(t, []string{"Bucket", "Value", "Share", "Count"}, records[1])
	assert.Contains(t, string(doc.Body), "By sector")
	assert.Contains(t, string(doc.Body), "Unclassified")
}

func TestExportHTML(t *testing.T) {
	f := newReportFixture(t)

	doc, err := f.svc.Export(f.alice, "summary", FormatHTML, Query{PortfolioID: f.growth})
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", doc.ContentType)
	assert.True(t, strings.HasSuffix(doc.Filename, ".html"))

	body := string(doc.Body)
	assert.Contains(t, body, "<title>Performance Summary</title>")
	assert.Contains(t, body, "<h1>Performance Summary</h1>")
	assert.Contains(t, body, "<table>")
	assert.Contains(t, body, "€")
	assert.Contains(t, body, "AAPL")
}

func TestExportRejectsUnknownInput(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.Export(f.alice, "summary", "pdf", Query{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Export(f.alice, "nonsense", FormatCSV, Query{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Export(f.bob, "summary", FormatCSV, Query{PortfolioID: f.growth})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRenderCSVNeutralizesFormulas(t *testing.T) {
	body, err := renderCSV([]table{{
		header: []string{"Name", "Amount", "Note"},
		rows: [][]string{
			{`=HYPERLINK("http://evil.example","x")`, "-4400.00", "@SUM(A1:A2)"},
			{"+cmd|' /C calc'!A0", "+1", "-"},
			{"Apple", "12.50", ""},
		},
	}})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, `'=HYPERLINK("http://evil.example","x")`, records[1][0])
	assert.Equal(t, "-4400.00", records[1][1], "negative amounts stay numeric")
	assert.Equal(t, "'@SUM(A1:A2)", records[1][2])
	assert.Equal(t, "'+cmd|' /C calc'!A0", records[2][0])
	assert.Equal(t, "+1", records[2][1])
	assert.Equal(t, "'-", records[2][2])
	assert.Equal(t, []string{"Apple", "12.50", ""}, records[3])
}

func TestExportCSVNeutralizesUserText(t *testing.T) {
	f := newReportFixture(t)
	_, err := f.conn.Exec(`UPDATE investments SET name = '=1+1' WHERE symbol = 'AAPL'`)
	require.NoError(t, err)

	doc, err := f.svc.Export(f.alice, "investments", FormatCSV, Query{})
	require.NoError(t, err)
	assert.Contains(t, string(doc.Body), "'=1+1")
	assert.NotContains(t, string(doc.Body), ",=1+1")
}

func TestEscapeCell(t *testing.T) {
	assert.Equal(t, `a\|b`, escapeCell("a|b"))
	assert.Equal(t, "&lt;script&gt;", escapeCell("<script>"))
}

func TestMoneyFormatterFallsBack(t *testing.T) {
	assert.Equal(t, "12.35", moneyFormatter("XXXX")(12.345))
	assert.Equal(t, "12.30", plainAmount(12.3))
}
