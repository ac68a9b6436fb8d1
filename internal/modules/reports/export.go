package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/aristath/folio/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatHTML = "html"
)

// ExportKinds lists the reports that can be exported.
var ExportKinds = []string{"summary", "investments", "transactions", "distribution", "monthly", "yearly"}

// Document is a rendered export ready to be sent as an attachment.
type Document struct {
	ContentType string
	Filename    string
	Body        []byte
}

// table is the format-neutral shape of an export: one or more titled sections.
type table struct {
	title  string
	header []string
	rows   [][]string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Export renders report kind for userID as CSV or printable HTML.
func (s *Service) Export(userID, kind, format string, q Query) (*Document, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatHTML {
		return nil, domain.NewValidationError("format", "must be csv or html")
	}

	currency := "EUR"
	if q.PortfolioID != "" {
		p, err := s.checkPortfolio(userID, q)
		if err != nil {
			return nil, err
		}
		currency = p.Currency
	}
	m := moneyFormatter(currency)
	if format == FormatCSV {
		m = plainAmount
	}

	title, tables, err := s.exportTables(userID, kind, q, m)
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format(domain.DateLayout)
	filename := fmt.Sprintf("folio-%s-%s.%s", kind, stamp, format)
	if format == FormatCSV {
		body, err := renderCSV(tables)
		if err != nil {
			return nil, err
		}
		return &Document{ContentType: "text/csv; charset=utf-8", Filename: filename, Body: body}, nil
	}

	body, err := renderHTML(title, stamp, tables)
	if err != nil {
		return nil, err
	}
	return &Document{ContentType: "text/html; charset=utf-8", Filename: filename, Body: body}, nil
}

func (s *Service) exportTables(userID, kind string, q Query, m func(float64) string) (string, []table, error) {
	switch kind {
	case "summary":
		r, err := s.Summary(userID, q)
		if err != nil {
			return "", nil, err
		}
		t := table{title: "Totals", header: []string{"Metric", "Value"}, rows: [][]string{
			{"Portfolios", strconv.Itoa(r.PortfolioCount)},
			{"Investments", strconv.Itoa(r.InvestmentCount)},
			{"Total cost", m(r.TotalCost)},
			{"Current value", m(r.CurrentValue)},
			{"Gain/loss", m(r.GainLoss)},
			{"Gain/loss %", pct(r.GainLossPct)},
			{"Realized gain", m(r.RealizedGain)},
			{"Dividends", m(r.Dividends)},
			{"Total return", m(r.TotalReturn)},
			{"Total return %", pct(r.TotalReturnPct)},
		}}
		return "Performance Summary", []table{
			t,
			performerTable("Top performers", r.TopPerformers, m),
			performerTable("Worst performers", r.WorstPerformers, m),
		}, nil

	case "investments":
		views, err := s.Investments(userID, q)
		if err != nil {
			return "", nil, err
		}
		t := table{title: "Investments", header: []string{
			"Symbol", "Name", "Type", "Sector", "Quantity", "Average cost", "Current price",
			"Total cost", "Current value", "Gain/loss", "Gain/loss %",
		}}
		for _, v := range views {
			t.rows = append(t.rows, []string{
				v.Symbol, v.Name, string(v.Type), v.Sector, qty(v.Quantity), m(v.AverageCost), m(v.CurrentPrice),
				m(v.TotalCost), m(v.CurrentValue), m(v.GainLoss), pct(v.GainLossPct),
			})
		}
		return "Investments", []table{t}, nil

	case "transactions":
		entries, err := s.Transactions(userID, q)
		if err != nil {
			return "", nil, err
		}
		t := table{title: "Transactions", header: []string{
			"Date", "Symbol", "Type", "Quantity", "Price", "Fees", "Amount", "Notes",
		}}
		for _, e := range entries {
			t.rows = append(t.rows, []string{
				e.TransactionDate, e.Symbol, string(e.Type), qty(e.Quantity), m(e.Price), m(e.Fees),
				m(e.Transaction.Amount()), e.Notes,
			})
		}
		return "Transactions", []table{t}, nil

	case "distribution":
		r, err := s.Distribution(userID, q)
		if err != nil {
			return "", nil, err
		}
		return "Distribution", []table{
			bucketTable("By type", r.ByType, m),
			bucketTable("By portfolio", r.ByPortfolio, m),
			bucketTable("By sector", r.BySector, m),
		}, nil

	case "monthly":
		r, err := s.Monthly(userID, q)
		if err != nil {
			return "", nil, err
		}
		periods := append(append([]Period{}, r.Months...), r.Total)
		return fmt.Sprintf("Monthly Rollup %d", r.Year), []table{periodTable("Months", periods, m)}, nil

	case "yearly":
		r, err := s.Yearly(userID, q)
		if err != nil {
			return "", nil, err
		}
		return "Yearly Rollup", []table{periodTable("Years", r.Years, m)}, nil
	}
	return "", nil, domain.NewValidationError("kind", "must be one of %s", strings.Join(ExportKinds, ", "))
}

func performerTable(title string, performers []Performer, m func(float64) string) table {
	t := table{title: title, header: []string{"Symbol", "Name", "Current value", "Gain/loss", "Gain/loss %"}}
	for _, p := range performers {
		t.rows = append(t.rows, []string{p.Symbol, p.Name, m(p.CurrentValue), m(p.GainLoss), pct(p.GainLossPct)})
	}
	return t
}

func bucketTable(title string, buckets []Bucket, m func(float64) string) table {
	t := table{title: title, header: []string{"Bucket", "Value", "Share", "Count"}}
	for _, b := range buckets {
		t.rows = append(t.rows, []string{b.Label, m(b.Value), pct(b.Percentage), strconv.Itoa(b.Count)})
	}
	return t
}

func periodTable(title string, periods []Period, m func(float64) string) table {
	t := table{title: title, header: []string{
		"Period", "Buys", "Sells", "Dividends", "Fees", "Net flow", "Transactions", "End value",
	}}
	for _, p := range periods {
		label := strconv.Itoa(p.Year)
		if p.Month > 0 {
			label = fmt.Sprintf("%04d-%02d", p.Year, p.Month)
		} else if title == "Months" {
			label = "Total"
		}
		t.rows = append(t.rows, []string{
			label, m(p.Buys), m(p.Sells), m(p.Dividends), m(p.Fees), m(p.NetFlow),
			strconv.Itoa(p.TransactionCount), m(p.EndValue),
		})
	}
	return t
}

// neutralizeFormulas prefixes text cells that a spreadsheet would evaluate as a
// formula with a single quote. Numbers, including negative ones, are kept.
func neutralizeFormulas(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = cell
		if cell == "" || !strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			continue
		}
		out[i] = "'" + cell
	}
	return out
}

// renderCSV writes the tables one after another, separated by a blank line.
// Multi-section exports start each section with its title row.
func renderCSV(tables []table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for i, t := range tables {
		if len(tables) > 1 {
			if i > 0 {
				if err := w.Write([]string{""}); err != nil {
					return nil, err
				}
			}
			if err := w.Write([]string{t.title}); err != nil {
				return nil, err
			}
		}
		if err := w.Write(t.header); err != nil {
			return nil, err
		}
		for _, row := range t.rows {
			if err := w.Write(neutralizeFormulas(row)); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-bottom: 1.5rem; width: 100%%; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; font-size: 0.9rem; }
th { background: #f3f3f3; }
@media print { body { margin: 0; } h2 { page-break-after: avoid; } table { page-break-inside: auto; } }
</style>
</head>
<body>
%s</body>
</html>
`

// renderHTML builds a markdown document and converts it to a printable page.
func renderHTML(title, date string, tables []table) ([]byte, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\nGenerated %s\n\n", escapeCell(title), date)
	for _, t := range tables {
		fmt.Fprintf(&md, "## %s\n\n", escapeCell(t.title))
		if len(t.rows) == 0 {
			md.WriteString("No data.\n\n")
			continue
		}
		writeRow(&md, t.header)
		seps := make([]string, len(t.header))
		for i := range seps {
			seps[i] = "---"
		}
		writeRow(&md, seps)
		for _, row := range t.rows {
			writeRow(&md, row)
		}
		md.WriteString("\n")
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md.String()), &body); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return []byte(fmt.Sprintf(htmlPage, html.EscapeString(title), body.String())), nil
}

func writeRow(b *strings.Builder, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = escapeCell(c)
	}
	b.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
}

var cellEscaper = strings.NewReplacer(
	"|", `\|`, "\n", " ", "<", "&lt;", ">", "&gt;", "*", `\*`, "_", `\_`, "`", "\\`",
)

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}

// moneyFormatter formats amounts in the given currency, falling back to plain
// numbers for codes go-money does not know.
func moneyFormatter(code string) func(float64) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return plainAmount
	}
	factor := decimal.New(1, int32(cur.Fraction))
	return func(v float64) string {
		minor := domain.Dec(v).Mul(factor).Round(0).IntPart()
		return money.New(minor, cur.Code).Display()
	}
}

func plainAmount(v float64) string {
	return strconv.FormatFloat(domain.RoundMoney(v), 'f', 2, 64)
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func qty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
