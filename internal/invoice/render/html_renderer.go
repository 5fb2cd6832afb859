package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.Number}}</title>
  <style>
    :root { --primary: {{.Studio.PrimaryColor}}; }
    body { margin: 0; padding: 40px; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; color: #1a1f36; background: #f7f9fc; }
    .card { background: #fff; max-width: 760px; margin: 0 auto; padding: 60px; border-radius: 4px; }
    .header, .meta { display: flex; justify-content: space-between; margin-bottom: 40px; }
    .label { font-size: 11px; text-transform: uppercase; color: #8792a2; margin-bottom: 6px; font-weight: 600; }
    .value { font-size: 14px; line-height: 1.5; }
    .status { color: var(--primary); font-weight: 600; }
    .amount { font-size: 32px; font-weight: 700; margin-bottom: 40px; }
    table { width: 100%; border-collapse: collapse; margin-bottom: 30px; }
    th { text-align: left; font-size: 11px; color: #8792a2; border-bottom: 1px solid #e3e8ee; padding: 10px 0; }
    td { padding: 14px 0; border-bottom: 1px solid #e3e8ee; font-size: 14px; }
    .r { text-align: right; }
    .totals { margin-left: auto; width: 260px; }
    .row { display: flex; justify-content: space-between; padding: 6px 0; font-size: 14px; }
    .final { border-top: 1px solid #e3e8ee; font-weight: 700; }
    .notes { margin-top: 40px; font-size: 12px; color: #8792a2; }
  </style>
</head>
<body>
  <div class="card">
    <div class="header">
      <div>
        <h1>Invoice</h1>
        <div class="label">Invoice number</div>
        <div class="value">{{.Invoice.Number}}</div>
      </div>
      <div class="value"><strong>{{.Studio.Name}}</strong><br>{{.Studio.Email}}</div>
    </div>

    <div class="meta">
      <div>
        <div class="label">Bill to</div>
        <div class="value"><strong>{{.Client.Name}}</strong><br>{{.Client.Email}}</div>
      </div>
      <div>
        <div class="label">Issued</div>
        <div class="value">{{formatDate .Invoice.IssueDate}}</div>
        <div class="label">Due</div>
        <div class="value">{{formatDate .Invoice.DueDate}}</div>
        <div class="label">Status</div>
        <div class="value status">{{.Invoice.Status}}</div>
      </div>
    </div>

    <div class="amount">{{formatMoney .Invoice.AmountDue .Invoice.Currency}} due</div>

    <table>
      <thead>
        <tr><th>Description</th><th class="r">Qty</th><th class="r">Unit price</th><th class="r">Amount</th></tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td>{{.Description}}</td>
          <td class="r">{{formatQuantity .Quantity}}</td>
          <td class="r">{{formatMoney .UnitPrice $.Invoice.Currency}}</td>
          <td class="r">{{formatMoney .Total $.Invoice.Currency}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div class="row"><span>Subtotal</span><span>{{formatMoney .Invoice.Subtotal .Invoice.Currency}}</span></div>
      {{if .Invoice.DiscountAmount.IsPositive}}<div class="row"><span>Discount</span><span>-{{formatMoney .Invoice.DiscountAmount .Invoice.Currency}}</span></div>{{end}}
      <div class="row"><span>Tax ({{.Invoice.TaxRate.String}}%)</span><span>{{formatMoney .Invoice.TaxAmount .Invoice.Currency}}</span></div>
      <div class="row final"><span>Total</span><span>{{formatMoney .Invoice.Total .Invoice.Currency}}</span></div>
      <div class="row"><span>Paid</span><span>{{formatMoney .Invoice.AmountPaid .Invoice.Currency}}</span></div>
      <div class="row"><span>Amount due</span><span>{{formatMoney .Invoice.AmountDue .Invoice.Currency}}</span></div>
    </div>

    {{if .Invoice.Notes}}<div class="notes">{{.Invoice.Notes}}</div>{{end}}
  </div>
</body>
</html>
`

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type StudioView struct {
	Name         string
	Email        string
	PrimaryColor string
}

type PartyView struct {
	Name  string
	Email string
}

type InvoiceView struct {
	Number         string
	Status         string
	Currency       string
	IssueDate      time.Time
	DueDate        time.Time
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal
	AmountDue      decimal.Decimal
	Notes          string
}

type LineItemView struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

type RenderInput struct {
	Studio  StudioView
	Client  PartyView
	Invoice InvoiceView
	Items   []LineItemView
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
}

type HTMLRenderer struct {
	tpl *template.Template
}

func NewRenderer() Renderer {
	funcs := template.FuncMap{
		"formatMoney":    formatMoney,
		"formatDate":     formatDate,
		"formatQuantity": formatQuantity,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	input.Studio.PrimaryColor = sanitizeColor(input.Studio.PrimaryColor)
	if input.Studio.Name == "" {
		input.Studio.Name = "Invoice"
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %s", currency, amount.StringFixed(2))
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}

func formatQuantity(value decimal.Decimal) string {
	return value.String()
}

func sanitizeColor(value string) string {
	trimmed := strings.TrimSpace(value)
	if hexColorPattern.MatchString(trimmed) {
		return trimmed
	}
	return "#111827"
}
