package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(
	template.New("email").
		Funcs(template.FuncMap{
			"money": formatMoney,
			"date":  formatDate,
		}).
		ParseFS(templateFS, "templates/*.html"),
)

// Render executes templates/<name>.html.
func Render(name string, data any) (string, error) {
	tpl := templates.Lookup(name + ".html")
	if tpl == nil {
		return "", fmt.Errorf("email template %q not found", name)
	}

	var body bytes.Buffer
	if err := tpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("execute email template %q: %w", name, err)
	}
	return body.String(), nil
}

func formatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return currency + " " + amount.StringFixed(2)
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format("Jan 2, 2006")
}
