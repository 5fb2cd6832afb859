package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceDocument) ([]byte, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, invoice.Status, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+invoice.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+invoice.DueDate, props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New(invoice.Studio.Name, props.Text{Style: fontstyle.Bold}),
			text.New(invoice.Studio.Email, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BillTo.Name, props.Text{Top: 5}),
			text.New(invoice.BillTo.Email, props.Text{Top: 9}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, invoice.AmountDue+" due "+invoice.DueDate, props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)

	addItemTable(m, invoice.Items)

	addTotalRow(m, "Subtotal", invoice.Subtotal, false)
	if invoice.Discount != "" {
		addTotalRow(m, "Discount", "-"+invoice.Discount, false)
	}
	addTotalRow(m, "Tax", invoice.Tax, false)
	addTotalRow(m, "Total", invoice.Total, false)
	addTotalRow(m, "Paid", invoice.AmountPaid, false)
	addTotalRow(m, "Amount due", invoice.AmountDue, true)

	if invoice.Notes != "" {
		m.AddRow(20, text.NewCol(12, invoice.Notes, props.Text{Size: 8, Top: 6}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func addItemTable(m core.Maroto, items []LineItem) {
	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range items {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func addTotalRow(m core.Maroto, label, value string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(7,
		col.New(8),
		text.NewCol(2, label, props.Text{Size: 9, Style: style}),
		text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}
