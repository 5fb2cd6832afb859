package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptDocument) ([]byte, error) {
	m := newDocument()

	m.AddRow(12,
		text.NewCol(12, "Receipt", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New("Receipt number: "+receipt.ReceiptNumber, props.Text{Top: 0}),
			text.New("Date paid: "+receipt.DatePaid, props.Text{Top: 4}),
			text.New("Paid with: "+receipt.Gateway, props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New(receipt.Studio.Name, props.Text{Style: fontstyle.Bold}),
			text.New(receipt.Studio.Email, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Received from", props.Text{Style: fontstyle.Bold}),
			text.New(receipt.BillTo.Name, props.Text{Top: 5}),
			text.New(receipt.BillTo.Email, props.Text{Top: 9}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.Amount+" paid on "+receipt.DatePaid, props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)

	if receipt.InvoiceNumber != "" {
		addTotalRow(m, "Invoice", receipt.InvoiceNumber, false)
	}
	addTotalRow(m, "Amount", receipt.Amount, true)
	if receipt.Refunded != "" {
		addTotalRow(m, "Refunded", receipt.Refunded, false)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
