package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReminder(t *testing.T) {
	body, err := Render("payment_reminder", map[string]any{
		"StudioName":    "Clay House",
		"StudioEmail":   "hello@clay.house",
		"ClientName":    "Ana",
		"InvoiceNumber": "INV-000012",
		"DueDate":       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		"DaysPastDue":   7,
		"AmountDue":     decimal.RequireFromString("100"),
		"Currency":      "usd",
		"ViewURL":       "",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "INV-000012")
	assert.Contains(t, body, "7 days past due")
	assert.Contains(t, body, "USD 100.00")
	assert.Contains(t, body, "Feb 1, 2025")
	assert.NotContains(t, body, "View and pay")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	p := NewSMTP(Config{Host: "smtp.local", Port: 2525, From: "billing@studio.test"})
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Nil(t, a)
		return nil
	}

	err := p.Send(context.Background(), []string{"a@x.test"}, "Hello\r\nBcc: evil@x.test", "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Hello  Bcc: evil@x.test\r\n")
	assert.True(t, strings.HasSuffix(msg, "<p>hi</p>"))

	assert.Error(t, p.Send(context.Background(), nil, "s", "b"))
}

func TestRecordingProviderFailures(t *testing.T) {
	p := NewRecordingProvider()
	p.FailFor = map[string]error{"bad@x.test": errors.New("mailbox full")}

	require.NoError(t, p.Send(context.Background(), []string{"ok@x.test"}, "s", "b"))
	assert.Error(t, p.Send(context.Background(), []string{"bad@x.test"}, "s", "b"))
	assert.Len(t, p.Messages(), 1)
}
