package adapters

import (
	"context"
	"testing"

	"github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct{ name string }

func (f stubFactory) Gateway() string { return f.name }

func (f stubFactory) New(cfg map[string]any) (domain.PaymentGateway, error) {
	return stubGateway{name: f.name}, nil
}

type stubGateway struct{ name string }

func (g stubGateway) Gateway() string { return g.name }
func (g stubGateway) CreateIntent(context.Context, domain.IntentRequest) (*domain.Intent, error) {
	return nil, nil
}
func (g stubGateway) Retrieve(context.Context, string) (*domain.Charge, error) { return nil, nil }
func (g stubGateway) Refund(context.Context, domain.RefundRequest) (*domain.RefundResult, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(stubFactory{name: "stripe"}, nil, stubFactory{name: " "}, stubFactory{name: "PAYPAL"})

	assert.True(t, registry.Supports("STRIPE"))
	assert.True(t, registry.Supports("paypal"))
	assert.False(t, registry.Supports("SQUARE"))
	assert.Equal(t, []string{"PAYPAL", "STRIPE"}, registry.Gateways())

	gw, err := registry.New("Stripe", nil)
	require.NoError(t, err)
	assert.Equal(t, "stripe", gw.Gateway())

	_, err = registry.New("SQUARE", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedGateway)

	var nilRegistry *Registry
	assert.False(t, nilRegistry.Supports("STRIPE"))
}

func TestReadString(t *testing.T) {
	cfg := map[string]any{"a": " x ", "b": 3, "c": "  "}
	v, ok := ReadString(cfg, "a")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = ReadString(cfg, "b")
	assert.False(t, ok)
	_, ok = ReadString(cfg, "c")
	assert.False(t, ok)
}
