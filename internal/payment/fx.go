package payment

import (
	"github.com/smallbiznis/studioledger/internal/config"
	gatewayconfigdomain "github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	"github.com/smallbiznis/studioledger/internal/payment/adapters"
	"github.com/smallbiznis/studioledger/internal/payment/adapters/paypal"
	"github.com/smallbiznis/studioledger/internal/payment/adapters/stripe"
	"github.com/smallbiznis/studioledger/internal/payment/repository"
	paymentservice "github.com/smallbiznis/studioledger/internal/payment/service"
	"github.com/smallbiznis/studioledger/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(nil),
			paypal.NewFactory(cfg.PayPalBaseURL, nil),
		)
	}),
	fx.Provide(func(r *adapters.Registry) gatewayconfigdomain.Catalog { return r }),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
