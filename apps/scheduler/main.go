package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/audit"
	"github.com/smallbiznis/studioledger/internal/booking"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/smallbiznis/studioledger/internal/invoice"
	"github.com/smallbiznis/studioledger/internal/notification"
	"github.com/smallbiznis/studioledger/internal/observability"
	"github.com/smallbiznis/studioledger/internal/providers"
	"github.com/smallbiznis/studioledger/internal/ratelimit"
	"github.com/smallbiznis/studioledger/internal/scheduler"
	"github.com/smallbiznis/studioledger/internal/studio"
	"github.com/smallbiznis/studioledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the sweeps
		audit.Module,
		studio.Module,
		booking.Module,
		providers.Module,
		notification.Module,
		invoice.Module,
		ratelimit.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
