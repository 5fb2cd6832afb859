package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/smallbiznis/studioledger/internal/migration"
	"github.com/smallbiznis/studioledger/internal/observability"
	"github.com/smallbiznis/studioledger/internal/scheduler"
	"github.com/smallbiznis/studioledger/internal/server"
	"github.com/smallbiznis/studioledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API with every domain service, plus the in-process sweeps.
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
