package gatewayconfig

import (
	"github.com/smallbiznis/studioledger/internal/gatewayconfig/repository"
	"github.com/smallbiznis/studioledger/internal/gatewayconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gatewayconfig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
