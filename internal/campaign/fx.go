package campaign

import (
	"github.com/smallbiznis/studioledger/internal/campaign/repository"
	"github.com/smallbiznis/studioledger/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
