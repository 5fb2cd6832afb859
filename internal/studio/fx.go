package studio

import (
	"github.com/smallbiznis/studioledger/internal/studio/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("studio.repository",
	fx.Provide(repository.Provide),
)
