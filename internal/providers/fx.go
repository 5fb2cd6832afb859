package providers

import (
	"github.com/smallbiznis/studioledger/internal/providers/email"
	"github.com/smallbiznis/studioledger/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
