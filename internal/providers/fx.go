package providers

import (
	"github.com/smallbiznis/freightdesk/internal/providers/email"
	"github.com/smallbiznis/freightdesk/internal/providers/pdf"
	"github.com/smallbiznis/freightdesk/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	storage.Module,
)
