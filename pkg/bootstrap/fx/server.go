package fx

import (
	"context"

	"go.uber.org/fx"

	"github.com/EternisAI/image-vault/pkg/config"
	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/events"
	"github.com/EternisAI/image-vault/pkg/logging"
	statusserver "github.com/EternisAI/image-vault/pkg/server"
	"github.com/EternisAI/image-vault/pkg/vault"
)

// ServerModule runs the HTTP status server.
var ServerModule = fx.Module("server",
	fx.Invoke(
		StartStatusServer,
	),
)

// StartStatusServerParams holds parameters for the status server.
type StartStatusServerParams struct {
	fx.In
	Lifecycle     fx.Lifecycle
	LoggerFactory *logging.Factory
	Config        *config.Config
	Items         vault.Store
	Mongo         *db.Mongo
	Bus           *events.Bus
}

func StartStatusServer(params StartStatusServerParams) {
	logger := params.LoggerFactory.ForServer("status.http")
	if !params.Config.StatusEnabled() {
		logger.Info("Status server disabled")
		return
	}
	server := statusserver.New(params.Config.StatusAddr, params.Items, params.Mongo, params.Bus, logger)

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start()
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
