package fx

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/EternisAI/image-vault/pkg/bootstrap"
	"github.com/EternisAI/image-vault/pkg/config"
	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/events"
	"github.com/EternisAI/image-vault/pkg/logging"
)

// InfrastructureModule provides logging, configuration, the MongoDB adapter and the event bus.
var InfrastructureModule = fx.Module("infrastructure",
	fx.Provide(
		ProvideLogger,
		ProvideLoggerFactory,
		ProvideConfig,
		ProvideMongo,
		ProvideEventBus,
	),
)

// ProvideLogger creates a shared logger instance.
func ProvideLogger() *log.Logger {
	return bootstrap.NewLogger()
}

func ProvideLoggerFactory(logger *log.Logger) *logging.Factory {
	return logging.NewFactory(logger)
}

// ProvideConfig loads configuration and refuses to start without a bot token.
func ProvideConfig(logger *log.Logger) (*config.Config, error) {
	envs, err := config.LoadConfig(false)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		return nil, err
	}
	logger.Info("Config loaded",
		"token_set", envs.TelegramBotToken != "",
		"mongo_set", envs.DurableStore(),
		"ai_provider", envs.AIProvider,
		"ai_key_set", envs.AIKey != "",
		"concurrency", envs.Concurrency,
	)
	if envs.TelegramBotToken == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return envs, nil
}

// ProvideMongo creates the lazy MongoDB adapter. Nothing is dialed until first use.
func ProvideMongo(lc fx.Lifecycle, factory *logging.Factory, envs *config.Config) *db.Mongo {
	logger := factory.ForDatabase("mongo")
	mongo := db.NewMongo(envs.MongoDBURI, envs.MongoDBDatabase, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := mongo.Close(ctx); err != nil {
				logger.Error("Error closing MongoDB", "error", err)
				return err
			}
			return nil
		},
	})
	return mongo
}

// ProvideEventBus creates the item event bus and forwards it to NATS when NATS_URL is set.
func ProvideEventBus(lc fx.Lifecycle, factory *logging.Factory, envs *config.Config) (*events.Bus, error) {
	logger := factory.ForNATS("events")
	bus := events.NewBus(logger)
	if envs.NatsURL == "" {
		logger.Debug("NATS_URL not set, item events stay in process")
		return bus, nil
	}

	url := envs.NatsURL
	if url == bootstrap.EmbeddedNATSURL {
		natsServer, err := bootstrap.StartEmbeddedNATSServer(logger)
		if err != nil {
			logger.Error("Unable to start nats server", "error", err)
			return nil, err
		}
		url = natsServer.ClientURL()
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				logger.Info("Shutting down NATS server")
				natsServer.Shutdown()
				return nil
			},
		})
	}

	conn, err := events.Connect(url, logger)
	if err != nil {
		logger.Error("Unable to create nats client", "error", err)
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing NATS client")
			conn.Close()
			return nil
		},
	})

	bus.Forward(events.NewNATSPublisher(conn, logger))
	logger.Info("Item events forwarded to NATS")
	return bus, nil
}
