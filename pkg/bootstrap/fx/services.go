package fx

import (
	"context"

	"go.uber.org/fx"

	"github.com/EternisAI/image-vault/pkg/ai"
	"github.com/EternisAI/image-vault/pkg/bot"
	"github.com/EternisAI/image-vault/pkg/config"
	"github.com/EternisAI/image-vault/pkg/convmemory"
	"github.com/EternisAI/image-vault/pkg/logging"
	"github.com/EternisAI/image-vault/pkg/telegram"
	"github.com/EternisAI/image-vault/pkg/vault"
)

// ServicesModule provides the Telegram client and bot, and runs the update poller.
var ServicesModule = fx.Module("services",
	fx.Provide(
		ProvideTelegramClient,
		ProvideBot,
	),
	fx.Invoke(
		StartPoller,
	),
)

func ProvideTelegramClient(envs *config.Config, factory *logging.Factory) *telegram.Client {
	return telegram.NewClient(factory.ForTelegram("telegram.client"), envs.TelegramBotToken)
}

// BotParams holds parameters for the bot.
type BotParams struct {
	fx.In
	LoggerFactory *logging.Factory
	Client        *telegram.Client
	Items         vault.Store
	Memory        convmemory.Store
	AI            *ai.Client
}

func ProvideBot(params BotParams) *bot.Bot {
	return bot.New(bot.Deps{
		Sender: params.Client,
		Items:  params.Items,
		Memory: params.Memory,
		AI:     params.AI,
		Logger: params.LoggerFactory.ForHandler("bot"),
	})
}

// StartPollerParams holds parameters for starting the update poller.
type StartPollerParams struct {
	fx.In
	Lifecycle     fx.Lifecycle
	LoggerFactory *logging.Factory
	Config        *config.Config
	Client        *telegram.Client
	Bot           *bot.Bot
}

// StartPoller clears any webhook and long-polls until the app stops.
func StartPoller(params StartPollerParams) {
	logger := params.LoggerFactory.ForTelegram("telegram.poller")
	poller := telegram.NewPoller(params.Client, logger, params.Config.Concurrency)

	var cancel context.CancelFunc
	done := make(chan struct{})

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if me, err := params.Client.GetMe(ctx); err != nil {
				logger.Warn("getMe failed, continuing", "error", err)
			} else {
				params.Bot.SetUsername(me.Username)
				logger.Info("Bot identity", "username", me.Username)
			}
			if err := params.Client.DeleteWebhook(ctx, true); err != nil {
				logger.Warn("deleteWebhook failed, continuing", "error", err)
			} else {
				logger.Info("Webhook cleared")
			}

			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				if err := poller.Run(runCtx, params.Bot.HandleUpdate); err != nil {
					logger.Error("Poller stopped with error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				logger.Warn("Timed out waiting for in-flight updates")
				return ctx.Err()
			}
		},
	})
}
