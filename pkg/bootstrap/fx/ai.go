package fx

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/EternisAI/image-vault/pkg/ai"
	"github.com/EternisAI/image-vault/pkg/config"
	"github.com/EternisAI/image-vault/pkg/logging"
)

// AIModule provides the AI chat client.
var AIModule = fx.Module("ai",
	fx.Provide(
		ProvideAITransport,
		ProvideAIClient,
	),
)

// ProvideAITransport picks the transport from AI_PROVIDER.
func ProvideAITransport(envs *config.Config, factory *logging.Factory) ai.Transport {
	logger := factory.ForAI("ai.transport")
	if envs.AIProvider == config.AIProviderOpenAI {
		logger.Info("Using OpenAI transport", "model", envs.AIModel)
		return ai.NewOpenAITransport(envs.AIKey, envs.OpenAIBaseURL, envs.AIModel)
	}
	logger.Info("Using AI gateway transport", "endpoint", envs.AIEndpoint)
	return ai.NewGatewayTransport(envs.AIEndpoint, envs.AIKey, nil)
}

func ProvideAIClient(lc fx.Lifecycle, transport ai.Transport, envs *config.Config, factory *logging.Factory) *ai.Client {
	logger := factory.ForAI("ai.client")
	client := ai.NewClient(transport, ai.Config{
		Timeout:           time.Duration(envs.AITimeoutMs) * time.Millisecond,
		MaxRetries:        envs.AIMaxRetries,
		RequestsPerMinute: envs.AIRequestsPerMin,
	}, logger)
	if !client.Configured() {
		logger.Warn("AI is not configured; chat replies will report it")
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			client.Close()
			return nil
		},
	})
	return client
}
