package fx

import (
	"go.uber.org/fx"
)

// AppModule combines all modules for the complete application.
var AppModule = fx.Options(
	// Infrastructure layer - logger, config, MongoDB adapter, event bus
	InfrastructureModule,

	// Storage layer - item vault and conversation memory
	StoreModule,

	// AI layer - gateway or OpenAI client
	AIModule,

	// Services layer - Telegram client, bot and poller
	ServicesModule,

	// Server layer - status endpoints
	ServerModule,
)
