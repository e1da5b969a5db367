package fx

import (
	"go.uber.org/fx"

	"github.com/EternisAI/image-vault/pkg/config"
	"github.com/EternisAI/image-vault/pkg/convmemory"
	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/events"
	"github.com/EternisAI/image-vault/pkg/logging"
	"github.com/EternisAI/image-vault/pkg/vault"
)

// StoreModule selects durable or in-process storage from configuration.
var StoreModule = fx.Module("store",
	fx.Provide(
		ProvideItemStore,
		ProvideMemoryStore,
	),
)

func ProvideItemStore(mongo *db.Mongo, bus *events.Bus, factory *logging.Factory) vault.Store {
	store := vault.New(mongo, bus, factory.ForVault("vault.store"))
	factory.ForVault("vault.store").Info("Item store ready", "backend", store.Backend())
	return store
}

func ProvideMemoryStore(mongo *db.Mongo, envs *config.Config, factory *logging.Factory) convmemory.Store {
	store := convmemory.New(mongo, envs.MemoryWindow, factory.ForMemory("convmemory"))
	factory.ForMemory("convmemory").Info("Conversation memory ready", "backend", store.Backend(), "window", envs.MemoryWindow)
	return store
}
