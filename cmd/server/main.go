// Owner: august@eternis.ai
package main

import (
	"github.com/charmbracelet/log"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/EternisAI/image-vault/pkg/bootstrap"
	bootstrapfx "github.com/EternisAI/image-vault/pkg/bootstrap/fx"
)

func main() {
	app := fx.New(
		bootstrapfx.AppModule,
		fx.WithLogger(func(logger *log.Logger) fxevent.Logger {
			return bootstrapfx.NewCharmLogger(logger)
		}),
	)
	if err := app.Err(); err != nil {
		bootstrap.NewLogger().Fatal("Failed to build application", "error", err)
	}
	app.Run()
}
