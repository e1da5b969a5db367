package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestComponentRegistry_Register(t *testing.T) {
	registry := NewComponentRegistry()

	err := registry.RegisterComponent("vault.store", ComponentTypeVault, nil)
	assert.NoError(t, err)

	info, exists := registry.GetComponentInfo("vault.store")
	assert.True(t, exists)
	assert.Equal(t, ComponentTypeVault, info.Type)
	assert.True(t, info.Enabled)

	err = registry.RegisterComponent("vault.store", ComponentTypeVault, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	err = registry.EnableComponent("non.existent", false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestComponentRegistry_LogLevels(t *testing.T) {
	registry := NewComponentRegistry()
	registry.LoadLogLevelsFromConfig(map[string]string{
		"db.mongo":  "debug",
		"ai.client": "warn",
		"broken":    "invalid_level",
	})

	assert.Equal(t, log.DebugLevel, registry.GetComponentLogLevel("db.mongo"))
	assert.Equal(t, log.WarnLevel, registry.GetComponentLogLevel("ai.client"))
	assert.Equal(t, log.InfoLevel, registry.GetComponentLogLevel("broken"))
	assert.Equal(t, log.InfoLevel, registry.GetComponentLogLevel("unknown"))
}

func TestComponentRegistry_EnvironmentVariables(t *testing.T) {
	t.Setenv("LOG_LEVEL_memory.store", "error")

	registry := NewComponentRegistry()
	registry.LoadLogLevelsFromEnv()

	assert.Equal(t, log.ErrorLevel, registry.GetComponentLogLevel("memory.store"))
}

func TestFactory_ForComponentAddsComponentField(t *testing.T) {
	var buf bytes.Buffer
	base := log.New(&buf)
	factory := NewFactoryWithConfig(base, nil)

	logger := factory.ForDatabase("db.mongo")
	logger.Info("connected")

	assert.Contains(t, buf.String(), "db.mongo")
	assert.Contains(t, buf.String(), "connected")
}

func TestFactory_DisabledComponentIsSilent(t *testing.T) {
	var buf bytes.Buffer
	factory := NewFactoryWithConfig(log.New(&buf), nil)

	_ = factory.ForAI("ai.client")
	assert.NoError(t, factory.GetComponentRegistry().EnableComponent("ai.client", false))

	logger := factory.GetComponentRegistry().GetLoggerForComponent(log.New(&buf), "ai.client")
	logger.Error("should not appear")

	assert.Empty(t, buf.String())
}

func TestFactory_WithError(t *testing.T) {
	var buf bytes.Buffer
	factory := NewFactoryWithConfig(log.New(&buf), nil)

	logger := factory.WithError(factory.ForService("bot"), errors.New("boom"))
	logger.Info("failed")

	assert.Contains(t, buf.String(), "boom")
}
