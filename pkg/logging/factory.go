package logging

import (
	"github.com/charmbracelet/log"
)

// Factory provides component-aware loggers with consistent field naming.
type Factory struct {
	baseLogger        *log.Logger
	componentRegistry *ComponentRegistry
}

// NewFactory creates a new logger factory.
func NewFactory(baseLogger *log.Logger) *Factory {
	registry := NewComponentRegistry()
	registry.LoadLogLevelsFromEnv()

	return &Factory{
		baseLogger:        baseLogger,
		componentRegistry: registry,
	}
}

// NewFactoryWithConfig creates a new logger factory and loads component log levels from config.
func NewFactoryWithConfig(baseLogger *log.Logger, componentLogLevels map[string]string) *Factory {
	registry := NewComponentRegistry()
	registry.LoadLogLevelsFromConfig(componentLogLevels)

	return &Factory{
		baseLogger:        baseLogger,
		componentRegistry: registry,
	}
}

func (lf *Factory) forType(id string, componentType ComponentType) *log.Logger {
	_ = lf.componentRegistry.RegisterComponent(id, componentType, nil)
	return lf.componentRegistry.GetLoggerForComponent(lf.baseLogger, id)
}

// ForComponent creates a logger for a generic component.
func (lf *Factory) ForComponent(id string) *log.Logger {
	return lf.forType(id, ComponentTypeUtility)
}

// ForService creates a logger for service components.
func (lf *Factory) ForService(id string) *log.Logger {
	return lf.forType(id, ComponentTypeService)
}

// ForHandler creates a logger for command handlers.
func (lf *Factory) ForHandler(id string) *log.Logger {
	return lf.forType(id, ComponentTypeHandler)
}

// ForServer creates a logger for server components.
func (lf *Factory) ForServer(id string) *log.Logger {
	return lf.forType(id, ComponentTypeServer)
}

func (lf *Factory) ForAI(id string) *log.Logger {
	return lf.forType(id, ComponentTypeAI)
}

func (lf *Factory) ForTelegram(id string) *log.Logger {
	return lf.forType(id, ComponentTypeTelegram)
}

func (lf *Factory) ForDatabase(id string) *log.Logger {
	return lf.forType(id, ComponentTypeDatabase)
}

func (lf *Factory) ForNATS(id string) *log.Logger {
	return lf.forType(id, ComponentTypeNATS)
}

func (lf *Factory) ForMemory(id string) *log.Logger {
	return lf.forType(id, ComponentTypeMemory)
}

func (lf *Factory) ForVault(id string) *log.Logger {
	return lf.forType(id, ComponentTypeVault)
}

// WithUserID adds user context to a logger.
func (lf *Factory) WithUserID(logger *log.Logger, userID string) *log.Logger {
	return logger.With("user_id", userID)
}

// WithError adds error context to a logger.
func (lf *Factory) WithError(logger *log.Logger, err error) *log.Logger {
	if err != nil {
		return logger.With("error", err.Error())
	}
	return logger
}

// GetComponentRegistry returns the component registry for configuration.
func (lf *Factory) GetComponentRegistry() *ComponentRegistry {
	return lf.componentRegistry
}
