package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// ComponentType groups loggers by their role in the process.
type ComponentType string

const (
	ComponentTypeService    ComponentType = "service"
	ComponentTypeHandler    ComponentType = "handler"
	ComponentTypeRepository ComponentType = "repository"
	ComponentTypeClient     ComponentType = "client"
	ComponentTypeServer     ComponentType = "server"
	ComponentTypeUtility    ComponentType = "utility"
	ComponentTypeAI         ComponentType = "ai"
	ComponentTypeTelegram   ComponentType = "telegram"
	ComponentTypeDatabase   ComponentType = "database"
	ComponentTypeNATS       ComponentType = "nats"
	ComponentTypeMemory     ComponentType = "memory"
	ComponentTypeVault      ComponentType = "vault"
)

// ComponentInfo describes a registered component.
type ComponentInfo struct {
	ID       string
	Type     ComponentType
	Level    log.Level
	Enabled  bool
	Metadata map[string]interface{}
}

// ComponentRegistry tracks components and their log levels.
type ComponentRegistry struct {
	mu         sync.RWMutex
	components map[string]*ComponentInfo
	levels     map[string]log.Level
}

func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		components: make(map[string]*ComponentInfo),
		levels:     make(map[string]log.Level),
	}
}

func (r *ComponentRegistry) RegisterComponent(id string, componentType ComponentType, metadata map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[id]; exists {
		return fmt.Errorf("component %s already registered", id)
	}

	level, ok := r.levels[id]
	if !ok {
		level = log.InfoLevel
	}
	r.components[id] = &ComponentInfo{
		ID:       id,
		Type:     componentType,
		Level:    level,
		Enabled:  true,
		Metadata: metadata,
	}
	return nil
}

func (r *ComponentRegistry) GetComponentInfo(id string) (*ComponentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.components[id]
	return info, ok
}

func (r *ComponentRegistry) SetComponentLogLevel(id string, level log.Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.levels[id] = level
	if info, ok := r.components[id]; ok {
		info.Level = level
	}
	return nil
}

func (r *ComponentRegistry) GetComponentLogLevel(id string) log.Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if level, ok := r.levels[id]; ok {
		return level
	}
	return log.InfoLevel
}

func (r *ComponentRegistry) EnableComponent(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.components[id]
	if !ok {
		return fmt.Errorf("component %s not found", id)
	}
	info.Enabled = enabled
	return nil
}

func (r *ComponentRegistry) IsComponentEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.components[id]
	return ok && info.Enabled
}

// LoadLogLevelsFromConfig applies levels keyed by component id. Unknown level names fall back to info.
func (r *ComponentRegistry) LoadLogLevelsFromConfig(levels map[string]string) {
	for id, raw := range levels {
		level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			level = log.InfoLevel
		}
		_ = r.SetComponentLogLevel(id, level)
	}
}

// LoadLogLevelsFromEnv reads LOG_LEVEL_<component id> variables.
func (r *ComponentRegistry) LoadLogLevelsFromEnv() {
	levels := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "LOG_LEVEL_") {
			continue
		}
		id := strings.TrimPrefix(key, "LOG_LEVEL_")
		if id == "" {
			continue
		}
		levels[id] = value
	}
	r.LoadLogLevelsFromConfig(levels)
}

// GetLoggerForComponent derives a child logger tagged with the component id.
func (r *ComponentRegistry) GetLoggerForComponent(base *log.Logger, id string) *log.Logger {
	logger := base.With("component", id)
	logger.SetLevel(r.GetComponentLogLevel(id))
	if !r.IsComponentEnabled(id) {
		logger.SetLevel(log.FatalLevel + 1)
	}
	return logger
}
