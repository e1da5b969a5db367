// Owner: august@eternis.ai
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/EternisAI/image-vault/pkg/helpers"
)

const envFileSearchDepth = 3

// StatusDisabled as STATUS_ADDR turns the status server off.
const StatusDisabled = "off"

const (
	AIProviderGateway = "gateway"
	AIProviderOpenAI  = "openai"
)

type Config struct {
	TelegramBotToken string
	MongoDBURI       string
	MongoDBDatabase  string
	AIProvider       string
	AIEndpoint       string
	AIKey            string
	AIModel          string
	OpenAIBaseURL    string
	AITimeoutMs      int
	AIMaxRetries     int
	AIRequestsPerMin int
	Concurrency      int
	MemoryWindow     int
	NatsURL          string
	StatusAddr       string
}

// secretKeys are never printed, only whether they are set.
var secretKeys = map[string]bool{
	"TELEGRAM_BOT_TOKEN": true,
	"MONGODB_URI":        true,
	"COOKMYBOTS_AI_KEY":  true,
}

func getEnv(key, defaultValue string, printEnv bool) string {
	logger := log.Default()
	value := os.Getenv(key)
	if printEnv {
		if secretKeys[key] {
			logger.Info("Env", "key", key, "set", value != "")
		} else {
			logger.Info("Env", "key", key, "value", value)
		}
	}
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int, printEnv bool) int {
	raw := getEnv(key, "", printEnv)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		log.Default().Warn("Invalid integer env, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return n
}

func LoadConfig(printEnv bool) (*Config, error) {
	if err := helpers.LoadEnvFile(envFileSearchDepth); err != nil && printEnv {
		log.Default().Debug("No .env file loaded", "error", err)
	}

	conf := &Config{
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", "", printEnv),
		MongoDBURI:       getEnv("MONGODB_URI", "", printEnv),
		MongoDBDatabase:  getEnv("MONGODB_DATABASE", "image_vault", printEnv),
		AIProvider:       strings.ToLower(getEnv("AI_PROVIDER", AIProviderGateway, printEnv)),
		AIEndpoint:       strings.TrimRight(getEnv("COOKMYBOTS_AI_ENDPOINT", "https://api.cookmybots.com/api/ai", printEnv), "/"),
		AIKey:            getEnv("COOKMYBOTS_AI_KEY", "", printEnv),
		AIModel:          getEnv("AI_MODEL", "gpt-4.1-mini", printEnv),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "", printEnv),
		AITimeoutMs:      getEnvInt("AI_TIMEOUT_MS", 600000, printEnv),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 2, printEnv),
		AIRequestsPerMin: getEnvInt("AI_REQUESTS_PER_MINUTE", 0, printEnv),
		Concurrency:      getEnvInt("CONCURRENCY", 20, printEnv),
		MemoryWindow:     getEnvInt("MEMORY_WINDOW", 200, printEnv),
		NatsURL:          getEnv("NATS_URL", "", printEnv),
		StatusAddr:       getEnv("STATUS_ADDR", ":8080", printEnv),
	}

	if conf.Concurrency == 0 {
		conf.Concurrency = 20
	}

	return conf, nil
}

// StatusEnabled is false when STATUS_ADDR is "off".
func (c *Config) StatusEnabled() bool {
	addr := strings.TrimSpace(c.StatusAddr)
	return addr != "" && !strings.EqualFold(addr, StatusDisabled)
}

// DurableStore reports whether a document store connection string is configured.
func (c *Config) DurableStore() bool {
	return strings.TrimSpace(c.MongoDBURI) != ""
}
