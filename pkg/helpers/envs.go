package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const defaultEnvSearchDepth = 5

// LoadEnvFile loads ENV_FILE if set, else the nearest .env up to maxDepth parents.
// Variables already present in the environment are not overridden.
func LoadEnvFile(maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = defaultEnvSearchDepth
	}

	if explicit := os.Getenv("ENV_FILE"); explicit != "" {
		if err := godotenv.Load(explicit); err == nil {
			return nil
		}
	}

	dir := "."
	for depth := 0; depth <= maxDepth; depth++ {
		if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
			return nil
		}
		dir = filepath.Join(dir, "..")
	}

	return fmt.Errorf("could not find .env file after checking %d parent directories", maxDepth)
}
