package env

import (
	"os"

	"github.com/joho/godotenv"
)

type Environment string

const (
	Local Environment = "local"
)

// Load reads .env files into the process environment. Missing files are not
// an error so deployed environments can rely on real env vars only.
func Load(filenames ...string) {
	_ = godotenv.Load(filenames...)
}

func IsLocal() bool {
	return Get() == Local
}

func Get() Environment {
	return Environment(os.Getenv("ENVIRONMENT"))
}

func GetOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
