// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the core runtime settings.  Each field corresponds to an
// environment variable.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DB        DatabaseConfig
	JWTSecret string // secret used to verify client access tokens
	RabbitURL string // AMQP broker; empty selects the in-process trigger feed
	LogLevel  string // debug, info, warn, error or off
}

// DatabaseConfig locates the MySQL catalog database.
type DatabaseConfig struct {
	User string
	Pass string // optional
	Host string
	Port string
	Name string
}

// LoadDatabaseConfig reads DB_USER, DB_PASS, DB_HOST, DB_PORT and DB_NAME.
func LoadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		User: must("DB_USER"),
		Pass: os.Getenv("DB_PASS"),
		Host: must("DB_HOST"),
		Port: envStr("DB_PORT", "3306"),
		Name: must("DB_NAME"),
	}
}

// LoadEnvFile merges variables from the given .env files (default ".env")
// into the process environment.  Variables already set win.  A missing file
// is not an error.
func LoadEnvFile(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("config: load %s: %v", f, err)
		}
	}
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required variables terminate the program.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DB:        LoadDatabaseConfig(),
		JWTSecret: must("JWT_SECRET"),
		RabbitURL: os.Getenv("RABBITMQ_URL"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
