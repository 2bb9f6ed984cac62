// Package config loads process configuration from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned when FIREBASE_API_KEY is unset. The server
// cannot sign users up or in without it.
var ErrMissingAPIKey = errors.New("FIREBASE_API_KEY is required")

// Config is the full set of runtime settings.
type Config struct {
	Port string `env:"PORT" envDefault:"5000"`

	FirebaseAPIKey    string `env:"FIREBASE_API_KEY"`
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	CredentialsFile   string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	// LegacyCredentialsFile is read when CredentialsFile is empty.
	LegacyCredentialsFile string `env:"GOOGLE_CLOUD_CREDENTIALS"`
	AuthEmulatorHost      string `env:"FIREBASE_AUTH_EMULATOR_HOST"`

	IdentityToolkitURL string        `env:"IDENTITY_TOOLKIT_URL"`
	IdentityTimeout    time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`

	// LocalStorePath is the users.json mirror. Empty disables the mirror.
	LocalStorePath         string `env:"LOCAL_STORE_PATH" envDefault:"users.json"`
	DirectoryWriteAttempts uint   `env:"DIRECTORY_WRITE_ATTEMPTS" envDefault:"3"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Credentials returns the service account file path, if any.
func (c Config) Credentials() string {
	if c.CredentialsFile != "" {
		return c.CredentialsFile
	}
	return c.LegacyCredentialsFile
}

// Load reads dotenvPath (a missing file is fine) and then the environment.
// Variables already set in the environment win over the file.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	var cfg Config
	// LOCAL_STORE_PATH set to "" must disable the mirror, not fall back to the default.
	storePath, storePathSet := os.LookupEnv("LOCAL_STORE_PATH")
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if storePathSet && storePath == "" {
		cfg.LocalStorePath = ""
	}

	if cfg.FirebaseAPIKey == "" {
		return Config{}, ErrMissingAPIKey
	}
	if cfg.DirectoryWriteAttempts == 0 {
		cfg.DirectoryWriteAttempts = 1
	}
	return cfg, nil
}

// Exitf writes a formatted message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
