package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ProfileSyncMode selects how reservation notifications reach the profile
// service.
type ProfileSyncMode string

const (
	ProfileSyncQueue  ProfileSyncMode = "queue"  // via the profile.sync queue
	ProfileSyncDirect ProfileSyncMode = "direct" // in-process HTTP call
	ProfileSyncOff    ProfileSyncMode = "off"    // notifications are dropped
)

// ProcessorConfig tunes the reservation processor and its store.
type ProcessorConfig struct {
	Cutoff    time.Duration `env:"RESERVATION_CUTOFF" envDefault:"30m"`
	TxRetries int           `env:"STORE_TX_RETRIES" envDefault:"25"`
	DedupTTL  time.Duration `env:"DEDUP_TTL" envDefault:"720h"`
	KeyPrefix string        `env:"STORE_KEY_PREFIX" envDefault:"seat"`
}

// ProfileSyncConfig describes the external profile service and the service
// account used to call it.
type ProfileSyncConfig struct {
	Mode        ProfileSyncMode `env:"PROFILE_SYNC_MODE" envDefault:"queue"`
	URL         string          `env:"PROFILE_SYNC_URL"`
	ClientEmail string          `env:"PROFILE_SYNC_CLIENT_EMAIL"`
	PrivateKey  string          `env:"PROFILE_SYNC_PRIVATE_KEY"`
	Scope       string          `env:"PROFILE_SYNC_SCOPE" envDefault:"https://www.googleapis.com/auth/userinfo.email"`
	Audience    string          `env:"PROFILE_SYNC_AUDIENCE" envDefault:"https://oauth2.googleapis.com/token"`
	Timeout     time.Duration   `env:"PROFILE_SYNC_TIMEOUT" envDefault:"10s"`
}

// LoadProcessorConfig parses ProcessorConfig from the environment.
func LoadProcessorConfig() (ProcessorConfig, error) {
	cfg, err := env.ParseAs[ProcessorConfig]()
	if err != nil {
		return ProcessorConfig{}, fmt.Errorf("config: processor: %w", err)
	}
	if cfg.Cutoff < 0 {
		return ProcessorConfig{}, fmt.Errorf("config: RESERVATION_CUTOFF must not be negative, got %s", cfg.Cutoff)
	}
	if cfg.TxRetries < 0 {
		return ProcessorConfig{}, fmt.Errorf("config: STORE_TX_RETRIES must not be negative, got %d", cfg.TxRetries)
	}
	return cfg, nil
}

// LoadProfileSyncConfig parses ProfileSyncConfig from the environment.  The
// URL and service account are only required when notifications are enabled.
func LoadProfileSyncConfig() (ProfileSyncConfig, error) {
	cfg, err := env.ParseAs[ProfileSyncConfig]()
	if err != nil {
		return ProfileSyncConfig{}, fmt.Errorf("config: profile sync: %w", err)
	}
	switch cfg.Mode {
	case ProfileSyncQueue, ProfileSyncDirect:
		if cfg.URL == "" || cfg.ClientEmail == "" || cfg.PrivateKey == "" {
			return ProfileSyncConfig{}, fmt.Errorf("config: PROFILE_SYNC_URL, PROFILE_SYNC_CLIENT_EMAIL and PROFILE_SYNC_PRIVATE_KEY are required in %s mode", cfg.Mode)
		}
	case ProfileSyncOff:
	default:
		return ProfileSyncConfig{}, fmt.Errorf("config: unknown PROFILE_SYNC_MODE %q", cfg.Mode)
	}
	return cfg, nil
}
