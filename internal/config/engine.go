package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// EngineConfig is the snapshot of game-tunable parameters handed to the reward components.
type EngineConfig struct {
	EligibilityTTL        time.Duration `env:"ELIGIBILITY_TTL" envDefault:"1h"`
	DailyEligibilityQuota int           `env:"DAILY_ELIGIBILITY_QUOTA" envDefault:"20"`

	CategoryForgeInputs   int `env:"CATEGORY_FORGE_INPUTS" envDefault:"10"`
	MasterForgeCategories int `env:"MASTER_FORGE_CATEGORIES" envDefault:"10"`
	SeasonForgeInputs     int `env:"SEASON_FORGE_INPUTS" envDefault:"2"`

	PinTimeout           time.Duration `env:"PIN_TIMEOUT" envDefault:"15s"`
	PinAttempts          int           `env:"PIN_ATTEMPTS" envDefault:"3"`
	SubmitTimeout        time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"20s"`
	SubmitAttempts       int           `env:"SUBMIT_ATTEMPTS" envDefault:"3"`
	ExternalRetryBackoff time.Duration `env:"EXTERNAL_RETRY_BACKOFF" envDefault:"500ms"`

	ConfirmPollTimeout     time.Duration `env:"CONFIRM_POLL_TIMEOUT" envDefault:"10s"`
	ConfirmInitialInterval time.Duration `env:"CONFIRM_INITIAL_INTERVAL" envDefault:"2s"`
	ConfirmMaxInterval     time.Duration `env:"CONFIRM_MAX_INTERVAL" envDefault:"30s"`
	ConfirmMaxWait         time.Duration `env:"CONFIRM_MAX_WAIT" envDefault:"10m"`

	PendingStaleAfter time.Duration `env:"PENDING_STALE_AFTER" envDefault:"15m"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	ExpirySweepBatch  int           `env:"EXPIRY_SWEEP_BATCH" envDefault:"500"`
}

func LoadEngine() (EngineConfig, error) {
	var cfg EngineConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// DefaultEngine returns the documented defaults without consulting the environment.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		EligibilityTTL:         time.Hour,
		DailyEligibilityQuota:  20,
		CategoryForgeInputs:    10,
		MasterForgeCategories:  10,
		SeasonForgeInputs:      2,
		PinTimeout:             15 * time.Second,
		PinAttempts:            3,
		SubmitTimeout:          20 * time.Second,
		SubmitAttempts:         3,
		ExternalRetryBackoff:   500 * time.Millisecond,
		ConfirmPollTimeout:     10 * time.Second,
		ConfirmInitialInterval: 2 * time.Second,
		ConfirmMaxInterval:     30 * time.Second,
		ConfirmMaxWait:         10 * time.Minute,
		PendingStaleAfter:      15 * time.Minute,
		SweepInterval:          time.Minute,
		ExpirySweepBatch:       500,
	}
}
