package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	PostgresURL string `env:"POSTGRES_URL"`

	// CapSecret signs capability tokens. Left empty, a random per-process
	// secret is generated, which invalidates caps across restarts.
	CapSecret string `env:"CAP_SECRET"`

	RoomCreationFee uint64 `env:"ROOM_CREATION_FEE" envDefault:"0"`
	FeeCollector    string `env:"FEE_COLLECTOR" envDefault:"operator"`

	MaxHoldTimeMs    int64  `env:"MAX_HOLD_TIME_MS" envDefault:"10000"`
	ExplosionRateBps uint64 `env:"EXPLOSION_RATE_BPS" envDefault:"10000"`
	RewardDivisor    uint64 `env:"REWARD_DIVISOR" envDefault:"100"`
	DangerZoneBps    uint64 `env:"DANGER_ZONE_BPS" envDefault:"5000"`

	ExplodePollInterval time.Duration `env:"EXPLODE_POLL_INTERVAL" envDefault:"250ms"`
	SnapshotInterval    time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"30s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	if cfg.CapSecret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return Config{}, fmt.Errorf("generate cap secret: %w", err)
		}
		cfg.CapSecret = hex.EncodeToString(buf)
		log.Println("CAP_SECRET not set, generated ephemeral signing secret")
	}
	return cfg, nil
}

func (c Config) tuning() GameTuning {
	return GameTuning{
		MaxHoldTimeMs:    c.MaxHoldTimeMs,
		ExplosionRateBps: c.ExplosionRateBps,
		RewardDivisor:    c.RewardDivisor,
		DangerZoneBps:    c.DangerZoneBps,
	}
}

func (c Config) hubConfig() HubConfig {
	return HubConfig{
		RoomCreationFee: c.RoomCreationFee,
		FeeCollector:    c.FeeCollector,
	}
}
