package config

import (
	"os"
	"strconv"
	"time"

	"companion-api/internal/credit"
)

// NewCreditPolicyConfig builds the metering policy numbers from the
// environment, falling back to the shipped defaults. Durations use
// time.ParseDuration syntax ("8h", "168h").
func NewCreditPolicyConfig() credit.Config {
	cfg := credit.DefaultConfig()

	cfg.FreeRefillCredits = getEnvInt("CREDIT_FREE_REFILL", cfg.FreeRefillCredits)
	cfg.PremiumRefillCredits = getEnvInt("CREDIT_PREMIUM_REFILL", cfg.PremiumRefillCredits)
	cfg.LockThreshold = getEnvInt("CREDIT_LOCK_THRESHOLD", cfg.LockThreshold)
	cfg.GraceDelay = getEnvDuration("CREDIT_GRACE_DELAY", cfg.GraceDelay)
	cfg.LockCooldown = getEnvDuration("CREDIT_LOCK_COOLDOWN", cfg.LockCooldown)
	cfg.UsageWindow = getEnvDuration("CREDIT_USAGE_WINDOW", cfg.UsageWindow)

	return cfg
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
