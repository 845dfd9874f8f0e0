// Package config provides application configuration from the environment.
package config

import (
	"errors"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Port string `koanf:"port"`

	Onboarding OnboardingConfig `koanf:"onboarding"`
	Database   DatabaseConfig   `koanf:"database"`
	Twilio     TwilioConfig     `koanf:"twilio"`
	Web        WebConfig        `koanf:"web"`
	Log        LogConfig        `koanf:"log"`
}

// OnboardingConfig points at the remote onboarding service.
type OnboardingConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
}

type DatabaseConfig struct {
	// URL is a Postgres DSN. When empty the bridge falls back to the local
	// SQLite file at Path.
	URL  string `koanf:"url"`
	Path string `koanf:"path"`
}

type TwilioConfig struct {
	AccountSID   string `koanf:"account_sid"`
	AuthToken    string `koanf:"auth_token"`
	WhatsAppFrom string `koanf:"whatsapp_from"`
}

type WebConfig struct {
	AllowedOrigin string `koanf:"allowed_origin"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// Load reads BRIDGE_-prefixed environment variables, e.g.
// BRIDGE_ONBOARDING_URL or BRIDGE_TWILIO_ACCOUNT_SID.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("BRIDGE_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "BRIDGE_"))
		// Only the first underscore separates section from key; the rest
		// belong to the key itself (account_sid, allowed_origin, ...).
		return strings.Replace(s, "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Onboarding.URL == "" {
		return nil, errors.New("BRIDGE_ONBOARDING_URL is not set")
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"port":                 "8080",
		"database.path":        "onboarding-bridge.db",
		"twilio.whatsapp_from": "whatsapp:+14155238886", // Twilio sandbox number
		"web.allowed_origin":   "*",
		"log.level":            "info",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}
}
