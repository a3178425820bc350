package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Webhook: WebhookConfig{
			DefaultEvent: "abandoned_cart",
		},
		WhatsApp: WhatsAppConfig{
			BridgeURL: "ws://localhost:3001",
		},
		AI: AIConfig{
			Model: "gpt-4o-mini",
		},
		Store: StoreConfig{
			SnapshotPath:        "data/state.json",
			SnapshotIntervalMin: 5,
		},
		FollowUp: FollowUpConfig{
			DelayMin: 5,
		},
		Dispatch: DispatchConfig{
			SendSpacingSec: 2,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("ZAPBOT_WEBHOOK_SECRET", &c.Webhook.Secret)
	envStr("ZAPBOT_BRIDGE_URL", &c.WhatsApp.BridgeURL)
	envStr("ZAPBOT_AI_API_KEY", &c.AI.APIKey)
	envStr("ZAPBOT_AI_API_BASE", &c.AI.APIBase)
	envStr("ZAPBOT_AI_MODEL", &c.AI.Model)
	envStr("ZAPBOT_SNAPSHOT_PATH", &c.Store.SnapshotPath)
	envStr("ZAPBOT_HOST", &c.Server.Host)

	if v := os.Getenv("ZAPBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
}
