// Package config defines the bot configuration: a JSON5 file overlaid with
// ZAPBOT_* environment variables. Env vars take precedence so secrets stay
// out of the file.
package config

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Webhook  WebhookConfig  `json:"webhook"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	AI       AIConfig       `json:"ai"`
	Store    StoreConfig    `json:"store"`
	FollowUp FollowUpConfig `json:"follow_up"`
	Dispatch DispatchConfig `json:"dispatch"`
	Intents  []IntentRule   `json:"intents,omitempty"`
	Catalog  []Product      `json:"catalog,omitempty"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// WebhookConfig controls inbound webhook verification and classification.
type WebhookConfig struct {
	Secret       string `json:"secret"`
	DefaultEvent string `json:"default_event"`
}

// WhatsAppConfig points at the WhatsApp bridge.
type WhatsAppConfig struct {
	BridgeURL string `json:"bridge_url"`
}

// AIConfig selects the text-completion collaborator.
type AIConfig struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base"`
	Model   string `json:"model"`
}

// StoreConfig controls durability snapshots.
type StoreConfig struct {
	SnapshotPath        string `json:"snapshot_path"`
	SnapshotIntervalMin int    `json:"snapshot_interval_min"`
	SnapshotCron        string `json:"snapshot_cron,omitempty"`
}

// FollowUpConfig controls payment reminders.
type FollowUpConfig struct {
	DelayMin int `json:"delay_min"`
}

// DispatchConfig controls outbound delivery pacing.
type DispatchConfig struct {
	SendSpacingSec int `json:"send_spacing_sec"`
}

// IntentRule is a config-level keyword rule; order in the file is the
// match order.
type IntentRule struct {
	Intent   string   `json:"intent"`
	Keywords []string `json:"keywords"`
}

// Product is a config-level catalog entry.
type Product struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	URL   string  `json:"url"`
}
