package config

import "path/filepath"

// Defaults returns a config populated with sensible local-first defaults.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Registry: RegistryConfig{
			DuplicatePolicy: "replace",
		},
		Memory: MemoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(DefaultConfigDir(), "memory.db"),
		},
		Monitor: MonitorConfig{
			Enabled:         true,
			IntervalSeconds: 30,
		},
		Fallback: FallbackConfig{
			Enabled:        false,
			APIBase:        "http://localhost:11434",
			Model:          "llama3.2:3b",
			TimeoutSeconds: 60,
		},
		Server: ServerConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8311,
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{Enabled: false},
		},
		Rules: RulesConfig{
			Dir: filepath.Join(DefaultConfigDir(), "rules"),
		},
	}
}
