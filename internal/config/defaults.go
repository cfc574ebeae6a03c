package config

func Defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		Remarkable: RemarkableConfig{
			RmapiPath: "/usr/local/bin/rmapi",
			Folder:    "/Articles",
		},
		Fetch: FetchConfig{
			Renderer:       "http",
			UserAgent:      "Mozilla/5.0 (compatible; rmbot/0.1; +https://github.com/ddvk/rmapi)",
			TimeoutSeconds: 30,
			MaxBodyBytes:   10 * 1024 * 1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}
