package config

// DefaultValues returns a fresh copy of the built-in configuration layer.
func DefaultValues() map[string]any {
	return map[string]any{
		"telegram": map[string]any{
			"token":           "",
			"api_url":         "https://api.telegram.org",
			"poll_timeout":    "25s",
			"request_timeout": "35s",
			"connect_timeout": "10s",
			"send_rate":       25.0,
			"send_burst":      5,
		},
		"auth": map[string]any{
			"allowed_users": []any{},
			"admin_id":      0,
		},
		"rate_limit": map[string]any{
			"mode":                RateLimitModeProgressive,
			"commands_per_minute": 10,
			"window":              "60s",
			"base_penalty":        "30s",
			"max_penalty":         "300s",
			"clean_period":        "24h",
			"sweep_interval":      "5m",
		},
		"retry": map[string]any{
			"max_retries":   5,
			"initial_delay": "2s",
			"max_delay":     "30s",
		},
		"wireguard": map[string]any{
			"manager_path":    "/usr/local/bin/wg-manager",
			"interface":       "wg0",
			"command_timeout": "30s",
			"max_clients":     50,
		},
		"server": map[string]any{
			"host":             "127.0.0.1",
			"port":             8080,
			"read_timeout":     "15s",
			"write_timeout":    "15s",
			"idle_timeout":     "60s",
			"shutdown_timeout": "10s",
			"admin_token":      "",
		},
		"store": map[string]any{
			"driver":     "libsql",
			"path":       "",
			"url":        "",
			"auth_token": "",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "STRUCTURED",
		},
		"metrics": map[string]any{
			"enabled": true,
			"port":    9090,
		},
		"health": map[string]any{
			"enabled": true,
		},
		"workers": 4,
	}
}
