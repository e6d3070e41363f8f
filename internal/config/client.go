package config

import "strings"

// ClientConfig holds settings for the audioctl command line client.
type ClientConfig struct {
	ServerURL string
}

// LoadClient reads client configuration from the environment.
func LoadClient() *ClientConfig {
	return &ClientConfig{
		ServerURL: strings.TrimRight(getEnvOrDefault("AUDIOSNIFF_URL", "http://127.0.0.1:8190"), "/"),
	}
}
