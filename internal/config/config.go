package config

import (
	"flag"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Mode         string
	ServerURL    string
	SocketURL    string
	AuthToken    string
	DatabasePath string
	MCPAddress   string
	LogLevel     string
}

func Load() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".clinic-chat-bridge")

	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", "server", "Run mode: server, interactive, or headless")
	flag.StringVar(&cfg.ServerURL, "server", getEnv("CHAT_SERVER_URL", "http://localhost:5000"), "Chat backend base URL")
	flag.StringVar(&cfg.SocketURL, "socket", getEnv("CHAT_SOCKET_URL", ""), "Push channel URL (derived from -server when empty)")
	flag.StringVar(&cfg.AuthToken, "token", getEnv("CHAT_TOKEN", ""), "Bearer token for the chat backend")
	flag.StringVar(&cfg.DatabasePath, "db", getEnv("CHAT_DATABASE_PATH", filepath.Join(dataDir, "chat.db")), "Message archive file path")
	flag.StringVar(&cfg.MCPAddress, "mcp-port", getEnv("CHAT_MCP_ADDRESS", "127.0.0.1:8080"), "MCP SSE server address")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("CHAT_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.Parse()

	if cfg.SocketURL == "" {
		cfg.SocketURL = socketURLFrom(cfg.ServerURL)
	}

	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)

	return cfg
}

// socketURLFrom derives the push channel endpoint from the HTTP base URL.
func socketURLFrom(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket"
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
