package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	Port              string
	RegistryFile      string
	DockerHost        string
	LocalName         string
	SSHConnectTimeout time.Duration
	SSHKnownHosts     string
	RemoteSudo        bool
	FanOutLimit       int
	LogLevel          string
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() (*Config, error) {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("SSH_CONNECT_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("SSH_CONNECT_TIMEOUT: %w", err)
	}
	sudo, err := strconv.ParseBool(getEnv("REMOTE_SUDO", "true"))
	if err != nil {
		return nil, fmt.Errorf("REMOTE_SUDO: %w", err)
	}
	limit, err := strconv.Atoi(getEnv("FANOUT_LIMIT", "8"))
	if err != nil {
		return nil, fmt.Errorf("FANOUT_LIMIT: %w", err)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		RegistryFile:      getEnv("REGISTRY_FILE", "servers.json"),
		DockerHost:        getEnv("DOCKER_HOST", ""),
		LocalName:         getEnv("LOCAL_NAME", "local"),
		SSHConnectTimeout: timeout,
		SSHKnownHosts:     getEnv("SSH_KNOWN_HOSTS", ""),
		RemoteSudo:        sudo,
		FanOutLimit:       limit,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// BindFlags registers command line overrides for every field. Defaults are
// the values already loaded from the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Port, "port", "p", c.Port, "HTTP listen port")
	fs.StringVar(&c.RegistryFile, "registry", c.RegistryFile, "path to the remote host registry file")
	fs.StringVar(&c.DockerHost, "docker-host", c.DockerHost, "local Docker engine address (default from environment)")
	fs.StringVar(&c.LocalName, "local-name", c.LocalName, "display name of the local engine")
	fs.DurationVar(&c.SSHConnectTimeout, "ssh-connect-timeout", c.SSHConnectTimeout, "SSH connect and handshake timeout")
	fs.StringVar(&c.SSHKnownHosts, "ssh-known-hosts", c.SSHKnownHosts, "known_hosts file for host key verification (empty trusts any key)")
	fs.BoolVar(&c.RemoteSudo, "remote-sudo", c.RemoteSudo, "run remote docker commands through sudo")
	fs.IntVar(&c.FanOutLimit, "fanout-limit", c.FanOutLimit, "maximum concurrent remote inventory fetches")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
}

// Validate checks values that cannot be caught while parsing.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.RegistryFile == "" {
		return fmt.Errorf("registry file is required")
	}
	if c.SSHConnectTimeout <= 0 {
		return fmt.Errorf("ssh connect timeout must be positive")
	}
	if c.FanOutLimit < 1 {
		return fmt.Errorf("fanout limit must be at least 1")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
