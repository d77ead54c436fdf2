// Package config resolves the proxy's runtime settings from defaults, an
// optional YAML file, and environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Printer PrinterConfig `yaml:"printer"`
	Journal JournalConfig `yaml:"journal"`
	Logging LoggingConfig `yaml:"logging"`
	Admin   AdminConfig   `yaml:"admin"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type PrinterConfig struct {
	// Address selects the printer transport: host[:port], USB:vid:pid,
	// a /dev path, or a COM port.
	Address      string        `yaml:"address"`
	PaperWidth   int           `yaml:"paper_width"`
	DefaultPort  int           `yaml:"default_port"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Baud         int           `yaml:"baud"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AdminConfig struct {
	// Token, when set, is required as a bearer token on /admin routes.
	Token string `yaml:"token"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8000,
			CertFile: "server.crt",
			KeyFile:  "server.key",
		},
		Printer: PrinterConfig{
			Address:      defaultPrinterAddress(),
			PaperWidth:   576,
			DefaultPort:  9100,
			DialTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			Baud:         9600,
			MaxAttempts:  3,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "./epos_journal.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// defaultPrinterAddress is the kernel usblp node on platforms that have
// one. Windows has no sensible default; the address must be configured.
func defaultPrinterAddress() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	return "/dev/usb/lp0"
}

// Load reads configuration from the given YAML file over the built-in
// defaults. A missing file is not an error; the defaults stand.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from EPOS_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("EPOS_HOST"); v != "" {
		c.Server.Host = v
	}

	if v := os.Getenv("EPOS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("EPOS_TLS"); v != "" {
		if tls, err := strconv.ParseBool(v); err == nil {
			c.Server.TLS = tls
		}
	}

	if v := os.Getenv("EPOS_PRINTER"); v != "" {
		c.Printer.Address = v
	}

	if v := os.Getenv("EPOS_PAPER_WIDTH"); v != "" {
		if width, err := strconv.Atoi(v); err == nil {
			c.Printer.PaperWidth = width
		}
	}

	if v := os.Getenv("EPOS_JOURNAL_PATH"); v != "" {
		c.Journal.Path = v
	}

	if v := os.Getenv("EPOS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv("EPOS_ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.TLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("tls requires cert_file and key_file")
		}
	}

	if c.Printer.Address == "" {
		return fmt.Errorf("printer address is required")
	}

	if c.Printer.PaperWidth < 8 {
		return fmt.Errorf("paper width must be at least 8 pixels, got %d", c.Printer.PaperWidth)
	}

	if c.Printer.DefaultPort < 1 || c.Printer.DefaultPort > 65535 {
		return fmt.Errorf("printer default port must be between 1 and 65535, got %d", c.Printer.DefaultPort)
	}

	if c.Printer.DialTimeout < 0 {
		return fmt.Errorf("dial timeout must be non-negative")
	}

	if c.Printer.WriteTimeout < 0 {
		return fmt.Errorf("write timeout must be non-negative")
	}

	if c.Printer.Baud < 1 {
		return fmt.Errorf("baud rate must be positive, got %d", c.Printer.Baud)
	}

	if c.Printer.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Printer.MaxAttempts)
	}

	if c.Printer.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be non-negative")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path is required when the journal is enabled")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: console, json)", c.Logging.Format)
	}

	return nil
}
