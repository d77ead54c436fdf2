package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/priont/epos-bridge/internal/certs"
	"github.com/priont/epos-bridge/internal/config"
	"github.com/priont/epos-bridge/internal/device"
	"github.com/priont/epos-bridge/internal/journal"
	"github.com/priont/epos-bridge/internal/observability"
	"github.com/priont/epos-bridge/internal/server"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	var (
		configPath  string
		host        string
		port        int
		useTLS      bool
		printerAddr string
		paperWidth  int
		journalPath string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&host, "host", "", "Server bind address")
	flag.StringVar(&host, "H", "", "Server bind address (shorthand)")
	flag.IntVar(&port, "port", 0, "Server port")
	flag.IntVar(&port, "p", 0, "Server port (shorthand)")
	flag.BoolVar(&useTLS, "https", false, "Enable HTTPS with a self-signed certificate")
	flag.StringVar(&printerAddr, "printer", "", "Printer: IP address, USB:vid:pid, COM port, or device path")
	flag.IntVar(&paperWidth, "width", 0, "Receipt width in pixels")
	flag.StringVar(&journalPath, "journal", "", "Job journal SQLite path (\"off\" disables the journal)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("epos-bridge " + Version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	// Flags win over the config file and environment.
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if useTLS {
		cfg.Server.TLS = true
	}
	if printerAddr != "" {
		cfg.Printer.Address = printerAddr
	}
	if paperWidth != 0 {
		cfg.Printer.PaperWidth = paperWidth
	}
	if journalPath == "off" {
		cfg.Journal.Enabled = false
	} else if journalPath != "" {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = journalPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		if cfg.Printer.Address == "" {
			fmt.Fprintln(os.Stderr, "Pass --printer with a network address (192.168.1.87), USB IDs (USB:0x04b8:0x0202), a COM port, or a device path.")
		}
		os.Exit(1)
	}

	logger := observability.InitLogger("epos-bridge", cfg.Logging.Level, cfg.Logging.Format)

	endpoint, err := device.ParseEndpoint(cfg.Printer.Address, cfg.Printer.DefaultPort)
	if err != nil {
		logger.Fatal().Err(err).Str("address", cfg.Printer.Address).Msg("Unusable printer address")
	}

	session := device.NewSession(endpoint, device.Options{
		MaxAttempts:  cfg.Printer.MaxAttempts,
		RetryDelay:   cfg.Printer.RetryDelay,
		DialTimeout:  cfg.Printer.DialTimeout,
		WriteTimeout: cfg.Printer.WriteTimeout,
		Baud:         cfg.Printer.Baud,
		Logger:       logger,
	})
	defer session.Close()

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Journal.Path).Msg("Failed to open job journal")
		}
		defer jnl.Close()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	scheme := "http"
	if cfg.Server.TLS {
		scheme = "https"

		generated, err := certs.Ensure(cfg.Server.CertFile, cfg.Server.KeyFile, cfg.Server.Host)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to prepare TLS certificate")
		}
		if generated {
			logger.Info().Str("cert", cfg.Server.CertFile).Msg("Generated self-signed certificate")
		} else {
			logger.Info().Str("cert", cfg.Server.CertFile).Msg("Using existing certificate")
		}
	}

	srv := server.New(cfg, session, jnl, logger)

	logger.Info().
		Str("version", Version).
		Str("scheme", scheme).
		Str("addr", addr).
		Str("printer", endpoint.String()).
		Str("platform", runtime.GOOS).
		Int("paper_width", cfg.Printer.PaperWidth).
		Msg("Printer proxy starting")
	if cfg.Server.TLS {
		logger.Info().Msg("Visit the proxy URL in a browser and accept the self-signed certificate before printing")
	}

	serverErr := make(chan error, 1)
	go func() {
		if cfg.Server.TLS {
			serverErr <- srv.RunTLS(addr, cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serverErr <- srv.Run(addr)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Fatal().Err(err).Msg("Server error")
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		session.Close()
		if jnl != nil {
			jnl.Close()
		}
	}
}
