package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/priont/epos-bridge/internal/console"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	var (
		serverURL   string
		insecure    bool
		showVersion bool
	)

	flag.StringVar(&serverURL, "server", "http://localhost:8000", "Proxy server URL")
	flag.StringVar(&serverURL, "s", "http://localhost:8000", "Proxy server URL (shorthand)")
	flag.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	flag.BoolVar(&insecure, "k", false, "Skip TLS certificate verification (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("epos-console %s\n", Version)
		return
	}

	wsURL, err := console.SocketURL(serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	program := tea.NewProgram(console.NewMonitor(wsURL, insecure), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
