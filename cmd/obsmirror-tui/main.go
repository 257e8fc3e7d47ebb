package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/obsmirror/obsmirror/internal/config"
	"github.com/obsmirror/obsmirror/internal/obs"
	"github.com/obsmirror/obsmirror/internal/tui/app"
)

func main() {
	configPath := flag.String("config", "obsmirror.yaml", "Path to config file")
	host := flag.String("host", "", "Override OBS websocket host")
	port := flag.Int("port", 0, "Override OBS websocket port")
	password := flag.String("password", "", "Override OBS websocket password")
	logPath := flag.String("log", "", "Write debug logs to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.OBS.Host = *host
	}
	if *port > 0 {
		cfg.OBS.Port = *port
	}
	if *password != "" {
		cfg.OBS.Password = *password
	}

	// The alt screen owns stdout, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	opts := cfg.ClientOptions(logger)
	client := obs.New(opts)
	m := app.New(client, opts.URL(), app.Options{
		VolumeStep:      cfg.TUI.VolumeStep,
		RefreshInterval: cfg.TUI.RefreshInterval,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	_, runErr := p.Run()
	m.Close()
	if err := client.Destroy(); err != nil {
		logger.Warn("destroy failed", "error", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
