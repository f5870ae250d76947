package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/inkdesk/inkdesk/internal/config"
	"github.com/inkdesk/inkdesk/internal/logging"
	"github.com/inkdesk/inkdesk/internal/provider"
	"github.com/inkdesk/inkdesk/internal/store"
	"github.com/inkdesk/inkdesk/internal/transcript"
	"github.com/inkdesk/inkdesk/internal/tui"
	"github.com/inkdesk/inkdesk/internal/workspace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	root := flag.Arg(0)
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving workspace root: %w", err)
	}

	// Signal-aware context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logPath, err := logging.DefaultLogPath()
	if err != nil {
		return fmt.Errorf("resolving log path: %w", err)
	}
	if err := logging.Init(logPath); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Close()

	cfg, err := config.LoadDefault(root)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *debug || cfg.Debug {
		logging.SetDebug(true)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting home directory: %w", err)
	}
	globalPath := filepath.Join(homeDir, ".inkdesk", "config.json")
	projectPath := filepath.Join(root, ".inkdesk", "config.json")

	db, err := store.New(ctx, filepath.Join(homeDir, ".inkdesk", "sessions.db"))
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer db.Close()

	ws := workspace.New(root)
	chat := transcript.New()

	configs := make(map[provider.Kind]provider.Config, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		configs[provider.Kind(name)] = provider.Config{
			Command:    pc.Command,
			ExtraArgs:  pc.Args,
			Model:      pc.Model,
			ToolServer: cfg.ToolServer,
		}
	}

	controller := provider.NewController(provider.ControllerOptions{
		Configs:    configs,
		Kind:       provider.Kind(cfg.DefaultProvider),
		Policy:     provider.AgentPolicy(cfg.DefaultPolicy),
		ConfigRoot: filepath.Join(homeDir, ".inkdesk", "agents"),
		Gate:       ws,
		Store:      store.NewSessionAdapter(db, logging.WithComponent("store")),
		Sink:       chat,
		Log:        logging.WithComponent("provider"),
	})

	model := tui.New(tui.Options{
		Controller:  controller,
		Transcript:  chat,
		Workspace:   ws,
		Config:      cfg,
		GlobalPath:  globalPath,
		ProjectPath: projectPath,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		controller.Stop()
		return err
	case <-ctx.Done():
		// Restore default signal handling so a second Ctrl+C forces
		// exit.
		stop()
		controller.Stop()
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		select {
		case err := <-errChan:
			return err
		case <-shutdownCtx.Done():
			return fmt.Errorf("shutdown timeout exceeded")
		}
	}
}
