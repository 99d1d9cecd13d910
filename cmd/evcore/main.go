package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"evcore/internal/config"
	"evcore/internal/domain"
	"evcore/internal/fallback"
	"evcore/internal/memory"
	"evcore/internal/registry"
	"evcore/internal/rules"
	"evcore/internal/skill"
	"evcore/internal/trigger"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "evcore",
		Short: "evcore: command dispatcher with a proactive trigger engine",
		Long:  "evcore routes free-text commands to registered units and fires rule-based proactive actions on matching input.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.evcore/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(execCmd())
	root.AddCommand(replCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config, memory database, and rules directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Rules.Dir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "rules", cfg.Rules.Dir)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	applyLogLevel(cfg.General.LogLevel)
	return cfg
}

func applyLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// agentParts is everything a command needs to serve requests.
type agentParts struct {
	reg        *registry.Registry
	dispatcher *registry.Dispatcher
	engine     *trigger.Engine
	store      domain.MemoryStore
}

func (p *agentParts) close() {
	if p.store != nil {
		p.store.Close()
	}
}

// buildAgent wires the registry, trigger engine, memory store, fallback, and
// user rules according to the config.
func buildAgent(cfg *config.Config) (*agentParts, error) {
	var store domain.MemoryStore
	if cfg.Memory.Enabled {
		s, err := memory.NewSQLiteStore(cfg.Memory.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
		store = s
	}

	reg := registry.NewRegistry(registry.DuplicatePolicy(cfg.Registry.DuplicatePolicy), logger)
	if err := skill.RegisterBuiltins(reg, store); err != nil {
		return nil, err
	}

	engine := trigger.NewEngine(logger)
	engine.SetPeriod(time.Duration(cfg.Monitor.IntervalSeconds) * time.Second)
	if err := skill.RegisterActions(engine, store, logger); err != nil {
		return nil, err
	}

	files, err := rules.LoadDirectory(cfg.Rules.Dir, logger)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := rules.Apply(f, engine, reg, logger); err != nil {
			return nil, fmt.Errorf("apply rules: %w", err)
		}
	}

	var fb domain.Fallback
	if cfg.Fallback.Enabled {
		fb = fallback.NewOllama(fallback.OllamaConfig{
			APIBase: cfg.Fallback.APIBase,
			Model:   cfg.Fallback.Model,
			Timeout: time.Duration(cfg.Fallback.TimeoutSeconds) * time.Second,
			Logger:  logger,
		})
	}

	return &agentParts{
		reg:        reg,
		dispatcher: registry.NewDispatcher(reg, fb, logger),
		engine:     engine,
		store:      store,
	}, nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Run: func(cmd *cobra.Command, args []string) {
			printJSON(loadConfig())
		},
	})
	return cmd
}
