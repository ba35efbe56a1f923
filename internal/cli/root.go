package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/madetocreate/ai-shield/internal/config"
	"github.com/madetocreate/ai-shield/internal/logger"
	"github.com/madetocreate/ai-shield/internal/shield"
)

var (
	configPath string
	presetName string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "aishield",
	Short: "AI Shield - inspect LLM requests before they reach the model",
	Long: `AI Shield screens prompts and agent tool calls for prompt injection,
personal data and dangerous tools, tracks model spend against budgets and
keeps a hashed audit trail of every decision.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default: ~/.aishield/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&presetName, "preset", "", "Policy preset (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
}

// ExitError ends the process with Code without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, config.DefaultConfigFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if presetName != "" {
		cfg.Preset = presetName
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Log.Level, cfg.Log.Format)
}

// openEngine loads configuration and builds an engine from it. mutate may
// adjust the config first.
func openEngine(ctx context.Context, mutate func(*config.Config)) (*shield.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	engine, err := shield.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build engine: %w", err)
	}
	return engine, cfg, nil
}

// configDir is where pins, packs and the audit log live by default.
func configDir() (string, error) {
	return config.DefaultDir()
}

func pinsPath(cfg *config.Config) (string, error) {
	if cfg.Tools.PinsFile != "" {
		return cfg.Tools.PinsFile, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.DefaultPinsFile), nil
}

func auditPath(cfg *config.Config) (string, error) {
	if cfg.Audit.File != "" {
		return cfg.Audit.File, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.DefaultLogFile), nil
}

func packsPath(cfg *config.Config) (string, error) {
	if cfg.PacksDir != "" {
		return cfg.PacksDir, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "packs"), nil
}
