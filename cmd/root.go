// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/internal/config"
	"github.com/mvoss9k/tabpilot/internal/observability"
)

// NewRootCommand builds a fresh command tree. Each invocation gets its own
// instance so flag state never leaks between executions.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "tabpilot",
		Short: "Tabpilot drives a web page toward a natural-language goal.",
		Long: `Tabpilot runs an observe-decide-act loop against a page: it extracts
what the page says, asks a language model for the next action, executes it,
and repeats until the task is done or a limit is hit.`,
		// Version is set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(cfgFile); err != nil {
				return err
			}
			cfg, err := resolveConfig()
			if err != nil {
				// Fall back to a console logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{
					Level: "info", Format: "console", ServiceName: "tabpilot",
				})
				return err
			}
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("starting tabpilot", zap.String("version", Version))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./tabpilot.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newRunCmd())
	root.AddCommand(newExtractCmd())
	return root
}

// Execute runs the command tree under a signal-aware context.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// initializeConfig registers defaults, wires the environment, and reads the
// optional config file into the global viper instance.
func initializeConfig(cfgFile string) error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("tabpilot")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TABPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment carry the run.
	}
	return nil
}

// resolveConfig unmarshals the current viper state into a validated Config.
// Commands that bind flags re-run this in RunE so overrides apply with the
// right precedence.
func resolveConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
