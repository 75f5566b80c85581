// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/agent"
	"github.com/mvoss9k/tabpilot/internal/browser"
	"github.com/mvoss9k/tabpilot/internal/cache"
	"github.com/mvoss9k/tabpilot/internal/config"
	"github.com/mvoss9k/tabpilot/internal/dom"
	"github.com/mvoss9k/tabpilot/internal/executor"
	"github.com/mvoss9k/tabpilot/internal/extract"
	"github.com/mvoss9k/tabpilot/internal/llmclient"
	"github.com/mvoss9k/tabpilot/internal/observability"
	"github.com/mvoss9k/tabpilot/internal/resolver"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var (
		task   string
		rawURL string
		static bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an autonomous task against a page",
		Long: `Run opens the page, then loops: observe the page, ask the model for
the next action, execute it. The terminal run record is printed as JSON.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			if err := viper.BindPFlag("agent.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			if err := viper.BindPFlag("agent.timeout", cmd.Flags().Lookup("timeout")); err != nil {
				return err
			}
			return viper.BindPFlag("llm.provider", cmd.Flags().Lookup("provider"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-resolve now that the flag bindings from PreRunE apply.
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			target := rawURL
			if !strings.Contains(target, "://") {
				target = "https://" + target
			}

			logger.Info("starting task run",
				zap.String("task", task),
				zap.String("url", target),
				zap.Bool("static", static),
				zap.Int("max_steps", cfg.Agent.MaxSteps),
				zap.Duration("timeout", cfg.Agent.Timeout),
			)

			doc, tabID, closeDoc, err := openDocument(ctx, cfg, target, static, logger)
			if err != nil {
				return err
			}
			defer closeDoc()

			gw, err := llmclient.New(cfg.LLM, logger)
			if err != nil {
				return err
			}

			ext := extract.New(cfg.Extractor, logger)
			store := cache.New(cfg.Cache, logger)
			defer store.Close()

			res := resolver.New(cfg.Resolver, logger)
			exec := executor.New(doc, res, logger)
			obs := browser.NewObserver(doc, ext, store, tabID, logger)

			controller := agent.New(cfg.Agent, gw, exec, obs, logger)
			run := controller.Start(ctx, task, nil)

			logger.Info("run finished",
				zap.String("run_id", run.ID),
				zap.String("status", string(run.Status)),
				zap.Int("steps", run.StepCount()),
				zap.Duration("elapsed", time.Since(run.StartedAt)),
			)

			out, err := json.MarshalIndent(run, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render run: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if run.Status == schemas.StatusErrored {
				return fmt.Errorf("run errored: %s", run.Error)
			}
			return nil
		},
	}

	runCmd.Flags().StringVarP(&task, "task", "t", "", "natural-language goal for the agent (required)")
	runCmd.Flags().StringVarP(&rawURL, "url", "u", "", "page the run starts on (required)")
	runCmd.Flags().BoolVar(&static, "static", false, "fetch and parse the page statically instead of driving a browser")
	runCmd.Flags().Int("max-steps", 0, "step budget for this run (overrides config)")
	runCmd.Flags().Duration("timeout", 0, "wall-clock budget for this run (overrides config)")
	runCmd.Flags().String("provider", "", "model provider: openai or gemini (overrides config)")
	runCmd.MarkFlagRequired("task")
	runCmd.MarkFlagRequired("url")

	return runCmd
}

// openDocument opens the starting page as either a live browser session or a
// statically fetched document. The returned closer is safe to call once.
func openDocument(ctx context.Context, cfg *config.Config, target string, static bool, logger *zap.Logger) (dom.Document, string, func(), error) {
	if static {
		s, err := browser.StaticLoad(ctx, target, cfg.Browser.UserAgent, logger)
		if err != nil {
			return nil, "", nil, err
		}
		return s, s.ID(), func() {}, nil
	}

	s, err := browser.NewSession(ctx, cfg.Browser, logger)
	if err != nil {
		return nil, "", nil, err
	}
	if err := s.Navigate(ctx, target); err != nil {
		s.Close()
		return nil, "", nil, err
	}
	return s, s.ID(), s.Close, nil
}
