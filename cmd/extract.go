// File: cmd/extract.go
package cmd

import (
	"fmt"
	"strings"
	"unicode/utf8"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/mvoss9k/tabpilot/internal/agent"
	"github.com/mvoss9k/tabpilot/internal/browser"
	"github.com/mvoss9k/tabpilot/internal/cache"
	"github.com/mvoss9k/tabpilot/internal/extract"
	"github.com/mvoss9k/tabpilot/internal/observability"
)

// newExtractCmd creates and configures the `extract` command.
func newExtractCmd() *cobra.Command {
	var (
		rawURL  string
		quality string
		asJSON  bool
	)

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Fetch a page and print its extracted observation",
		Long: `Extract fetches the page statically and runs the observation pipeline
on it, without involving a model. Useful for inspecting what the agent
would see.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			target := rawURL
			if !strings.Contains(target, "://") {
				target = "https://" + target
			}

			s, err := browser.StaticLoad(ctx, target, cfg.Browser.UserAgent, logger)
			if err != nil {
				return err
			}

			ext := extract.New(cfg.Extractor, logger)
			store := cache.New(cfg.Cache, logger)
			defer store.Close()
			obs := browser.NewObserver(s, ext, store, s.ID(), logger)

			observation, err := obs.Observe(ctx, agent.ObserveOptions{Quality: quality})
			if err != nil {
				return err
			}

			if asJSON {
				out, err := json.MarshalIndent(observation, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to render observation: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "URL:    %s\n", observation.URL)
			fmt.Fprintf(w, "Title:  %s\n", observation.Title)
			fmt.Fprintf(w, "Hash:   %s\n", observation.ContentHash)
			fmt.Fprintf(w, "Tokens: content=%d chunks=%d markup=%d total=%d\n",
				observation.Budget.Content, observation.Budget.Chunks,
				observation.Budget.Markup, observation.Budget.Total)
			fmt.Fprintf(w, "Chunks: %d\n\n", len(observation.Chunks))
			fmt.Fprintln(w, displayExcerpt(observation.Content, 600))
			return nil
		},
	}

	extractCmd.Flags().StringVarP(&rawURL, "url", "u", "", "page to extract (required)")
	extractCmd.Flags().StringVarP(&quality, "quality", "q", "", "extraction quality: fast, balanced, or thorough")
	extractCmd.Flags().BoolVar(&asJSON, "json", false, "print the full observation as JSON")
	extractCmd.MarkFlagRequired("url")

	return extractCmd
}

func displayExcerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
