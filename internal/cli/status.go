package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/sprout/internal/config"
	"github.com/soyeahso/sprout/internal/gateway"
	"github.com/soyeahso/sprout/internal/llm"
	"github.com/soyeahso/sprout/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sprout status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", version.Current())

			fmt.Fprintf(out, "Config:   %s", paths.Config)
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprint(out, " (not found, using defaults)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Data:     %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:     %s\n\n", paths.Logs)

			dbPath := paths.DatabasePath(cfg)
			dbState := "not created yet (run `sprout data seed` or `sprout serve`)"
			if _, err := os.Stat(dbPath); err == nil {
				dbState = "present"
			}
			fmt.Fprintf(out, "Database: %s (%s)\n", dbPath, dbState)

			tokenState := "not set"
			if gateway.GatewayToken(cfg.Gateway.Auth) != "" {
				tokenState = "set"
			}
			fmt.Fprintf(out, "Gateway:  port=%d bind=%s token=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind, tokenState)

			providers := llm.NewRegistryFromConfig(cfg.Model, log).List()
			if len(providers) > 0 {
				fmt.Fprintf(out, "Model:    %s via %s", cfg.Model.Model, strings.Join(providers, ", "))
			} else {
				fmt.Fprintf(out, "Model:    %s (no provider available)", cfg.Model.Model)
			}
			if len(cfg.Model.Fallbacks) > 0 {
				fmt.Fprintf(out, " fallbacks=%s", strings.Join(cfg.Model.Fallbacks, ","))
			}
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Chat:     agent=%s timeout=%ds recursion=%d roles=%s checkpoints=%s\n",
				cfg.Chat.AgentName, cfg.Chat.TimeoutSeconds, cfg.Chat.RecursionLimit,
				strings.Join(cfg.Chat.AllowedRoles, ","), cfg.Chat.CheckpointStore)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}
}
