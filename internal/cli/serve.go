package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/soyeahso/sprout/internal/gateway"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
		seed bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg
			if port != 0 {
				c.Gateway.Port = port
			}
			if bind != "" {
				c.Gateway.Bind = bind
			}

			a, err := buildApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(a.providers) == 0 {
				log.Warn().Err(errNoProvider).Msg("chat turns will fail until a provider is configured")
			} else {
				log.Info().Strs("providers", a.providers).Str("model", c.Model.Model).Msg("model providers available")
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signalContext(cmd)
			defer stop()

			if seed {
				if err := seedDemo(ctx, a); err != nil {
					return err
				}
			}

			srv := gateway.New(c, log,
				gateway.WithConversations(a.chat),
				gateway.WithHooks(a.hooks),
				gateway.WithGatherer(a.registry),
				gateway.WithMetrics(a.metrics),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&seed, "seed", false, "load demo data into an empty database before serving")

	return cmd
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
