package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/sprout/internal/agent"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
	}
	cmd.AddCommand(newChatSendCmd())
	return cmd
}

func newChatSendCmd() *cobra.Command {
	var (
		threadID string
		who      callerFlags
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Run one turn and print the answer",
		Long: "Run one turn as the given caller. Without --thread a new conversation is started " +
			"and its thread ID is printed to stderr for follow-up turns.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if len(a.providers) == 0 {
				return errNoProvider
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			caller := who.caller()
			out := cmd.OutOrStdout()
			if threadID == "" {
				res, err := a.chat.StartConversation(ctx, message, caller)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintln(out, res.Response)
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[thread=%s]\n", res.ThreadID)
				return nil
			}

			res, err := a.chat.ContinueConversation(ctx, threadID, message, caller)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintln(out, res.Response)
			return nil
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "continue an existing thread")
	who.register(cmd.Flags())
	return cmd
}

// userError turns a classified failure into the text an end user would
// see, keeping the kind for the operator.
func userError(err error) error {
	kind := agent.KindOf(err)
	log.Debug().Err(err).Str("kind", string(kind)).Msg("turn failed")
	return fmt.Errorf("%s (%s)", agent.UserMessage(kind), kind)
}
