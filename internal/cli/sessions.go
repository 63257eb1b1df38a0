package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show and delete conversation threads",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsHistoryCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var who callerFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the caller's threads, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.chat.ListSessions(cmd.Context(), who.caller())
			if err != nil {
				return userError(err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversations.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "THREAD\tUPDATED\tTITLE")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.UpdatedAt.Local().Format(time.DateTime), s.Title)
			}
			return tw.Flush()
		},
	}
	who.register(cmd.Flags())
	return cmd
}

func newSessionsHistoryCmd() *cobra.Command {
	var who callerFlags
	cmd := &cobra.Command{
		Use:   "history <thread-id>",
		Short: "Print a thread's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			thread, err := a.chat.GetHistory(cmd.Context(), args[0], who.caller())
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", thread.Title)
			for _, m := range thread.Messages {
				fmt.Fprintf(out, "[%s] %s:\n%s\n\n", m.Timestamp.Local().Format(time.DateTime), m.Role, m.Content)
			}
			return nil
		},
	}
	who.register(cmd.Flags())
	return cmd
}

func newSessionsDeleteCmd() *cobra.Command {
	var who callerFlags
	cmd := &cobra.Command{
		Use:   "delete <thread-id>",
		Short: "Delete a thread with its history and checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.chat.DeleteSession(cmd.Context(), args[0], who.caller()); err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
	who.register(cmd.Flags())
	return cmd
}
