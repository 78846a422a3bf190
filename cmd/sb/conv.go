package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/store"
)

func newConvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conv",
		Short: "Conversation management commands",
	}

	cmd.AddCommand(newConvListCmd())
	cmd.AddCommand(newConvStopCmd())
	cmd.AddCommand(newConvStartCmd())
	cmd.AddCommand(newConvResolveCmd())
	cmd.AddCommand(newConvBuffersCmd())
	return cmd
}

func newConvListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvList(cmd, configPath, status)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active|stopped)")
	return cmd
}

func runConvList(cmd *cobra.Command, configPath, status string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	convs, err := store.ListConversations(gormDB, status)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DIALOG\tSTATUS\tCONTACT\tLEAD\tUPDATED")
	for _, c := range convs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.DialogID, c.Status, c.ContactName, c.LeadID,
			c.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func newConvStopCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stop <dialog-id>",
		Short: "Silence the bot for a conversation (human takeover)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvSetStatus(cmd, configPath, args[0], models.StatusStopped)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func newConvStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start <dialog-id>",
		Short: "Resume automatic replies for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvSetStatus(cmd, configPath, args[0], models.StatusActive)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runConvSetStatus(cmd *cobra.Command, configPath, dialogID, status string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if err := store.SetStatus(gormDB, dialogID, status); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Conversation %s is now %s\n", dialogID, status)
	return nil
}

func newConvResolveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resolve <dialog-id>",
		Short: "Close out a takeover without escalating",
		Long:  "Discards the pending buffer and reactivates the bot. Use when staff handled the buffered messages directly and the AI should not see them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvResolve(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runConvResolve(cmd *cobra.Command, configPath, dialogID string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if err := store.DeleteBuffer(gormDB, dialogID); err != nil {
		return err
	}
	if err := store.SetStatus(gormDB, dialogID, models.StatusActive); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Conversation %s resolved: buffer discarded, bot active\n", dialogID)
	return nil
}

func newConvBuffersCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "buffers",
		Short: "List pending buffers and their wait times",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvBuffers(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func runConvBuffers(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	bufs, err := store.ListBuffers(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(bufs) == 0 {
		fmt.Fprintln(out, "No pending buffers.")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DIALOG\tWAITING\tSINCE LAST TOUCH\tMESSAGES")
	for _, b := range bufs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			b.DialogID,
			now.Sub(b.CreatedAt).Round(time.Minute),
			now.Sub(b.LastTouchedAt).Round(time.Minute),
			1+countNewlines(b.AccumulatedText))
	}
	return w.Flush()
}

func countNewlines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
