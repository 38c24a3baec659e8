// ABOUTME: Small HTTP utility commands against a running relay
// ABOUTME: history, agents, send, transcript and health all go through client.APIClient

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/agentchat/internal/client"
	"github.com/2389/agentchat/internal/store"
)

func addServerURLFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "server-url", "u", defaultServerURL, "relay server URL")
}

func newHistoryCmd() *cobra.Command {
	var (
		serverURL string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "history ROOM",
		Short: "Print a room's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := client.NewAPIClient(serverURL).Messages(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(msgs)
			}
			if len(msgs) == 0 {
				fmt.Fprintf(w, "No messages in %s.\n", args[0])
				return nil
			}
			for _, m := range msgs {
				printMessage(w, m)
			}
			return nil
		},
	}

	addServerURLFlag(cmd, &serverURL)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "return at most this many of the oldest messages (default: server limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON messages")
	return cmd
}

func printMessage(w io.Writer, m *store.Message) {
	gray := color.New(color.FgHiBlack)

	gray.Fprintf(w, "[%s] ", m.Timestamp)
	if m.Type == store.MessageTypeSystem {
		gray.Fprintf(w, "%s\n", m.Content)
		return
	}
	color.New(color.FgCyan, color.Bold).Fprintf(w, "%s", m.Sender)
	fmt.Fprintf(w, ": %s\n", m.Content)
}

func newAgentsCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "agents ROOM",
		Short: "List the participants connected to a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := client.NewAPIClient(serverURL).Agents(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintf(w, "No one is connected to %s.\n", args[0])
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(w, name)
			}
			return nil
		},
	}

	addServerURLFlag(cmd, &serverURL)
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		serverURL string
		msgType   string
	)

	cmd := &cobra.Command{
		Use:   "send ROOM SENDER MESSAGE",
		Short: "Post a message to a room",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := client.NewAPIClient(serverURL)
			if err := api.Post(cmd.Context(), args[0], args[1], args[2], store.MessageType(msgType)); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}

	addServerURLFlag(cmd, &serverURL)
	cmd.Flags().StringVarP(&msgType, "type", "t", string(store.MessageTypeChat), "message type (chat, system)")
	return cmd
}

func newTranscriptCmd() *cobra.Command {
	var (
		serverURL string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "transcript ROOM",
		Short: "Export a room's history as Markdown or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client.NewAPIClient(serverURL).Transcript(cmd.Context(), args[0], format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	addServerURLFlag(cmd, &serverURL)
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format (markdown, html)")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the relay is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.NewAPIClient(serverURL).Health(cmd.Context()); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}

	addServerURLFlag(cmd, &serverURL)
	return cmd
}
