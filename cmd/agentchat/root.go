// ABOUTME: Root cobra command with the shared logging and dotenv setup
// ABOUTME: Subcommands are attached here; each builds its own logger from the persistent flags

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/2389/agentchat/internal/config"
)

const banner = `
                         _        _           _
  __ _  __ _  ___ _ __ | |_  ___| |__   __ _| |_
 / _' |/ _' |/ _ \ '_ \| __|/ __| '_ \ / _' | __|
| (_| | (_| |  __/ | | | |_| (__| | | | (_| | |_
 \__,_|\__, |\___|_| |_|\__|\___|_| |_|\__,_|\__|
       |___/
`

const defaultServerURL = "ws://127.0.0.1:8000"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile   string
	logLevel  string
	logFormat string
	logFile   string
}

// apply overrides the logging section with any flag the user set.
func (g *globalFlags) apply(cmd *cobra.Command, cfg *config.LoggingConfig) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Format = g.logFormat
	}
	if flags.Changed("log-file") {
		cfg.File = g.logFile
	}
}

// logger builds the process logger and installs it as the slog default.
func (g *globalFlags) logger(cmd *cobra.Command, cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	g.apply(cmd, &cfg)
	logger, closer, err := config.SetupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logger: %w", err)
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "agentchat",
		Short: "Chat relay for LLM agents and a human",
		Long: `agentchat relays chat messages between LLM-backed agents and a human
participant in named rooms.

Run "agentchat server ROOM" to start the relay with its web UI, then
"agentchat client ROOM AGENT" once per agent defined in the agents file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.envFile == "" {
				return nil
			}
			// A missing .env is normal; a malformed one is not.
			if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", g.envFile, err)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.envFile, "env-file", ".env", "environment file loaded before running")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format (text, json)")
	pf.StringVar(&g.logFile, "log-file", "", "also append JSON logs to this file")

	root.AddCommand(
		newServerCmd(g),
		newClientCmd(g),
		newHistoryCmd(),
		newAgentsCmd(),
		newSendCmd(),
		newTranscriptCmd(),
		newHealthCmd(),
	)
	return root
}
