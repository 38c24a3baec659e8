// ABOUTME: "agentchat server" command: runs the relay, HTTP API and web UI for one default room
// ABOUTME: Flags override the optional YAML config file, which overrides the built-in defaults

package main

import (
	"fmt"
	"io"
	"net/url"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/agentchat/internal/config"
	"github.com/2389/agentchat/internal/gateway"
)

type serverFlags struct {
	host       string
	port       int
	storage    string
	configPath string
}

// resolve loads the config file (if any), applies the flags the user set and
// makes room the web UI default.
func (f *serverFlags) resolve(cmd *cobra.Command, room string) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = f.port
	}
	if flags.Changed("storage") {
		cfg.Database.Path = f.storage
	}
	cfg.Server.Room = room

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newServerCmd(g *globalFlags) *cobra.Command {
	f := &serverFlags{}

	cmd := &cobra.Command{
		Use:   "server ROOM",
		Short: "Start the chat relay",
		Long: `Start the chat relay server. ROOM is the room the web UI opens by default;
agents and API callers may still use any room.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args[0])
			if err != nil {
				return err
			}

			logger, closeLog, err := g.logger(cmd, cfg.Logging)
			if err != nil {
				return err
			}
			defer closeLog()

			printServerBanner(cmd.OutOrStdout(), cfg, f.configPath)

			gw, err := gateway.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating gateway: %w", err)
			}

			logger.Info("starting agentchat server",
				"addr", cfg.Server.Addr(),
				"room", cfg.Server.Room,
				"storage", cfg.Database.Path,
			)
			return gw.Run(cmd.Context())
		},
	}

	f.bind(cmd)
	return cmd
}

func (f *serverFlags) bind(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().StringVar(&f.host, "host", defaults.Server.Host, "host to bind")
	cmd.Flags().IntVarP(&f.port, "port", "p", defaults.Server.Port, "port to listen on")
	cmd.Flags().StringVarP(&f.storage, "storage", "s", defaults.Database.Path, "SQLite database path (:memory: for none)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML config file")
}

func printServerBanner(w io.Writer, cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", version)

	if configPath != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Config:    %s\n", configPath)
	}
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Web UI:    http://%s/?room=%s\n", cfg.Server.Addr(), url.QueryEscape(cfg.Server.Room))
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Storage:   %s\n", cfg.Database.Path)
	if cfg.Metrics.Enabled {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Metrics:   %s\n", cfg.Metrics.Path)
	}
	fmt.Fprintln(w)
}
