// ABOUTME: "agentchat client" command: runs one LLM agent from the agents file in a room
// ABOUTME: Wires the agents file, LLM model, agent runtime and WebSocket client together

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/2389/agentchat/internal/agent"
	"github.com/2389/agentchat/internal/client"
	"github.com/2389/agentchat/internal/config"
	"github.com/2389/agentchat/internal/llm"
	"github.com/2389/agentchat/internal/store"
)

type clientFlags struct {
	serverURL  string
	agentsFile string
}

func newClientCmd(g *globalFlags) *cobra.Command {
	f := &clientFlags{}

	cmd := &cobra.Command{
		Use:   "client ROOM AGENT",
		Short: "Run an agent in a room",
		Long: `Connect the agent named AGENT from the agents file to ROOM. The agent
greets the room, then answers every chat message it sees until interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := g.logger(cmd, config.Default().Logging)
			if err != nil {
				return err
			}
			defer closeLog()

			agents, err := config.LoadAgents(f.agentsFile)
			if err != nil {
				return err
			}
			a, err := agents.Find(args[1])
			if err != nil {
				return err
			}

			model, err := llm.NewModel(cmd.Context(), a.Provider, a.Model, llm.CredentialsFromEnv())
			if err != nil {
				return err
			}

			return runAgent(cmd.Context(), agentParams{
				serverURL: f.serverURL,
				room:      args[0],
				agent:     a,
				common:    agents.CommonSettings,
				model:     model,
			}, logger)
		},
	}

	cmd.Flags().StringVarP(&f.serverURL, "server-url", "u", defaultServerURL, "relay server URL")
	cmd.Flags().StringVarP(&f.agentsFile, "agents-file", "a", "agents.yml", "agents file (YAML or TOML)")
	return cmd
}

type agentParams struct {
	serverURL string
	room      string
	agent     *config.AgentConfig
	common    config.CommonSettings
	model     agent.Capability
}

// runAgent connects the agent and blocks until ctx is cancelled or the relay
// drops the connection.
func runAgent(ctx context.Context, p agentParams, logger *slog.Logger) error {
	session := agent.NewSession(p.agent, p.common, p.room)
	gen := agent.NewResponseGenerator(p.model, logger)

	// The handler only runs after Connect, by which time rt is set.
	var rt *agent.Runtime
	c := client.New(client.Config{
		ServerURL: p.serverURL,
		Room:      p.room,
		Name:      session.Name,
		Dispatch:  p.common.DispatchMode(),
	}, func(ctx context.Context, msg *store.Message) {
		rt.OnMessage(ctx, msg)
	}, logger)
	rt = agent.NewRuntime(session, gen, c, logger)

	if p.common.ReplayHistory {
		msgs, err := client.NewAPIClient(p.serverURL).RecentMessages(ctx, p.room, 0)
		if err != nil {
			logger.Warn("history replay failed", "room", p.room, "error", err)
		} else {
			logger.Info("replayed history", "room", p.room, "messages", rt.Seed(msgs))
		}
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}

	if err := rt.Greet(ctx); err != nil {
		logger.Warn("failed to send join greeting", "error", err)
	}

	logger.Info("agent listening",
		"agent", session.Name,
		"room", p.room,
		"model", session.Model,
		"dispatch", p.common.DispatchMode(),
	)

	go func() {
		select {
		case <-c.Done():
			rt.Stop()
		case <-ctx.Done():
		}
	}()
	rt.StartListening(ctx)

	relayLost := ctx.Err() == nil
	if err := c.Disconnect(); err != nil {
		logger.Debug("disconnect", "error", err)
	}
	if relayLost {
		return fmt.Errorf("%w: relay closed the connection", client.ErrTransport)
	}
	logger.Info("agent stopped", "agent", session.Name)
	return nil
}
