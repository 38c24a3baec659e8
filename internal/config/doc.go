// Package config handles configuration loading for agentchat.
//
// # Overview
//
// Two files are understood:
//
//   - the relay server configuration (YAML, optional; Default() otherwise)
//   - the agents file consumed by the agent client (agents.yml or agents.toml)
//
// Command-line flags override values from the server file.
//
// # Environment Variable Expansion
//
// Both files may reference environment variables:
//
//	database:
//	  path: "${AGENTCHAT_DB}"
//
// Unset variables expand to the empty string.
//
// # Server Configuration
//
//	server:
//	  host: "127.0.0.1"
//	  port: 8000
//	  room: "lobby"            # room the web UI opens by default
//	  shutdown_timeout: "5s"
//	database:
//	  path: "chat_history.db"
//	websocket:
//	  read_limit: 1048576
//	  write_timeout: "10s"
//	history:
//	  limit: 100
//	logging:
//	  level: "info"            # debug, info, warn, error
//	  format: "text"           # text (colorized) or json
//	  file: ""                 # optional JSON log file
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// Durations use time.ParseDuration syntax.
//
// # Agents File
//
//	agents:
//	  - name: Alice
//	    model: gpt-4o-mini       # or "provider/model"
//	    provider: ""             # openai, anthropic, ollama, bedrock
//	    persona:                 # a string or a list of lines
//	      - You are Alice.
//	    options:
//	      temperature: 0.7
//	common_settings:
//	  chat_history_limit: 10
//	  response_delay_ms: 0
//	  dispatch: serial           # serial or concurrent
//	  replay_history: false
//
// # Logging
//
// SetupLogger builds a slog.Logger with a colorized console handler (or JSON),
// fanned out with slog-multi to a JSON file when logging.file is set.
package config
