package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
}

// APIFlags holds daemon connection flags shared by the remote commands
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	apiFlags := &APIFlags{}

	deckCommand := command{api: apiFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createStatusCommand(deckCommand),
		createStartCommand(deckCommand),
		createStopCommand(deckCommand),
		createRestartCommand(deckCommand),
		createSendCommand(deckCommand),
		createConsoleCommand(deckCommand),
		createHistoryCommand(deckCommand),
	)

	root.PersistentFlags().StringVar(&apiFlags.APIUrl, "api-url", "", "daemon URL (default http://127.0.0.1:8080)")
	root.PersistentFlags().DurationVar(&apiFlags.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "craftdeck",
		Short: "Web dashboard and supervisor for a game server",
		Long: `Craftdeck wraps a third-party game server process behind a web dashboard:
start, stop, restart and talk to the server console from a browser or this CLI.

Examples:
  craftdeck serve --config=craftdeck.toml   # Start the dashboard daemon
  craftdeck status                          # Query the wrapped server
  craftdeck send "say Hello"                # Run a server console command`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (serve only)")
	return root
}

func createStatusCommand(deckCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wrapped server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deckCommand.Status()
		},
	}
}

func createStartCommand(deckCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the wrapped server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deckCommand.Start()
		},
	}
}

func createStopCommand(deckCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the wrapped server cooperatively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deckCommand.Stop()
		},
	}
}

func createRestartCommand(deckCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop and relaunch the wrapped server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deckCommand.Restart()
		},
	}
}

func createSendCommand(deckCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "send <command>",
		Short: "Send a console command to the wrapped server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deckCommand.Send(args[0])
		},
	}
}

func createConsoleCommand(deckCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Print the buffered console output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deckCommand.Console()
		},
	}
}

func createHistoryCommand(deckCommand command) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return deckCommand.History(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to show")
	return cmd
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the craftdeck daemon",
		Long: `Start the dashboard daemon. All configuration is loaded from a TOML file.

Examples:
  craftdeck serve craftdeck.toml
  craftdeck serve --config=craftdeck.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := globalFlags.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			if configPath == "" {
				return fmt.Errorf("config file required. Use --config=craftdeck.toml or provide as argument")
			}
			return runServe(configPath)
		},
	}
}
