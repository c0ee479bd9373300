package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rfeldhaus/autogui-cli/internal/agent"
	"github.com/rfeldhaus/autogui-cli/internal/input"
	"github.com/rfeldhaus/autogui-cli/internal/mcp"
	"github.com/rfeldhaus/autogui-cli/internal/observability"
	"github.com/rfeldhaus/autogui-cli/internal/oracle"
	"github.com/rfeldhaus/autogui-cli/internal/screen"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control server and accept tasks over HTTP and websocket.",
	Long: `Serve exposes the task runner on a local HTTP endpoint. Tasks arrive as
JSON commands or over the websocket channel; confirmation requests for
dangerous actions are relayed to the connected websocket client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		client, err := oracle.NewHTTPClient(cfg.API, logger)
		if err != nil {
			return err
		}

		// The server is also the approval channel, so it is created first
		// and the runner is wired in afterwards.
		server := mcp.NewServer(cfg, logger)
		runner := agent.NewRunner(
			cfg,
			client,
			screen.NewDisplayCapturer(cfg.Screen, logger),
			agent.NewExecutor(input.NewRobot(), logger),
			server,
			logger,
		)
		server.SetRunner(runner)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
