package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rfeldhaus/autogui-cli/internal/agent"
	"github.com/rfeldhaus/autogui-cli/internal/approve"
	"github.com/rfeldhaus/autogui-cli/internal/input"
	"github.com/rfeldhaus/autogui-cli/internal/observability"
	"github.com/rfeldhaus/autogui-cli/internal/oracle"
	"github.com/rfeldhaus/autogui-cli/internal/screen"
)

var runYes bool

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Run a single automation task and print the result.",
	Long: `Run captures the screen in a loop, asks the configured vision model for the
next action, and applies it to the local mouse and keyboard until the model
reports the task complete or the iteration budget runs out.

Dangerous actions require confirmation on the terminal unless --yes is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		task := strings.Join(args, " ")

		runner, err := buildRunner(logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := runner.RunTask(ctx, task)
		if err != nil {
			return err
		}

		fmt.Printf("status: %s\niterations: %d\nresult: %s\n",
			result.Status, result.Iterations, result.Message)
		if result.Status != agent.StatusCompleted {
			return errors.New("task did not complete")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "approve dangerous actions without asking")
	rootCmd.AddCommand(runCmd)
}

// buildRunner wires the runner against the real screen and input devices with
// a terminal approver.
func buildRunner(logger *zap.Logger) (*agent.Runner, error) {
	client, err := oracle.NewHTTPClient(cfg.API, logger)
	if err != nil {
		return nil, err
	}

	var approver agent.Approver = approve.NewTerminal()
	if runYes {
		approver = approve.Static{Decision: agent.DecisionApproved}
	}

	return agent.NewRunner(
		cfg,
		client,
		screen.NewDisplayCapturer(cfg.Screen, logger),
		agent.NewExecutor(input.NewRobot(), logger),
		approver,
		logger,
	), nil
}
