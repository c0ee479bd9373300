package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rfeldhaus/autogui-cli/internal/config"
	"github.com/rfeldhaus/autogui-cli/internal/oracle"
	"github.com/rfeldhaus/autogui-cli/internal/screen"
)

const (
	feedbackBlocked = "The previous action was not executed: it was blocked by the safety policy. Try a different, safer approach."

	feedbackOutOfRegion = "The previous action was not executed: its coordinates fall outside the allowed screen region. Choose coordinates inside the allowed region."
)

// Runner owns the action-decision loop. At most one task runs at a time
// process-wide; submissions while a task is in flight fail immediately with
// ErrTaskRunning instead of queueing, protecting the shared input devices.
type Runner struct {
	agentCfg  config.AgentConfig
	safetyCfg config.SafetyConfig
	oracle    oracle.Client
	capturer  screen.Capturer
	executor  *Executor
	guard     *Guard
	approver  Approver
	logger    *zap.Logger
	sem       *semaphore.Weighted
}

func NewRunner(
	cfg *config.Config,
	client oracle.Client,
	capturer screen.Capturer,
	executor *Executor,
	approver Approver,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		agentCfg:  cfg.Agent,
		safetyCfg: cfg.Safety,
		oracle:    client,
		capturer:  capturer,
		executor:  executor,
		guard:     NewGuard(cfg.Safety, cfg.Screen.Region),
		approver:  approver,
		logger:    logger.Named("agent"),
		sem:       semaphore.NewWeighted(1),
	}
}

// RunTask drives one task to a terminal status. Cancellation through ctx ends
// the task with StatusCancelled at the next suspension point; the result then
// still carries the last successfully captured screenshot. The only error
// returns are an empty task and ErrTaskRunning.
func (r *Runner) RunTask(ctx context.Context, task string) (*TaskResult, error) {
	return r.RunTaskWithProgress(ctx, task, nil)
}

// RunTaskWithProgress is RunTask with a callback invoked at the top of every
// iteration, so callers can stream loop progress to the submitter.
func (r *Runner) RunTaskWithProgress(ctx context.Context, task string, progress func(iteration, max int)) (*TaskResult, error) {
	if strings.TrimSpace(task) == "" {
		return nil, errors.New("agent: task description is empty")
	}
	if !r.sem.TryAcquire(1) {
		return nil, ErrTaskRunning
	}
	defer r.sem.Release(1)

	log := r.logger.With(zap.String("task_id", uuid.NewString()))
	log.Info("Task started.", zap.String("task", task))

	hist := newTranscript(systemPrompt)
	lastShot := ""
	maxIter := r.agentCfg.MaxIterations

	for i := 1; i <= maxIter; i++ {
		if ctx.Err() != nil {
			return r.cancelled(log, i, lastShot), nil
		}
		if progress != nil {
			progress(i, maxIter)
		}
		log.Debug("Iteration starting.", zap.Int("iteration", i), zap.Int("max", maxIter))

		shot, err := r.capturer.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return r.cancelled(log, i, lastShot), nil
			}
			log.Error("Screen capture failed, skipping iteration.", zap.Error(err))
			continue
		}
		lastShot = shot

		hist.addObservation(observationText(task), shot)
		hist.trim(r.agentCfg.MaxHistoryRounds)

		reply, err := r.oracle.Chat(ctx, hist.messages())
		if err != nil {
			if ctx.Err() != nil {
				return r.cancelled(log, i, lastShot), nil
			}
			log.Error("Oracle call failed, skipping iteration.", zap.Error(err))
			continue
		}
		hist.addDecision(reply)

		action, err := ParseAction(reply)
		if err != nil {
			log.Warn("Reply contained no usable action.", zap.Error(err))
			continue
		}
		log.Info("Action decided.",
			zap.String("action", action.Name),
			zap.String("thought", action.Rationale),
			zap.Bool("dangerous", action.Dangerous))

		// A failed region check skips the action outright; it is never
		// escalated to confirmation.
		if !r.guard.InRegion(action) {
			log.Warn("Action targets coordinates outside the allowed region.",
				zap.String("action", action.Name))
			hist.addFeedback(feedbackOutOfRegion)
			continue
		}

		// The rule verdict is OR'd with the oracle's self-report; a false
		// self-report never suppresses a rule match.
		if dangerous := action.Dangerous || r.guard.Dangerous(action); dangerous && r.safetyCfg.RequireConfirmation {
			decision := r.requestApproval(ctx, log, action)
			if ctx.Err() != nil {
				return r.cancelled(log, i, lastShot), nil
			}
			if decision != DecisionApproved {
				if r.safetyCfg.FallbackBlocks() {
					log.Warn("Dangerous action blocked.", zap.String("action", action.Name))
					hist.addFeedback(feedbackBlocked)
					continue
				}
				log.Warn("Dangerous action executing without confirmation (fallback allow).",
					zap.String("action", action.Name))
			}
		}

		outcome, err := r.executor.Execute(ctx, action)
		if err != nil {
			if ctx.Err() != nil {
				return r.cancelled(log, i, lastShot), nil
			}
			// Device-level failures become outcomes, never fatal errors.
			outcome = fmt.Sprintf("error executing %s: %v", action.Name, err)
			log.Error("Action execution failed.", zap.String("action", action.Name), zap.Error(err))
		}
		log.Info("Action executed.", zap.String("action", action.Name), zap.String("outcome", outcome))

		if action.Kind == ActionTaskComplete {
			msg := action.stringParam("result", outcome)
			log.Info("Task completed.", zap.Int("iterations", i))
			return &TaskResult{
				Status:     StatusCompleted,
				Message:    msg,
				Iterations: i,
				Screenshot: lastShot,
			}, nil
		}

		if err := sleepCtx(ctx, r.agentCfg.ActionDelay); err != nil {
			return r.cancelled(log, i, lastShot), nil
		}
	}

	log.Warn("Iteration budget exhausted.", zap.Int("iterations", maxIter))
	return &TaskResult{
		Status:     StatusIncomplete,
		Message:    "maximum iterations reached without completing the task",
		Iterations: maxIter,
		Screenshot: lastShot,
	}, nil
}

func (r *Runner) requestApproval(ctx context.Context, log *zap.Logger, a Action) Decision {
	if r.approver == nil {
		return DecisionUnsupported
	}
	decision, err := r.approver.Confirm(ctx, describeAction(a))
	if err != nil {
		log.Warn("Approval channel failed, treating as unsupported.", zap.Error(err))
		return DecisionUnsupported
	}
	log.Info("Approval decision received.", zap.Stringer("decision", decision))
	return decision
}

func (r *Runner) cancelled(log *zap.Logger, iteration int, lastShot string) *TaskResult {
	log.Warn("Task cancelled.", zap.Int("iteration", iteration))
	return &TaskResult{
		Status:     StatusCancelled,
		Message:    "task cancelled",
		Iterations: iteration,
		Screenshot: lastShot,
	}
}

func observationText(task string) string {
	return "Task: " + task + "\nHere is the current screen. Decide the next action."
}
