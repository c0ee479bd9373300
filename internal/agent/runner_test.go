package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/rfeldhaus/autogui-cli/internal/config"
	"github.com/rfeldhaus/autogui-cli/internal/oracle"
)

const taskCompleteReply = `{"thought":"done","action":"task_complete","parameters":{"result":"ok"},"dangerous":false}`

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Agent.MaxIterations = 5
	cfg.Agent.ActionDelay = 0
	cfg.Safety.RequireConfirmation = true
	cfg.Safety.FallbackAction = "block"
	return cfg
}

func newTestRunner(cfg *config.Config, client *MockOracle, capturer *MockCapturer, driver *MockDriver, approver Approver) *Runner {
	return NewRunner(cfg, client, capturer, NewExecutor(driver, zap.NewNop()), approver, zap.NewNop())
}

func TestRunTask_Completed(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Return(taskCompleteReply, nil).Once()

	runner := newTestRunner(testConfig(), client, capturer, driver, nil)
	result, err := runner.RunTask(context.Background(), "open the settings")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "ok", result.Message)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, "img", result.Screenshot)
}

func TestRunTaskWithProgress_ReportsEachIteration(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()

	waitReply := `{"thought":"settling","action":"wait","parameters":{"duration":0},"dangerous":false}`

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Return(waitReply, nil).Once()
	client.On("Chat", mock.Anything, mock.Anything).Return(taskCompleteReply, nil).Once()

	var calls [][2]int
	runner := newTestRunner(testConfig(), client, capturer, driver, nil)
	result, err := runner.RunTaskWithProgress(context.Background(), "wait it out", func(iteration, max int) {
		calls = append(calls, [2]int{iteration, max})
	})

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, [][2]int{{1, 5}, {2, 5}}, calls)
}

func TestRunTask_UnparseableReplyExhaustsBudget(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()

	cfg := testConfig()
	cfg.Agent.MaxIterations = 1

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Return("I cannot decide right now.", nil).Once()

	runner := newTestRunner(cfg, client, capturer, driver, nil)
	result, err := runner.RunTask(context.Background(), "do the thing")

	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, result.Status)
	assert.Equal(t, 1, result.Iterations)

	driver.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
	driver.AssertNotCalled(t, "KeyCombo", mock.Anything)
	driver.AssertNotCalled(t, "TypeText", mock.Anything)
}

func TestRunTask_DangerousActionBlockedOnDenial(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()
	approver := &MockApprover{}

	dangerousReply := `{"thought":"closing","action":"press","parameters":{"keys":["alt","f4"]},"dangerous":true}`

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Return(dangerousReply, nil).Once()

	// On the second round, verify the loop told the oracle why nothing
	// happened, then finish.
	client.On("Chat", mock.Anything, mock.MatchedBy(func(messages []oracle.Message) bool {
		for _, m := range messages {
			if m.Role == oracle.RoleUser && strings.Contains(m.Text, "blocked by the safety policy") {
				return true
			}
		}
		return false
	})).Return(taskCompleteReply, nil).Once()

	approver.On("Confirm", mock.Anything, mock.Anything).Return(DecisionDenied, nil).Once()

	runner := newTestRunner(testConfig(), client, capturer, driver, approver)
	result, err := runner.RunTask(context.Background(), "close the window")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 2, result.Iterations)

	driver.AssertNotCalled(t, "KeyCombo", mock.Anything)
	approver.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestRunTask_FallbackAllowExecutesWithoutApproval(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()
	approver := &MockApprover{}

	dangerousReply := `{"thought":"closing","action":"press","parameters":{"keys":["alt","f4"]},"dangerous":true}`

	cfg := testConfig()
	cfg.Safety.FallbackAction = "allow"

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Return(dangerousReply, nil).Once()
	client.On("Chat", mock.Anything, mock.Anything).Return(taskCompleteReply, nil).Once()
	approver.On("Confirm", mock.Anything, mock.Anything).Return(DecisionUnsupported, nil).Once()
	driver.On("KeyCombo", []string{"alt", "f4"}).Return(nil).Once()

	runner := newTestRunner(cfg, client, capturer, driver, approver)
	result, err := runner.RunTask(context.Background(), "close the window")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	driver.AssertExpectations(t)
}

func TestRunTask_RuleVerdictOverridesSelfReport(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()
	approver := &MockApprover{}

	// The oracle claims the action is harmless, but the combo is blocked by
	// rule, so the gate must still fire.
	sneakyReply := `{"thought":"just closing a tab","action":"press","parameters":{"keys":["ctrl","w"]},"dangerous":false}`

	cfg := testConfig()
	cfg.Safety.DangerousHotkeys = [][]string{{"ctrl", "w"}}

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Return(sneakyReply, nil).Once()
	client.On("Chat", mock.Anything, mock.Anything).Return(taskCompleteReply, nil).Once()
	approver.On("Confirm", mock.Anything, mock.Anything).Return(DecisionDenied, nil).Once()

	runner := newTestRunner(cfg, client, capturer, driver, approver)
	_, err := runner.RunTask(context.Background(), "close the tab")

	require.NoError(t, err)
	driver.AssertNotCalled(t, "KeyCombo", mock.Anything)
	approver.AssertExpectations(t)
}

func TestRunTask_RegionViolationSkipsWithoutConfirmation(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()
	approver := &MockApprover{}

	outsideReply := `{"thought":"click it","action":"click","parameters":{"x":800,"y":100},"dangerous":false}`

	cfg := testConfig()
	cfg.Screen.Region = &config.RegionConfig{X1: 0.0, Y1: 0.0, X2: 0.5, Y2: 1.0}

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Return(outsideReply, nil).Once()
	client.On("Chat", mock.Anything, mock.MatchedBy(func(messages []oracle.Message) bool {
		for _, m := range messages {
			if m.Role == oracle.RoleUser && strings.Contains(m.Text, "allowed screen region") {
				return true
			}
		}
		return false
	})).Return(taskCompleteReply, nil).Once()

	runner := newTestRunner(cfg, client, capturer, driver, approver)
	result, err := runner.RunTask(context.Background(), "click the right half")

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)

	driver.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
	approver.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
}

func TestRunTask_ExecutionErrorBecomesOutcome(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()

	clickReply := `{"thought":"click","action":"click","parameters":{"x":500,"y":500},"dangerous":false}`

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Return(clickReply, nil).Once()
	client.On("Chat", mock.Anything, mock.Anything).Return(taskCompleteReply, nil).Once()
	driver.On("Click", 500, 500).Return(assert.AnError).Once()

	runner := newTestRunner(testConfig(), client, capturer, driver, nil)
	result, err := runner.RunTask(context.Background(), "click the center")

	// The flaky click never fails the task.
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestRunTask_CancelledDuringOracleCall(t *testing.T) {
	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return("", context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	runner := newTestRunner(testConfig(), client, capturer, driver, nil)
	result, err := runner.RunTask(ctx, "never finishes")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, result.Status)
	assert.Equal(t, "img", result.Screenshot)
	assert.Equal(t, 1, result.Iterations)
}

func TestRunTask_RejectsConcurrentInvocation(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &MockOracle{}
	capturer := &MockCapturer{}
	driver := newTestDriver()

	started := make(chan struct{})
	release := make(chan struct{})

	capturer.On("Capture", mock.Anything).Return("img", nil)
	client.On("Chat", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(taskCompleteReply, nil)

	runner := newTestRunner(testConfig(), client, capturer, driver, nil)

	type outcome struct {
		result *TaskResult
		err    error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := runner.RunTask(context.Background(), "first task")
		firstDone <- outcome{res, err}
	}()

	<-started

	_, err := runner.RunTask(context.Background(), "second task")
	assert.ErrorIs(t, err, ErrTaskRunning)

	close(release)

	first := <-firstDone
	require.NoError(t, first.err)
	assert.Equal(t, StatusCompleted, first.result.Status)
}

func TestRunTask_EmptyTask(t *testing.T) {
	runner := newTestRunner(testConfig(), &MockOracle{}, &MockCapturer{}, newTestDriver(), nil)

	_, err := runner.RunTask(context.Background(), "   ")
	require.Error(t, err)
}
