package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMapCoords_MonotonicAndBounded(t *testing.T) {
	driver := &MockDriver{}
	driver.On("ScreenSize").Return(1920, 1080)
	e := NewExecutor(driver, zap.NewNop())

	prevX, prevY := -1, -1
	for v := 0; v <= 1000; v += 25 {
		px, py := e.MapCoords(float64(v), float64(v))

		assert.GreaterOrEqual(t, px, prevX)
		assert.GreaterOrEqual(t, py, prevY)
		assert.GreaterOrEqual(t, px, 0)
		assert.GreaterOrEqual(t, py, 0)
		assert.LessOrEqual(t, px, 1920)
		assert.LessOrEqual(t, py, 1080)

		prevX, prevY = px, py
	}

	px, py := e.MapCoords(500, 500)
	assert.Equal(t, 960, px)
	assert.Equal(t, 540, py)
}

func TestExecute_Click(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	driver.On("Click", 250, 750).Return(nil).Once()

	action := Action{Kind: ActionClick, Name: "click", Params: map[string]any{"x": 250.0, "y": 750.0}}
	outcome, err := e.Execute(context.Background(), action)

	require.NoError(t, err)
	assert.Contains(t, outcome, "(250, 750)")
	driver.AssertExpectations(t)
}

func TestExecute_ClickDefaultsToScreenCenter(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	driver.On("Click", 500, 500).Return(nil).Once()

	action := Action{Kind: ActionClick, Name: "click", Params: map[string]any{}}
	_, err := e.Execute(context.Background(), action)

	require.NoError(t, err)
	driver.AssertExpectations(t)
}

func TestExecute_Type(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	driver.On("TypeText", "hello world").Return(nil).Once()

	action := Action{Kind: ActionType, Name: "type", Params: map[string]any{"text": "hello world"}}
	outcome, err := e.Execute(context.Background(), action)

	require.NoError(t, err)
	assert.Contains(t, outcome, "hello world")
}

func TestExecute_PressWithoutKeysFails(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	action := Action{Kind: ActionPress, Name: "press", Params: map[string]any{}}
	_, err := e.Execute(context.Background(), action)

	require.Error(t, err)
	driver.AssertNotCalled(t, "KeyCombo")
}

func TestExecute_ScrollPositioning(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	// Without coordinates the scroll happens in place.
	driver.On("Scroll", -120).Return(nil).Once()
	_, err := e.Execute(context.Background(), Action{
		Kind: ActionScroll, Name: "scroll", Params: map[string]any{"amount": -120.0},
	})
	require.NoError(t, err)

	// With both coordinates the pointer is positioned first.
	driver.On("ScrollAt", 100, 200, 300).Return(nil).Once()
	_, err = e.Execute(context.Background(), Action{
		Kind: ActionScroll, Name: "scroll",
		Params: map[string]any{"amount": 100.0, "x": 200.0, "y": 300.0},
	})
	require.NoError(t, err)

	driver.AssertExpectations(t)
}

func TestExecute_DragDefaults(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	driver.On("Drag", 100, 100, 900, 900, time.Second).Return(nil).Once()

	_, err := e.Execute(context.Background(), Action{
		Kind: ActionDrag, Name: "drag",
		Params: map[string]any{"start_x": 100.0, "start_y": 100.0, "end_x": 900.0, "end_y": 900.0},
	})

	require.NoError(t, err)
	driver.AssertExpectations(t)
}

func TestExecute_MoveDefaultDuration(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	driver.On("Move", 500, 500, 500*time.Millisecond).Return(nil).Once()

	_, err := e.Execute(context.Background(), Action{Kind: ActionMove, Name: "move", Params: map[string]any{}})

	require.NoError(t, err)
	driver.AssertExpectations(t)
}

func TestExecute_WaitHonorsCancellation(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := e.Execute(ctx, Action{
		Kind: ActionWait, Name: "wait", Params: map[string]any{"seconds": 10.0},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecute_TaskComplete(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	outcome, err := e.Execute(context.Background(), Action{Kind: ActionTaskComplete, Name: "task_complete", Params: map[string]any{}})

	require.NoError(t, err)
	assert.Equal(t, "Task completed successfully", outcome)
}

func TestExecute_UnknownKind(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	outcome, err := e.Execute(context.Background(), Action{Kind: ActionUnknown, Name: "teleport", Params: map[string]any{}})

	require.NoError(t, err)
	assert.Contains(t, outcome, "unknown action type: teleport")
}

func TestExecute_DeviceErrorPropagates(t *testing.T) {
	driver := newTestDriver()
	e := NewExecutor(driver, zap.NewNop())

	deviceErr := errors.New("device busy")
	driver.On("Click", 500, 500).Return(deviceErr).Once()

	_, err := e.Execute(context.Background(), Action{Kind: ActionClick, Name: "click", Params: map[string]any{}})

	assert.Equal(t, deviceErr, err)
}
