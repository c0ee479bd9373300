package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rfeldhaus/autogui-cli/internal/input"
)

// Executor maps validated actions onto the input device. Coordinates arrive
// normalized to 0-1000 and are mapped to pixels against the real screen size,
// which is read once at construction.
type Executor struct {
	driver input.Driver
	width  int
	height int
	logger *zap.Logger
}

func NewExecutor(driver input.Driver, logger *zap.Logger) *Executor {
	w, h := driver.ScreenSize()
	return &Executor{
		driver: driver,
		width:  w,
		height: h,
		logger: logger.Named("executor"),
	}
}

// MapCoords converts a normalized 0-1000 coordinate pair to pixels. Inputs
// outside the range pass through arithmetically; bounds are the Guard's job.
func (e *Executor) MapCoords(x, y float64) (int, int) {
	px := int(math.Floor(x / 1000 * float64(e.width)))
	py := int(math.Floor(y / 1000 * float64(e.height)))
	return px, py
}

// Execute performs one action and returns a human-readable outcome. Errors
// from the device layer are returned as-is; the loop converts them into
// outcome strings so a flaky click never kills the task. A context error
// means cancellation and is the one error the loop treats as terminal.
func (e *Executor) Execute(ctx context.Context, a Action) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch a.Kind {
	case ActionClick:
		x, y := e.MapCoords(a.floatParam("x", 500), a.floatParam("y", 500))
		if err := e.driver.Click(x, y); err != nil {
			return "", err
		}
		return fmt.Sprintf("clicked at (%d, %d)", x, y), nil

	case ActionDoubleClick:
		x, y := e.MapCoords(a.floatParam("x", 500), a.floatParam("y", 500))
		if err := e.driver.DoubleClick(x, y); err != nil {
			return "", err
		}
		return fmt.Sprintf("double-clicked at (%d, %d)", x, y), nil

	case ActionRightClick:
		x, y := e.MapCoords(a.floatParam("x", 500), a.floatParam("y", 500))
		if err := e.driver.RightClick(x, y); err != nil {
			return "", err
		}
		return fmt.Sprintf("right-clicked at (%d, %d)", x, y), nil

	case ActionType:
		text := a.stringParam("text", "")
		if err := e.driver.TypeText(text); err != nil {
			return "", err
		}
		return fmt.Sprintf("typed text: %s", text), nil

	case ActionPress:
		keys := a.keys()
		if len(keys) == 0 {
			return "", fmt.Errorf("press action carries no keys")
		}
		if err := e.driver.KeyCombo(keys); err != nil {
			return "", err
		}
		return fmt.Sprintf("pressed keys: %s", strings.Join(keys, "+")), nil

	case ActionScroll:
		amount := int(a.floatParam("amount", 100))
		if a.hasParam("x") && a.hasParam("y") {
			x, y := e.MapCoords(a.floatParam("x", 500), a.floatParam("y", 500))
			if err := e.driver.ScrollAt(amount, x, y); err != nil {
				return "", err
			}
			return fmt.Sprintf("scrolled by %d at (%d, %d)", amount, x, y), nil
		}
		if err := e.driver.Scroll(amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("scrolled by %d", amount), nil

	case ActionDrag:
		fromX, fromY := e.MapCoords(a.floatParam("start_x", 500), a.floatParam("start_y", 500))
		toX, toY := e.MapCoords(a.floatParam("end_x", 500), a.floatParam("end_y", 500))
		duration := a.durationParam("duration", time.Second)
		if err := e.driver.Drag(fromX, fromY, toX, toY, duration); err != nil {
			return "", err
		}
		return fmt.Sprintf("dragged from (%d, %d) to (%d, %d)", fromX, fromY, toX, toY), nil

	case ActionMove:
		x, y := e.MapCoords(a.floatParam("x", 500), a.floatParam("y", 500))
		duration := a.durationParam("duration", 500*time.Millisecond)
		if err := e.driver.Move(x, y, duration); err != nil {
			return "", err
		}
		return fmt.Sprintf("moved to (%d, %d)", x, y), nil

	case ActionWait:
		duration := a.durationParam("seconds", time.Second)
		if err := sleepCtx(ctx, duration); err != nil {
			return "", err
		}
		return fmt.Sprintf("waited for %s", duration), nil

	case ActionTaskComplete:
		// No device effect; the loop terminates on this kind.
		return "Task completed successfully", nil

	default:
		e.logger.Warn("Oracle requested an unknown action.", zap.String("action", a.Name))
		return fmt.Sprintf("unknown action type: %s", a.Name), nil
	}
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
