package agent

import "errors"

var (
	// ErrTaskRunning is returned synchronously when a task is submitted while
	// another one holds the input devices.
	ErrTaskRunning = errors.New("another task is already running")

	// ErrNoAction indicates the oracle reply contained no usable JSON action.
	ErrNoAction = errors.New("no action found in reply")
)
