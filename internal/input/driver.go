// Package input injects mouse and keyboard events into the host desktop.
package input

import "time"

// Driver abstracts the physical input device so the executor can be tested
// without moving the real mouse.
type Driver interface {
	// ScreenSize returns the primary display size in pixels.
	ScreenSize() (width, height int)

	Click(x, y int) error
	DoubleClick(x, y int) error
	RightClick(x, y int) error

	// Move glides the pointer to (x, y) over roughly the given duration.
	Move(x, y int, duration time.Duration) error
	// Drag presses at (fromX, fromY) and releases at (toX, toY).
	Drag(fromX, fromY, toX, toY int, duration time.Duration) error

	// Scroll scrolls vertically at the current pointer position; positive
	// amounts scroll up.
	Scroll(amount int) error
	// ScrollAt moves the pointer to (x, y) first, then scrolls.
	ScrollAt(amount, x, y int) error

	// KeyCombo taps the given keys together, e.g. ["ctrl", "c"]. A single
	// element taps one key.
	KeyCombo(keys []string) error
	// TypeText types a string of literal text.
	TypeText(text string) error
}
