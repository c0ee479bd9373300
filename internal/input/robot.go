package input

import (
	"errors"
	"time"

	"github.com/go-vgo/robotgo"

	_ "github.com/go-vgo/robotgo/base"  // Blank import for robotgo C sources
	_ "github.com/go-vgo/robotgo/key"   // Blank import for robotgo C sources
	_ "github.com/go-vgo/robotgo/mouse" // Blank import for robotgo C sources
)

// Robot drives the real mouse and keyboard through robotgo.
type Robot struct{}

var _ Driver = (*Robot)(nil)

func NewRobot() *Robot {
	return &Robot{}
}

func (r *Robot) ScreenSize() (int, int) {
	return robotgo.GetScreenSize()
}

func (r *Robot) Click(x, y int) error {
	robotgo.Move(x, y)
	robotgo.Click("left")
	return nil
}

func (r *Robot) DoubleClick(x, y int) error {
	robotgo.Move(x, y)
	robotgo.Click("left", true)
	return nil
}

func (r *Robot) RightClick(x, y int) error {
	robotgo.Move(x, y)
	robotgo.Click("right")
	return nil
}

func (r *Robot) Move(x, y int, duration time.Duration) error {
	// robotgo paces MoveSmooth internally; the duration bounds the glide by
	// sleeping out any remainder so the caller sees a consistent rhythm.
	start := time.Now()
	robotgo.MoveSmooth(x, y)
	if rest := duration - time.Since(start); rest > 0 {
		time.Sleep(rest)
	}
	return nil
}

func (r *Robot) Drag(fromX, fromY, toX, toY int, duration time.Duration) error {
	robotgo.Move(fromX, fromY)
	start := time.Now()
	robotgo.DragSmooth(toX, toY)
	if rest := duration - time.Since(start); rest > 0 {
		time.Sleep(rest)
	}
	return nil
}

func (r *Robot) Scroll(amount int) error {
	robotgo.Scroll(0, amount)
	return nil
}

func (r *Robot) ScrollAt(amount, x, y int) error {
	robotgo.Move(x, y)
	robotgo.Scroll(0, amount)
	return nil
}

func (r *Robot) KeyCombo(keys []string) error {
	if len(keys) == 0 {
		return errors.New("input: empty key combo")
	}
	if len(keys) == 1 {
		return robotgo.KeyTap(keys[0])
	}
	// robotgo takes the main key first, then the modifiers.
	main := keys[len(keys)-1]
	mods := make([]any, 0, len(keys)-1)
	for _, k := range keys[:len(keys)-1] {
		mods = append(mods, k)
	}
	return robotgo.KeyTap(main, mods...)
}

func (r *Robot) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}
