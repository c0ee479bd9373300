package agent

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rfeldhaus/autogui-cli/internal/oracle"
)

// MockOracle mocks the oracle.Client interface.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Chat(ctx context.Context, messages []oracle.Message) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

// MockCapturer mocks the screen.Capturer interface.
type MockCapturer struct {
	mock.Mock
}

func (m *MockCapturer) Capture(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockDriver mocks the input.Driver interface.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) ScreenSize() (int, int) {
	args := m.Called()
	return args.Int(0), args.Int(1)
}

func (m *MockDriver) Click(x, y int) error {
	return m.Called(x, y).Error(0)
}

func (m *MockDriver) DoubleClick(x, y int) error {
	return m.Called(x, y).Error(0)
}

func (m *MockDriver) RightClick(x, y int) error {
	return m.Called(x, y).Error(0)
}

func (m *MockDriver) Move(x, y int, duration time.Duration) error {
	return m.Called(x, y, duration).Error(0)
}

func (m *MockDriver) Drag(fromX, fromY, toX, toY int, duration time.Duration) error {
	return m.Called(fromX, fromY, toX, toY, duration).Error(0)
}

func (m *MockDriver) Scroll(amount int) error {
	return m.Called(amount).Error(0)
}

func (m *MockDriver) ScrollAt(amount, x, y int) error {
	return m.Called(amount, x, y).Error(0)
}

func (m *MockDriver) KeyCombo(keys []string) error {
	return m.Called(keys).Error(0)
}

func (m *MockDriver) TypeText(text string) error {
	return m.Called(text).Error(0)
}

// MockApprover mocks the Approver interface.
type MockApprover struct {
	mock.Mock
}

func (m *MockApprover) Confirm(ctx context.Context, prompt string) (Decision, error) {
	args := m.Called(ctx, prompt)
	return args.Get(0).(Decision), args.Error(1)
}

// newTestDriver returns a MockDriver with a fixed 1000x1000 screen so that
// normalized and pixel coordinates coincide.
func newTestDriver() *MockDriver {
	d := &MockDriver{}
	d.On("ScreenSize").Return(1000, 1000)
	return d
}
