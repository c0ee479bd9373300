// Package approve provides approval channels for the confirmation gate.
package approve

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rfeldhaus/autogui-cli/internal/agent"
)

// Terminal asks for confirmation interactively on the controlling terminal.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

var _ agent.Approver = (*Terminal)(nil)

func NewTerminal() *Terminal {
	return &Terminal{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

// NewTerminalWithIO exists for tests.
func NewTerminalWithIO(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Confirm prints the prompt and reads a y/n answer. The blocking read runs in
// a goroutine so cancellation is honored; a closed stdin reports Unsupported.
func (t *Terminal) Confirm(ctx context.Context, prompt string) (agent.Decision, error) {
	fmt.Fprintf(t.out, "\n%s [y/N]: ", prompt)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return agent.DecisionUnsupported, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return agent.DecisionUnsupported, nil
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return agent.DecisionApproved, nil
		default:
			return agent.DecisionDenied, nil
		}
	}
}

// Static always answers with a fixed decision. Useful as the approver when no
// interactive channel exists, and in tests.
type Static struct {
	Decision agent.Decision
}

var _ agent.Approver = Static{}

func (s Static) Confirm(ctx context.Context, prompt string) (agent.Decision, error) {
	return s.Decision, ctx.Err()
}
