package agent

import (
	"github.com/rfeldhaus/autogui-cli/internal/oracle"
)

// transcript is the bounded oracle-facing conversation window: one fixed
// system turn followed by alternating observation/decision turns. It belongs
// to exactly one in-flight task.
type transcript struct {
	turns []oracle.Message
}

func newTranscript(system string) *transcript {
	return &transcript{
		turns: []oracle.Message{{Role: oracle.RoleSystem, Text: system}},
	}
}

// addObservation appends a user turn carrying the task text and a screenshot.
func (t *transcript) addObservation(text, imagePNG string) {
	t.turns = append(t.turns, oracle.Message{
		Role:     oracle.RoleUser,
		Text:     text,
		ImagePNG: imagePNG,
	})
}

// addDecision appends the oracle's raw reply as an assistant turn.
func (t *transcript) addDecision(text string) {
	t.turns = append(t.turns, oracle.Message{Role: oracle.RoleAssistant, Text: text})
}

// addFeedback appends a synthetic user turn telling the oracle why its last
// action did not happen.
func (t *transcript) addFeedback(text string) {
	t.turns = append(t.turns, oracle.Message{Role: oracle.RoleUser, Text: text})
}

// trim drops the oldest turn pairs until at most 1 + 2*maxRounds turns
// remain. The system turn at index 0 is never dropped.
func (t *transcript) trim(maxRounds int) {
	limit := 1 + 2*maxRounds
	if len(t.turns) <= limit {
		return
	}
	kept := make([]oracle.Message, 0, limit)
	kept = append(kept, t.turns[0])
	kept = append(kept, t.turns[len(t.turns)-(limit-1):]...)
	t.turns = kept
}

func (t *transcript) messages() []oracle.Message {
	return t.turns
}
