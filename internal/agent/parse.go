package agent

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// oracleReply is the JSON object the oracle is instructed to embed in its
// reply. Every field is optional; absent fields take documented defaults.
type oracleReply struct {
	Thought    string         `json:"thought"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
	Dangerous  bool           `json:"dangerous"`
}

// ParseAction extracts an Action from the oracle's raw reply text. Replies
// are expected to contain exactly one JSON object, so the span from the first
// '{' to the last '}' is taken as the candidate. A reply with no such span or
// with malformed JSON fails with ErrNoAction, which the loop treats as
// recoverable.
func ParseAction(reply string) (Action, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Action{}, ErrNoAction
	}

	var wire oracleReply
	if err := json.Unmarshal([]byte(reply[start:end+1]), &wire); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrNoAction, err)
	}

	name := wire.Action
	if name == "" {
		name = "wait"
	}
	params := wire.Parameters
	if params == nil {
		params = map[string]any{}
	}

	return Action{
		Kind:      KindFromName(name),
		Name:      name,
		Params:    params,
		Rationale: wire.Thought,
		Dangerous: wire.Dangerous,
	}, nil
}
