package agent

import (
	"time"
)

// ActionKind is the closed set of operations the oracle may request. Kinds
// outside the set collapse to ActionUnknown, which executes as a no-op with an
// explanatory outcome rather than an error.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionClick
	ActionDoubleClick
	ActionRightClick
	ActionType
	ActionPress
	ActionScroll
	ActionDrag
	ActionMove
	ActionWait
	ActionTaskComplete
)

var kindNames = map[ActionKind]string{
	ActionUnknown:      "unknown",
	ActionClick:        "click",
	ActionDoubleClick:  "double_click",
	ActionRightClick:   "right_click",
	ActionType:         "type",
	ActionPress:        "press",
	ActionScroll:       "scroll",
	ActionDrag:         "drag",
	ActionMove:         "move",
	ActionWait:         "wait",
	ActionTaskComplete: "task_complete",
}

var kindsByName = func() map[string]ActionKind {
	m := make(map[string]ActionKind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

func (k ActionKind) String() string {
	return kindNames[k]
}

// KindFromName resolves an action tag as reported by the oracle. Unrecognized
// tags yield ActionUnknown.
func KindFromName(name string) ActionKind {
	if k, ok := kindsByName[name]; ok {
		return k
	}
	return ActionUnknown
}

// Action is one parsed decision. It is constructed once by ParseAction and
// never mutated afterwards.
type Action struct {
	Kind ActionKind
	// Name is the raw action tag as the oracle wrote it, kept for logging
	// and for reporting unknown kinds.
	Name      string
	Params    map[string]any
	Rationale string
	// Dangerous is the oracle's self-assessment. The rule-based verdict from
	// the Guard is OR'd with it and can never be suppressed by it.
	Dangerous bool
}

// floatParam reads a numeric parameter, tolerating the types JSON decoding
// can produce, and falls back to def when absent or non-numeric.
func (a Action) floatParam(key string, def float64) float64 {
	switch v := a.Params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func (a Action) stringParam(key, def string) string {
	if v, ok := a.Params[key].(string); ok {
		return v
	}
	return def
}

func (a Action) hasParam(key string) bool {
	_, ok := a.Params[key]
	return ok
}

// durationParam reads a parameter expressed in fractional seconds.
func (a Action) durationParam(key string, def time.Duration) time.Duration {
	secs := a.floatParam(key, -1)
	if secs < 0 {
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

// keys returns the "keys" parameter of a press action. The oracle may send a
// single string or an ordered list.
func (a Action) keys() []string {
	switch v := a.Params["keys"].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// TaskStatus is the terminal state of one task run.
type TaskStatus string

const (
	StatusCompleted  TaskStatus = "completed"
	StatusIncomplete TaskStatus = "incomplete"
	StatusCancelled  TaskStatus = "cancelled"
)

// TaskResult is what the task entry point hands back to the caller.
type TaskResult struct {
	Status     TaskStatus `json:"status"`
	Message    string     `json:"message"`
	Iterations int        `json:"iterations"`
	// Screenshot is the last successfully captured observation, base64 PNG.
	Screenshot string `json:"screenshot,omitempty"`
}
