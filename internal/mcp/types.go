// Package mcp hosts the control server: a small JSON command API plus a
// websocket channel for interactive task runs and confirmation prompts.
package mcp

import (
	"context"

	"github.com/rfeldhaus/autogui-cli/internal/agent"
)

// TaskRunner is the slice of the agent the server needs. Narrowed to an
// interface so handlers can be tested against a mock.
type TaskRunner interface {
	RunTask(ctx context.Context, task string) (*agent.TaskResult, error)
	RunTaskWithProgress(ctx context.Context, task string, progress func(iteration, max int)) (*agent.TaskResult, error)
}

// MessageType identifies the kind of websocket message.
type MessageType string

const (
	// MsgTypeUserPrompt submits a task over the websocket.
	MsgTypeUserPrompt MessageType = "UserPrompt"
	// MsgTypeAgentResponse carries a finished task result.
	MsgTypeAgentResponse MessageType = "AgentResponse"
	// MsgTypeStatusUpdate reports loop progress while a task runs.
	MsgTypeStatusUpdate MessageType = "StatusUpdate"
	// MsgTypeSystemError reports a failure tied to a request.
	MsgTypeSystemError MessageType = "SystemError"
	// MsgTypeConfirmRequest asks the client to approve a dangerous action.
	MsgTypeConfirmRequest MessageType = "ConfirmRequest"
	// MsgTypeConfirmResponse answers a ConfirmRequest.
	MsgTypeConfirmResponse MessageType = "ConfirmResponse"
)

// WSMessage is the standardized envelope for websocket communication.
type WSMessage struct {
	Type MessageType    `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	// Timestamp is ISO 8601 (RFC3339).
	Timestamp string `json:"timestamp"`
	// RequestID correlates requests with their responses.
	RequestID string `json:"request_id,omitempty"`
}

// CommandRequest is the body of POST /api/v1/command.
type CommandRequest struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// CommandResponse is the standardized JSON response envelope.
type CommandResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// TaskParams carries the parameters of the execute_task command.
type TaskParams struct {
	Task string `json:"task"`
}
