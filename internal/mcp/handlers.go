package mcp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rfeldhaus/autogui-cli/internal/agent"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handlers manages the HTTP request handling for the control server.
type Handlers struct {
	log    *zap.Logger
	runner TaskRunner
}

func NewHandlers(logger *zap.Logger, runner TaskRunner) *Handlers {
	return &Handlers{
		log:    logger.Named("handlers"),
		runner: runner,
	}
}

// RegisterRoutes sets up the routing for the control server.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/command", h.HandleCommand)
	})
}

// HandleHealthCheck confirms the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleCommand is the main entry point for JSON commands.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	h.log.Info("Received command", zap.String("command", req.Command))

	switch strings.ToLower(req.Command) {
	case "execute_task", "run":
		h.handleExecuteTask(w, r, req.Params)
	case "ping":
		h.respondWithSuccess(w, http.StatusOK, map[string]string{"message": "pong"})
	default:
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// handleExecuteTask runs a task synchronously; the single-flight lock in the
// runner rejects a second submission while one is in flight.
func (h *Handlers) handleExecuteTask(w http.ResponseWriter, r *http.Request, paramsMap map[string]any) {
	params, err := mapToStruct[TaskParams](paramsMap)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid parameters for execute_task: %v", err))
		return
	}
	if strings.TrimSpace(params.Task) == "" {
		h.respondWithError(w, http.StatusBadRequest, "Task parameter is required.")
		return
	}

	result, err := h.runner.RunTask(r.Context(), params.Task)
	if err != nil {
		if errors.Is(err, agent.ErrTaskRunning) {
			h.respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Error("Task execution failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondWithSuccess(w, http.StatusOK, result)
}

// mapToStruct converts a generic params map to a typed struct via JSON.
func mapToStruct[T any](m map[string]any) (T, error) {
	var result T
	if m == nil {
		return result, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return result, err
	}
	err = json.Unmarshal(data, &result)
	return result, err
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respond(w, statusCode, CommandResponse{Status: "error", Error: message})
}

// respondWithSuccess sends a standardized JSON success response.
func (h *Handlers) respondWithSuccess(w http.ResponseWriter, statusCode int, data any) {
	h.respond(w, statusCode, CommandResponse{Status: "success", Data: data})
}

func (h *Handlers) respond(w http.ResponseWriter, statusCode int, resp CommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
