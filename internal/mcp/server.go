package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rfeldhaus/autogui-cli/internal/agent"
	"github.com/rfeldhaus/autogui-cli/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server binds to loopback by default; remote deployments must
	// restrict origins here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Websocket timeouts and limits, following the gorilla examples.
const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 8192
	sendChannelSize = 256
)

// wsClient is one active websocket connection with its message pumps.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	// Buffered channel of outgoing messages; the writePump drains it.
	send chan WSMessage
	// ctx is cancelled when the connection goes away, taking any task the
	// client submitted down with it.
	ctx    context.Context
	cancel context.CancelFunc
}

// Server hosts the task runner behind an HTTP command API and a websocket
// interaction channel. It doubles as the approval channel: when a websocket
// client is connected, dangerous actions are confirmed interactively through
// it; with no client connected, confirmation is unsupported.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	runner   TaskRunner
	handlers *Handlers

	httpServer *http.Server

	mu      sync.Mutex
	client  *wsClient
	pending map[string]chan bool
}

var _ agent.Approver = (*Server)(nil)

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger.Named("mcp"),
		pending: make(map[string]chan bool),
	}
}

// SetRunner wires in the task runner. Must be called before Start; it is
// separate from NewServer because the runner itself needs the server as its
// approval channel.
func (s *Server) SetRunner(runner TaskRunner) {
	s.runner = runner
	s.handlers = NewHandlers(s.logger, runner)
}

// Start runs the HTTP listener until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.runner == nil {
		return errors.New("mcp: runner not set")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws/v1/interact", s.handleInteract())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		s.handlers.RegisterRoutes(r)
	})

	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: r,
	}

	s.logger.Info("Control server starting", zap.String("address", s.cfg.Server.ListenAddr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mcp: listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down control server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("Control server stopped.")
	return nil
}

// Confirm implements agent.Approver over the active websocket client. The
// answer is awaited up to the configured timeout; no client, a timeout, or a
// dropped connection all report Unsupported so the fallback policy decides.
func (s *Server) Confirm(ctx context.Context, prompt string) (agent.Decision, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return agent.DecisionUnsupported, nil
	}

	requestID := uuid.NewString()
	answer := make(chan bool, 1)

	s.mu.Lock()
	s.pending[requestID] = answer
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, requestID)
		s.mu.Unlock()
	}()

	client.sendMessage(MsgTypeConfirmRequest, requestID, map[string]any{
		"prompt": prompt,
	})

	timer := time.NewTimer(s.cfg.Server.ConfirmTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return agent.DecisionUnsupported, ctx.Err()
	case <-timer.C:
		s.logger.Warn("Confirmation request timed out.", zap.String("requestID", requestID))
		return agent.DecisionUnsupported, nil
	case approved := <-answer:
		if approved {
			return agent.DecisionApproved, nil
		}
		return agent.DecisionDenied, nil
	}
}

// resolveConfirm delivers a client's answer to the waiting Confirm call.
func (s *Server) resolveConfirm(requestID string, approved bool) {
	s.mu.Lock()
	ch, ok := s.pending[requestID]
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("Received confirmation for unknown request.", zap.String("requestID", requestID))
		return
	}
	select {
	case ch <- approved:
	default:
	}
}

func (s *Server) registerClient(c *wsClient) {
	s.mu.Lock()
	old := s.client
	s.client = c
	s.mu.Unlock()
	if old != nil {
		// Only one interactive client at a time; the newest wins.
		old.conn.Close()
	}
}

func (s *Server) unregisterClient(c *wsClient) {
	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()
}

// handleInteract upgrades the connection and starts the message pumps.
func (s *Server) handleInteract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("Failed to upgrade connection to websocket", zap.Error(err))
			return
		}
		s.logger.Info("Websocket connection established.", zap.String("remoteAddr", r.RemoteAddr))

		ctx, cancel := context.WithCancel(context.Background())
		client := &wsClient{
			server: s,
			conn:   conn,
			send:   make(chan WSMessage, sendChannelSize),
			ctx:    ctx,
			cancel: cancel,
		}
		s.registerClient(client)

		go client.writePump()
		client.readPump()

		client.cancel()
		s.unregisterClient(client)
		s.logger.Debug("Websocket interaction handler finished.", zap.String("remoteAddr", r.RemoteAddr))
	}
}

// readPump pumps messages from the websocket connection to the server. It
// also services pongs, keeping the connection responsive.
func (c *wsClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.server.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("Websocket closed unexpectedly", zap.Error(err))
			} else {
				c.server.logger.Info("Websocket connection closed.")
			}
			return
		}
		c.processMessage(msg)
	}
}

// writePump centralizes all writes to the connection and sends periodic
// pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.server.logger.Error("Failed to set write deadline", zap.Error(err))
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.logger.Error("Error writing JSON message to websocket", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.server.logger.Error("Failed to set write deadline for ping", zap.Error(err))
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) processMessage(msg WSMessage) {
	switch msg.Type {
	case MsgTypeUserPrompt:
		if msg.RequestID == "" {
			c.sendError(msg.RequestID, "UserPrompt message requires a request_id.")
			return
		}
		taskRaw, ok := msg.Data["task"]
		if !ok {
			taskRaw = msg.Data["prompt"]
		}
		task, ok := taskRaw.(string)
		if !ok || strings.TrimSpace(task) == "" {
			c.sendError(msg.RequestID, "Invalid or empty 'task' provided.")
			return
		}
		// Run the task off the readPump so control messages, including the
		// confirmation answers this very task may wait on, keep flowing.
		go c.runTask(msg.RequestID, task)

	case MsgTypeConfirmResponse:
		approved, _ := msg.Data["approved"].(bool)
		c.server.resolveConfirm(msg.RequestID, approved)

	default:
		c.server.logger.Warn("Received unknown message type from client", zap.String("type", string(msg.Type)))
		c.sendError(msg.RequestID, fmt.Sprintf("Unknown or unsupported message type: %s", msg.Type))
	}
}

// runTask drives one task for a websocket client, streaming a status update
// per loop iteration and reporting the final result. The task runs under the
// connection's context, so a dropped client cancels its task.
func (c *wsClient) runTask(requestID, task string) {
	c.server.logger.Info("Processing task from websocket client",
		zap.String("requestID", requestID), zap.String("task", task))
	c.sendStatus(requestID, "Task accepted.")

	result, err := c.server.runner.RunTaskWithProgress(c.ctx, task, func(iteration, max int) {
		c.sendStatus(requestID, fmt.Sprintf("Iteration %d/%d", iteration, max))
	})
	if err != nil {
		c.sendError(requestID, err.Error())
		return
	}

	c.sendMessage(MsgTypeAgentResponse, requestID, map[string]any{
		"status":     string(result.Status),
		"message":    result.Message,
		"iterations": result.Iterations,
		"screenshot": result.Screenshot,
	})
}

// sendMessage queues a message for the writePump. A full buffer drops the
// message rather than blocking the caller.
func (c *wsClient) sendMessage(msgType MessageType, requestID string, data map[string]any) {
	msg := WSMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
	select {
	case c.send <- msg:
	default:
		c.server.logger.Error("Websocket send buffer full, dropping message.",
			zap.String("requestID", requestID), zap.String("type", string(msgType)))
	}
}

func (c *wsClient) sendError(requestID, errorMessage string) {
	c.sendMessage(MsgTypeSystemError, requestID, map[string]any{"error": errorMessage})
}

func (c *wsClient) sendStatus(requestID, statusMessage string) {
	c.sendMessage(MsgTypeStatusUpdate, requestID, map[string]any{"status": statusMessage})
}
