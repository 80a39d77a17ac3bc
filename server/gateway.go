package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lexcodex/leadline/engine"
	"github.com/lexcodex/leadline/framework"
	"github.com/lexcodex/leadline/persistence"
)

const sessionExpiredMessage = "Session expired. Please refresh the page."

// Gateway exposes the conversation engine over websocket events plus a small
// HTTP surface for health checks and non-websocket clients.
type Gateway struct {
	Assistant *engine.Assistant
	Store     persistence.SessionStore
	Registry  *SessionRegistry
	Logger    *log.Logger
	upgrader  websocket.Upgrader
}

// NewGateway wires a gateway with a fresh registry.
func NewGateway(assistant *engine.Assistant, store persistence.SessionStore, logger *log.Logger) *Gateway {
	return &Gateway{
		Assistant: assistant,
		Store:     store,
		Registry:  NewSessionRegistry(),
		Logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler for the whole surface.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWS)
	mux.HandleFunc("/healthz", g.handleHealthz)
	mux.HandleFunc("/api/message", g.handleMessage)
	return mux
}

// Serve starts listening on the provided address.
func (g *Gateway) Serve(addr string) error {
	return g.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (g *Gateway) ServeContext(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: g.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	g.logf("gateway listening on %s", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Wire protocol: every frame is {"event": ..., "data": ...}.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type userMessagePayload struct {
	Message string `json:"message"`
}

type userInputResponsePayload struct {
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id"`
	Response   string `json:"response"`
}

// wsEmitter pushes engine output down one websocket connection. Writes are
// serialized; gorilla connections do not allow concurrent writers.
type wsEmitter struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *log.Logger
}

func (e *wsEmitter) send(event string, data interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.conn.WriteJSON(outboundEvent{Event: event, Data: data}); err != nil && e.logger != nil {
		e.logger.Printf("websocket write failed: %v", err)
	}
}

func (e *wsEmitter) BotResponse(sessionID, message string) {
	e.send("bot_response", map[string]interface{}{"message": message})
}

func (e *wsEmitter) UserInputRequired(sessionID string, req framework.PendingToolRequest) {
	e.send("user_input_required", req)
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	emitter := &wsEmitter{conn: conn, logger: g.Logger}

	sess, fresh := g.attachSession(ctx, r.URL.Query().Get("session"), emitter)
	emitter.send("session", map[string]interface{}{"session_id": sess.ID})

	if fresh {
		sess.Lock()
		g.Assistant.Greet(ctx, sess.State, emitter)
		g.persist(ctx, sess)
		sess.Unlock()
	}

	for {
		var evt inboundEvent
		if err := conn.ReadJSON(&evt); err != nil {
			g.detachSession(ctx, sess, err)
			return
		}
		switch evt.Event {
		case "user_message":
			var payload userMessagePayload
			if err := json.Unmarshal(evt.Data, &payload); err != nil {
				g.logf("session %s: bad user_message payload: %v", sess.ID, err)
				continue
			}
			g.runTurn(ctx, sess, func() error {
				return g.Assistant.HandleUserMessage(ctx, sess.State, payload.Message, emitter)
			})
		case "user_input_response":
			var payload userInputResponsePayload
			if err := json.Unmarshal(evt.Data, &payload); err != nil {
				g.logf("session %s: bad user_input_response payload: %v", sess.ID, err)
				continue
			}
			g.runTurn(ctx, sess, func() error {
				return g.Assistant.Resume(ctx, sess.State, payload.ToolName, payload.ToolCallID, payload.Response, emitter)
			})
		default:
			g.logf("session %s: unknown event %q", sess.ID, evt.Event)
		}
	}
}

// attachSession resumes a stored session when the client presents a known id,
// otherwise starts a fresh one. An expired id gets the expiry notice and then
// a fresh session on the same connection.
func (g *Gateway) attachSession(ctx context.Context, requested string, emitter *wsEmitter) (*Session, bool) {
	if requested != "" {
		state, version, err := g.Store.Load(ctx, requested)
		switch {
		case err == nil:
			return g.Registry.Create(requested, state, version), false
		case errors.Is(err, persistence.ErrSessionNotFound):
			emitter.send("bot_response", map[string]interface{}{"message": sessionExpiredMessage})
		default:
			g.logf("session %s: load failed: %v", requested, err)
		}
	}
	id := uuid.NewString()
	return g.Registry.Create(id, framework.NewConversationState(id), 0), true
}

// detachSession tears down the live entry. A normal close also deletes the
// stored snapshot; an abrupt drop keeps it so the client can reconnect with
// the same session id.
func (g *Gateway) detachSession(ctx context.Context, sess *Session, err error) {
	g.Registry.Destroy(sess.ID)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		if err := g.Store.Delete(context.WithoutCancel(ctx), sess.ID); err != nil {
			g.logf("session %s: delete failed: %v", sess.ID, err)
		}
		return
	}
	g.logf("session %s: connection dropped: %v", sess.ID, err)
}

// runTurn serializes the turn on the session lock and persists the outcome.
// Turn errors are logged only; the engine has already shown the customer an
// apology and rolled the state back.
func (g *Gateway) runTurn(ctx context.Context, sess *Session, turn func() error) {
	sess.Lock()
	defer sess.Unlock()
	if err := turn(); err != nil {
		g.logf("session %s: turn failed: %v", sess.ID, err)
	}
	g.persist(ctx, sess)
}

func (g *Gateway) persist(ctx context.Context, sess *Session) {
	version, err := g.Store.Save(ctx, sess.ID, sess.State, sess.Version)
	if err != nil {
		g.logf("session %s: save failed: %v", sess.ID, err)
		return
	}
	sess.Version = version
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":   "ok",
		"sessions": g.Registry.Len(),
	})
}

// MessageRequest is the POST /api/message payload. An empty session id
// starts a new conversation.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// MessageResponse carries everything the engine emitted during the turn.
type MessageResponse struct {
	SessionID         string                        `json:"session_id"`
	Messages          []string                      `json:"messages"`
	UserInputRequired *framework.PendingToolRequest `json:"user_input_required,omitempty"`
}

// bufferEmitter collects engine output for a single HTTP response.
type bufferEmitter struct {
	messages []string
	pending  *framework.PendingToolRequest
}

func (e *bufferEmitter) BotResponse(sessionID, message string) {
	e.messages = append(e.messages, message)
}

func (e *bufferEmitter) UserInputRequired(sessionID string, req framework.PendingToolRequest) {
	e.pending = &req
}

func (g *Gateway) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	emitter := &bufferEmitter{}

	var sess *Session
	if req.SessionID == "" {
		id := uuid.NewString()
		sess = g.Registry.Create(id, framework.NewConversationState(id), 0)
		sess.Lock()
		g.Assistant.Greet(ctx, sess.State, emitter)
		g.persist(ctx, sess)
		sess.Unlock()
	} else {
		var ok bool
		sess, ok = g.Registry.Get(req.SessionID)
		if !ok {
			state, version, err := g.Store.Load(ctx, req.SessionID)
			if errors.Is(err, persistence.ErrSessionNotFound) {
				w.WriteHeader(http.StatusNotFound)
				writeJSON(w, map[string]interface{}{"error": sessionExpiredMessage})
				return
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			sess = g.Registry.Create(req.SessionID, state, version)
		}
	}

	if req.Message != "" {
		g.runTurn(ctx, sess, func() error {
			return g.Assistant.HandleUserMessage(ctx, sess.State, req.Message, emitter)
		})
	}
	writeJSON(w, MessageResponse{
		SessionID:         sess.ID,
		Messages:          emitter.messages,
		UserInputRequired: emitter.pending,
	})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (g *Gateway) logf(format string, args ...interface{}) {
	if g.Logger != nil {
		g.Logger.Printf(format, args...)
	}
}
