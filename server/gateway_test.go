package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/leadline/engine"
	"github.com/lexcodex/leadline/framework"
	"github.com/lexcodex/leadline/llm"
	"github.com/lexcodex/leadline/persistence"
)

// scriptedModel replays decisions in order.
type scriptedModel struct {
	decisions []*llm.Decision
}

func (m *scriptedModel) Decide(ctx context.Context, system string, history []framework.Message, tools []framework.Tool) (*llm.Decision, error) {
	if len(m.decisions) == 0 {
		return &llm.Decision{Text: "Anything else I can help with?"}, nil
	}
	next := m.decisions[0]
	m.decisions = m.decisions[1:]
	return next, nil
}

type askStub struct{}

func (askStub) Name() string        { return framework.ToolAskContactPermission }
func (askStub) Description() string { return "ask contact permission" }
func (askStub) Execute(ctx context.Context, state *framework.ConversationState) (*framework.ToolResult, error) {
	return &framework.ToolResult{Success: true, Pending: &framework.PendingToolRequest{
		ToolName: framework.ToolAskContactPermission,
		Prompt:   framework.ContactPermissionPrompt,
	}}, nil
}

func newTestGateway(model llm.DecisionClient, store persistence.SessionStore) *Gateway {
	registry := framework.NewToolRegistry()
	registry.Register(askStub{})
	assistant := &engine.Assistant{
		Model:     model,
		Collector: &engine.InfoCollector{},
		Executor:  &engine.ToolExecutor{Registry: registry},
	}
	return NewGateway(assistant, store, nil)
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	var evt struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&evt))
	return evt.Event, evt.Data
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

func TestConnectGreetsNewSession(t *testing.T) {
	model := &scriptedModel{decisions: []*llm.Decision{{Text: "Hello! How can I help?"}}}
	gw := newTestGateway(model, persistence.NewMemorySessionStore())
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "")

	event, data := readEvent(t, conn)
	assert.Equal(t, "session", event)
	assert.NotEmpty(t, data["session_id"])

	event, data = readEvent(t, conn)
	assert.Equal(t, "bot_response", event)
	assert.Equal(t, "Hello! How can I help?", data["message"])
}

func TestUserMessageRoundTrip(t *testing.T) {
	model := &scriptedModel{decisions: []*llm.Decision{
		{Text: "greeting"},
		{Text: "Nice to meet you, Ada."},
	}}
	store := persistence.NewMemorySessionStore()
	gw := newTestGateway(model, store)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "")
	_, sessionData := readEvent(t, conn) // session
	readEvent(t, conn)                   // greeting

	sendEvent(t, conn, "user_message", map[string]string{"message": "I'm Ada"})
	event, data := readEvent(t, conn)
	assert.Equal(t, "bot_response", event)
	assert.Equal(t, "Nice to meet you, Ada.", data["message"])

	// the turn was persisted
	sessionID := sessionData["session_id"].(string)
	state, version, err := store.Load(context.Background(), sessionID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, int64(2))
	assert.Equal(t, "I'm Ada", state.LastUserInput)
}

func TestPermissionSuspensionOverWebsocket(t *testing.T) {
	model := &scriptedModel{decisions: []*llm.Decision{
		{Text: "greeting"},
		{ToolCalls: []framework.ToolCall{{ID: "c7", Name: framework.ToolAskContactPermission}}},
		{Text: "Thank you!"},
	}}
	gw := newTestGateway(model, persistence.NewMemorySessionStore())
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "")
	readEvent(t, conn) // session
	readEvent(t, conn) // greeting

	sendEvent(t, conn, "user_message", map[string]string{"message": "everything is filled in"})
	event, data := readEvent(t, conn)
	require.Equal(t, "user_input_required", event)
	assert.Equal(t, framework.ToolAskContactPermission, data["tool_name"])
	assert.Equal(t, "c7", data["tool_call_id"])
	assert.Equal(t, framework.ContactPermissionPrompt, data["message"])

	sendEvent(t, conn, "user_input_response", map[string]string{
		"tool_name":    framework.ToolAskContactPermission,
		"tool_call_id": "c7",
		"response":     "yes",
	})
	event, data = readEvent(t, conn)
	assert.Equal(t, "bot_response", event)
	assert.Equal(t, "Thank you!", data["message"])
}

func TestReconnectResumesStoredSession(t *testing.T) {
	store := persistence.NewMemorySessionStore()
	state := framework.NewConversationState("s-resume")
	state.Append(framework.UserMessage("earlier"), framework.AssistantMessage("earlier reply"))
	_, err := store.Save(context.Background(), "s-resume", state, 0)
	require.NoError(t, err)

	model := &scriptedModel{decisions: []*llm.Decision{{Text: "Welcome back!"}}}
	gw := newTestGateway(model, store)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "?session=s-resume")
	event, data := readEvent(t, conn)
	assert.Equal(t, "session", event)
	assert.Equal(t, "s-resume", data["session_id"])

	// no greeting for a resumed session; the next event answers our message
	sendEvent(t, conn, "user_message", map[string]string{"message": "I'm back"})
	event, data = readEvent(t, conn)
	assert.Equal(t, "bot_response", event)
	assert.Equal(t, "Welcome back!", data["message"])
}

func TestUnknownSessionGetsExpiryNoticeAndFreshSession(t *testing.T) {
	model := &scriptedModel{decisions: []*llm.Decision{{Text: "greeting"}}}
	gw := newTestGateway(model, persistence.NewMemorySessionStore())
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	conn := dialWS(t, srv, "?session=gone")
	event, data := readEvent(t, conn)
	assert.Equal(t, "bot_response", event)
	assert.Equal(t, sessionExpiredMessage, data["message"])

	event, data = readEvent(t, conn)
	assert.Equal(t, "session", event)
	assert.NotEqual(t, "gone", data["session_id"])
}

func TestHTTPMessageEndpoint(t *testing.T) {
	model := &scriptedModel{decisions: []*llm.Decision{
		{Text: "greeting"},
		{Text: "Got it."},
	}}
	gw := newTestGateway(model, persistence.NewMemorySessionStore())
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	body, _ := json.Marshal(MessageRequest{Message: ""})
	resp, err := http.Post(srv.URL+"/api/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var first MessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	require.NotEmpty(t, first.SessionID)
	require.Equal(t, []string{"greeting"}, first.Messages)

	body, _ = json.Marshal(MessageRequest{SessionID: first.SessionID, Message: "hello"})
	resp2, err := http.Post(srv.URL+"/api/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp2.Body.Close()

	var second MessageResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&second))
	assert.Equal(t, []string{"Got it."}, second.Messages)
}

func TestHTTPMessageUnknownSession(t *testing.T) {
	gw := newTestGateway(&scriptedModel{}, persistence.NewMemorySessionStore())
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	body, _ := json.Marshal(MessageRequest{SessionID: "gone", Message: "hello"})
	resp, err := http.Post(srv.URL+"/api/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, sessionExpiredMessage, payload["error"])
}

func TestHealthz(t *testing.T) {
	gw := newTestGateway(&scriptedModel{}, persistence.NewMemorySessionStore())
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "ok", payload["status"])
}
