package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexcodex/leadline/framework"
)

// OllamaClient drives the decision step and slot extraction through a local
// Ollama server. Useful for development without an OpenAI key.
type OllamaClient struct {
	Endpoint string
	Model    string
	client   *http.Client
	Debug    bool
}

type ollamaToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type ollamaToolDef struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls"`
}

type ollamaChatResponse struct {
	Message    *ollamaMessage `json:"message"`
	DoneReason string         `json:"done_reason"`
}

// NewOllamaClient builds a client. An empty endpoint targets the default
// local server.
func NewOllamaClient(endpoint, model string) *OllamaClient {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &OllamaClient{
		Endpoint: endpoint,
		Model:    model,
		client:   &http.Client{Timeout: 3 * time.Minute},
	}
}

// Decide implements DecisionClient via /api/chat with tool definitions.
func (c *OllamaClient) Decide(ctx context.Context, system string, history []framework.Message, tools []framework.Tool) (*Decision, error) {
	payload := map[string]interface{}{
		"model":    c.Model,
		"messages": c.convertMessages(system, history),
		"tools":    c.convertTools(tools),
		"stream":   false,
	}
	raw, err := c.doRequest(ctx, "/api/chat", payload)
	if err != nil {
		return nil, err
	}
	decision := &Decision{}
	if raw.Message != nil {
		decision.Text = raw.Message.Content
		for _, call := range raw.Message.ToolCalls {
			id := call.ID
			if id == "" {
				// ollama omits call ids; synthesize one so suspension and
				// reduction can still key on it
				id = "call_" + uuid.NewString()
			}
			decision.ToolCalls = append(decision.ToolCalls, framework.ToolCall{
				ID:   id,
				Name: call.Function.Name,
				Args: parseOllamaArguments(call.Function.Arguments),
			})
		}
	}
	return decision, nil
}

// ExtractSlots implements Extractor via /api/chat with JSON formatting.
func (c *OllamaClient) ExtractSlots(ctx context.Context, history []framework.Message, current framework.Slots, userInput string) (framework.Slots, error) {
	payload := map[string]interface{}{
		"model": c.Model,
		"messages": []map[string]interface{}{
			{"role": "system", "content": extractionSystemPrompt},
			{"role": "user", "content": extractionUserPrompt(current, history, userInput)},
		},
		"format": "json",
		"stream": false,
	}
	raw, err := c.doRequest(ctx, "/api/chat", payload)
	if err != nil {
		return framework.Slots{}, err
	}
	if raw.Message == nil {
		return framework.Slots{}, nil
	}
	return decodeSlots(raw.Message.Content)
}

func (c *OllamaClient) convertMessages(system string, history []framework.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(history)+1)
	if system != "" {
		out = append(out, map[string]interface{}{"role": "system", "content": system})
	}
	for _, msg := range history {
		m := map[string]interface{}{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			calls := make([]map[string]interface{}, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				args := call.Args
				if args == nil {
					args = map[string]interface{}{}
				}
				calls = append(calls, map[string]interface{}{
					"id":   call.ID,
					"type": "function",
					"function": map[string]interface{}{
						"name":      call.Name,
						"arguments": args,
					},
				})
			}
			m["tool_calls"] = calls
		}
		out = append(out, m)
	}
	return out
}

func (c *OllamaClient) convertTools(tools []framework.Tool) []ollamaToolDef {
	out := make([]ollamaToolDef, 0, len(tools))
	for _, tool := range tools {
		out = append(out, ollamaToolDef{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  emptyObjectSchema(),
			},
		})
	}
	return out
}

func (c *OllamaClient) doRequest(ctx context.Context, path string, payload interface{}) (*ollamaChatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	c.logf("request %s payload: %s", path, truncate(string(body), 2048))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(msg))
		if detail != "" {
			return nil, fmt.Errorf("ollama error: %s: %s", resp.Status, detail)
		}
		return nil, fmt.Errorf("ollama error: %s", resp.Status)
	}
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logf("response %s payload: %s", path, truncate(string(responseBody), 2048))
	var raw ollamaChatResponse
	if err := json.Unmarshal(responseBody, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

func parseOllamaArguments(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		var nested map[string]interface{}
		if err := json.Unmarshal([]byte(str), &nested); err == nil {
			return nested
		}
		return map[string]interface{}{"value": str}
	}
	return map[string]interface{}{"_raw": string(raw)}
}

func (c *OllamaClient) logf(format string, args ...interface{}) {
	if !c.Debug {
		return
	}
	log.Printf("[ollama] "+format, args...)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
