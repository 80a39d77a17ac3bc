package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/leadline/framework"
)

func openAIStub(t *testing.T, handler func(body map[string]interface{}) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(body)))
	}))
}

func TestOpenAIDecideParsesTextAndToolCalls(t *testing.T) {
	srv := openAIStub(t, func(body map[string]interface{}) string {
		messages := body["messages"].([]interface{})
		first := messages[0].(map[string]interface{})
		assert.Equal(t, "system", first["role"])
		assert.NotEmpty(t, body["tools"])
		return `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "One moment while I pull your report.",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "CreditPullAPI", "arguments": "{\"Debt\": 1}"}
					}]
				}
			}]
		}`
	})
	defer srv.Close()

	client := NewOpenAIClient("test-key", "gpt-4o-mini", srv.URL)
	history := []framework.Message{
		framework.UserMessage("pull my credit"),
		framework.AssistantMessage("ok", framework.ToolCall{ID: "c0", Name: framework.ToolSavingsEstimate}),
		framework.ToolMessage("c0", map[string]interface{}{"Success": false}),
	}
	decision, err := client.Decide(context.Background(), "persona", history, []framework.Tool{stubTool{name: "CreditPullAPI"}})
	require.NoError(t, err)

	assert.Equal(t, "One moment while I pull your report.", decision.Text)
	require.Len(t, decision.ToolCalls, 1)
	assert.Equal(t, "call_abc", decision.ToolCalls[0].ID)
	assert.Equal(t, "CreditPullAPI", decision.ToolCalls[0].Name)
	// arguments are recorded for the transcript even though execution ignores them
	assert.Equal(t, map[string]interface{}{"Debt": 1.0}, decision.ToolCalls[0].Args)
}

func TestOpenAIExtractSlotsRequestsJSONObject(t *testing.T) {
	srv := openAIStub(t, func(body map[string]interface{}) string {
		format := body["response_format"].(map[string]interface{})
		assert.Equal(t, "json_object", format["type"])
		return `{
			"choices": [{
				"message": {"role": "assistant", "content": "{\"Email\": \"ada@example.com\"}"}
			}]
		}`
	})
	defer srv.Close()

	client := NewOpenAIClient("test-key", "", srv.URL)
	slots, err := client.ExtractSlots(context.Background(), nil, framework.Slots{}, "reach me at ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, slots.Email)
	assert.Equal(t, "ada@example.com", *slots.Email)
}
