package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lexcodex/leadline/framework"
)

// OpenAIClient drives both the decision step and slot extraction through the
// OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client. An empty baseURL uses the public API; an
// empty model falls back to gpt-4o-mini.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

// Decide implements DecisionClient.
func (c *OpenAIClient) Decide(ctx context.Context, system string, history []framework.Message, tools []framework.Tool) (*Decision, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(system, history),
		Tools:    toOpenAITools(tools),
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai decision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &Decision{}, nil
	}
	msg := resp.Choices[0].Message
	decision := &Decision{Text: msg.Content}
	for _, call := range msg.ToolCalls {
		decision.ToolCalls = append(decision.ToolCalls, framework.ToolCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: parseCallArguments(call.Function.Arguments),
		})
	}
	return decision, nil
}

// ExtractSlots implements Extractor using JSON-object response formatting.
func (c *OpenAIClient) ExtractSlots(ctx context.Context, history []framework.Message, current framework.Slots, userInput string) (framework.Slots, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: extractionUserPrompt(current, history, userInput)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return framework.Slots{}, fmt.Errorf("openai extraction request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return framework.Slots{}, nil
	}
	return decodeSlots(resp.Choices[0].Message.Content)
}

func toOpenAIMessages(system string, history []framework.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range history {
		entry := openai.ChatCompletionMessage{Content: msg.Content}
		switch msg.Role {
		case framework.RoleUser:
			entry.Role = openai.ChatMessageRoleUser
		case framework.RoleAssistant:
			entry.Role = openai.ChatMessageRoleAssistant
			for _, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Args)
				if err != nil || call.Args == nil {
					args = []byte("{}")
				}
				entry.ToolCalls = append(entry.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
		case framework.RoleTool:
			entry.Role = openai.ChatMessageRoleTool
			entry.ToolCallID = msg.ToolCallID
		case framework.RoleSystem:
			entry.Role = openai.ChatMessageRoleSystem
		default:
			continue
		}
		out = append(out, entry)
	}
	return out
}

func toOpenAITools(tools []framework.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  emptyObjectSchema(),
			},
		})
	}
	return out
}

func parseCallArguments(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{"_raw": raw}
	}
	return args
}
