// Package framework holds the data structures shared by the engine, tools,
// transport, and persistence layers: the conversation state and its typed
// message history, the customer slot record, the consent gate, and the tool
// contracts. Everything here is plain data plus pure transitions so the
// packages above it stay testable without network collaborators.
package framework

import (
	"encoding/json"
	"time"
)

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the decision step. Args are kept
// for the transcript but are never trusted at execution time; the executor
// rebuilds arguments from authoritative state.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Message is one entry of the conversation transcript. Assistant messages may
// carry tool calls alongside text; a tool message answers exactly one call,
// identified by ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// UserMessage builds a user transcript entry.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

// AssistantMessage builds an assistant entry, optionally carrying tool calls.
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls, Timestamp: time.Now().UTC()}
}

// ToolMessage answers the tool call identified by callID. The payload is
// serialized to JSON so the decision step sees the same shape the reducer saw.
func ToolMessage(callID string, payload interface{}) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"error":"unserializable tool result"}`)
	}
	return Message{Role: RoleTool, Content: string(data), ToolCallID: callID, Timestamp: time.Now().UTC()}
}

// SystemNote injects an out-of-band fact into the transcript, such as a
// city/state inference from a zip code.
func SystemNote(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now().UTC()}
}

// SavingsEstimate is the program quote computed once per conversation.
type SavingsEstimate struct {
	Debt               float64 `json:"debt"`
	Savings            float64 `json:"savings"`
	Payment            float64 `json:"payment"`
	Settlement         float64 `json:"settlement"`
	ProgramLengthYears float64 `json:"program_length"`
}

// ConversationState is the complete durable record of one session. It is the
// unit of snapshotting: persistence serializes it whole, and the orchestrator
// restores a pre-turn copy when a turn fails.
type ConversationState struct {
	SessionID            string           `json:"session_id"`
	Messages             []Message        `json:"messages"`
	LastUserInput        string           `json:"last_user_input"`
	Slots                Slots            `json:"required_information"`
	ContactPermission    *bool            `json:"contact_permission"`
	CreditPullPermission *bool            `json:"credit_pull_permission"`
	CreditPullComplete   *bool            `json:"credit_pull_complete"`
	LeadCreateComplete   *bool            `json:"lead_create_complete"`
	SavingsEstimate      *SavingsEstimate `json:"savings_estimate"`
	DeclineReason        string           `json:"reason_for_decline,omitempty"`
}

// NewConversationState creates an empty state for a session.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{SessionID: sessionID}
}

// Append adds entries to the transcript.
func (s *ConversationState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Clone returns a deep copy via a JSON round trip, the same representation the
// session store persists, so a restored snapshot is byte-identical to what
// would have been saved.
func (s *ConversationState) Clone() *ConversationState {
	data, err := json.Marshal(s)
	if err != nil {
		// ConversationState contains only JSON-serializable fields; a
		// marshal failure here means memory corruption, not bad input.
		panic("conversation state not serializable: " + err.Error())
	}
	var out ConversationState
	if err := json.Unmarshal(data, &out); err != nil {
		panic("conversation state not round-trippable: " + err.Error())
	}
	return &out
}

// LastMessage returns the newest transcript entry.
func (s *ConversationState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// PendingToolCall finds the assistant tool call with the given id, provided no
// tool message has answered it yet. This is how a resumed human response is
// matched back to the question that suspended the turn.
func (s *ConversationState) PendingToolCall(callID string) (ToolCall, bool) {
	answered := false
	var found ToolCall
	var ok bool
	for _, msg := range s.Messages {
		switch msg.Role {
		case RoleAssistant:
			for _, call := range msg.ToolCalls {
				if call.ID == callID {
					found, ok = call, true
				}
			}
		case RoleTool:
			if msg.ToolCallID == callID {
				answered = true
			}
		}
	}
	if !ok || answered {
		return ToolCall{}, false
	}
	return found, true
}

// OpenConsentCall returns the unanswered consent-ask call the conversation is
// suspended on, if any. While one is open the next inbound event must be the
// human's answer; anything else gets the same question again.
func (s *ConversationState) OpenConsentCall() (ToolCall, PermissionKind, bool) {
	answered := make(map[string]bool)
	for _, msg := range s.Messages {
		if msg.Role == RoleTool {
			answered[msg.ToolCallID] = true
		}
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role != RoleAssistant {
			continue
		}
		for _, call := range s.Messages[i].ToolCalls {
			if answered[call.ID] {
				continue
			}
			if kind, ok := PermissionKindForTool(call.Name); ok {
				return call, kind, true
			}
		}
	}
	return ToolCall{}, "", false
}
