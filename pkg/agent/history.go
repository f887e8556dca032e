// Package agent runs tool-calling conversations against a langchaingo
// model: an append-only history, automatic context compaction, and an
// iteration-bounded run loop.
package agent

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// History is an append-only conversation builder. It maintains the
// provider's structural requirement that every tool response immediately
// follows the assistant message that requested it, so a history can only
// ever hold a sequence the API will accept.
type History struct {
	messages []llms.MessageContent

	// pending holds the tool call IDs of the last assistant message that
	// have not received a response yet. Non-tool appends are rejected
	// while responses are outstanding.
	pending map[string]bool
}

func NewHistory() *History {
	return &History{pending: make(map[string]bool)}
}

func (h *History) Len() int {
	return len(h.messages)
}

// Messages returns a copy of the conversation so far.
func (h *History) Messages() []llms.MessageContent {
	out := make([]llms.MessageContent, len(h.messages))
	copy(out, h.messages)
	return out
}

// PendingToolCalls reports how many tool responses are still owed.
func (h *History) PendingToolCalls() int {
	return len(h.pending)
}

// AppendSystem adds a system message.
func (h *History) AppendSystem(text string) error {
	return h.appendPlain(llms.ChatMessageTypeSystem, text)
}

// AppendUser adds a human message.
func (h *History) AppendUser(text string) error {
	return h.appendPlain(llms.ChatMessageTypeHuman, text)
}

func (h *History) appendPlain(role llms.ChatMessageType, text string) error {
	if len(h.pending) > 0 {
		return fmt.Errorf("cannot append %s message: %d tool calls awaiting responses", role, len(h.pending))
	}
	h.messages = append(h.messages, llms.TextParts(role, text))
	return nil
}

// AppendAssistant records a model response. Any tool calls in the choice
// become outstanding and must be answered before other messages.
func (h *History) AppendAssistant(choice *llms.ContentChoice) error {
	if len(h.pending) > 0 {
		return fmt.Errorf("cannot append assistant message: %d tool calls awaiting responses", len(h.pending))
	}

	msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		msg.Parts = append(msg.Parts, llms.TextContent{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		msg.Parts = append(msg.Parts, tc)
		h.pending[tc.ID] = true
	}
	if len(msg.Parts) == 0 {
		msg.Parts = append(msg.Parts, llms.TextContent{Text: ""})
	}

	h.messages = append(h.messages, msg)
	return nil
}

// AppendToolResult answers one outstanding tool call.
func (h *History) AppendToolResult(toolCallID, name, content string) error {
	if !h.pending[toolCallID] {
		return fmt.Errorf("tool result %q does not answer an outstanding tool call", toolCallID)
	}
	delete(h.pending, toolCallID)

	h.messages = append(h.messages, llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{
				ToolCallID: toolCallID,
				Name:       name,
				Content:    content,
			},
		},
	})
	return nil
}

// isToolResponse reports whether a message carries a tool call response.
func isToolResponse(msg llms.MessageContent) bool {
	for _, p := range msg.Parts {
		if _, ok := p.(llms.ToolCallResponse); ok {
			return true
		}
	}
	return false
}

// toolCallIDs returns the IDs of tool calls requested by a message.
func toolCallIDs(msg llms.MessageContent) []string {
	var ids []string
	for _, p := range msg.Parts {
		if tc, ok := p.(llms.ToolCall); ok {
			ids = append(ids, tc.ID)
		}
	}
	return ids
}
