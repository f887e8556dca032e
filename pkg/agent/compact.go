package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/leadforge/outreach-orchestrator/pkg/llm"
)

const summaryPromptTemplate = `You are summarizing research and analysis results for context compression.

Extract and preserve ONLY the key findings that are relevant for writing a personalized cold email:

%s

Provide a concise summary (max 500 words) focusing on:
1. Key facts about the person (recent activities, role, interests)
2. Key facts about the company (stage, challenges, news)
3. Important insights or patterns identified
4. Any rejection signals or red flags

Be specific and preserve actionable details. Remove verbose explanations and redundant information.`

// CompressionStats accumulates compaction activity across a run.
type CompressionStats struct {
	Count          int `json:"count"`
	MessagesBefore int `json:"messages_before"`
	MessagesAfter  int `json:"messages_after"`
}

func (s *CompressionStats) Add(other CompressionStats) {
	s.Count += other.Count
	s.MessagesBefore += other.MessagesBefore
	s.MessagesAfter += other.MessagesAfter
}

// Compactor shrinks long conversations by summarizing the middle: the
// first message and the last N are kept verbatim, everything between is
// replaced by a model-written summary.
type Compactor struct {
	summarizer   llms.Model
	trigger      int
	preserveLast int
	logger       *logrus.Logger
}

func NewCompactor(summarizer llms.Model, trigger, preserveLast int, logger *logrus.Logger) *Compactor {
	return &Compactor{
		summarizer:   summarizer,
		trigger:      trigger,
		preserveLast: preserveLast,
		logger:       logger,
	}
}

// MaybeCompact compacts the history when it has reached the trigger
// length. A failed summarization keeps the original history. The returned
// usage covers the summarizer call.
func (c *Compactor) MaybeCompact(ctx context.Context, h *History) (*History, CompressionStats, llm.Usage, error) {
	var stats CompressionStats
	var usage llm.Usage

	if c == nil || h.Len() < c.trigger {
		return h, stats, usage, nil
	}
	if h.Len() <= 1+c.preserveLast {
		return h, stats, usage, nil
	}

	messages := h.Messages()
	split := len(messages) - c.preserveLast

	// Never start the kept window on a tool response: walk back to the
	// assistant message that issued the calls.
	if isToolResponse(messages[split]) {
		for i := split - 1; i > 0; i-- {
			if len(toolCallIDs(messages[i])) > 0 {
				split = i
				break
			}
		}
	}

	first := messages[0]
	middle := messages[1:split]
	tail := messages[split:]

	summary, summaryUsage, err := c.summarize(ctx, middle)
	if err != nil {
		c.logger.WithError(err).Warn("Context compression failed, keeping original history")
		return h, stats, usage, nil
	}
	usage = summaryUsage

	compacted := NewHistory()
	if err := replay(compacted, first); err != nil {
		return h, stats, usage, err
	}
	if err := compacted.AppendSystem("[COMPRESSED RESEARCH SUMMARY]\n\n" + summary); err != nil {
		return h, stats, usage, err
	}

	// Replay the tail through the builder. Tool responses whose assistant
	// message fell into the summarized middle are dropped.
	outstanding := make(map[string]string)
	for _, msg := range tail {
		if isToolResponse(msg) {
			resp := msg.Parts[0].(llms.ToolCallResponse)
			if _, ok := outstanding[resp.ToolCallID]; !ok {
				c.logger.WithField("tool_call_id", resp.ToolCallID).Warn("Dropping orphaned tool response during compaction")
				continue
			}
			if err := compacted.AppendToolResult(resp.ToolCallID, resp.Name, resp.Content); err != nil {
				return h, stats, usage, err
			}
			delete(outstanding, resp.ToolCallID)
			continue
		}
		if err := replay(compacted, msg); err != nil {
			return h, stats, usage, err
		}
		outstanding = make(map[string]string)
		for _, id := range toolCallIDs(msg) {
			outstanding[id] = id
		}
	}

	stats = CompressionStats{
		Count:          1,
		MessagesBefore: len(messages),
		MessagesAfter:  compacted.Len(),
	}

	c.logger.WithFields(logrus.Fields{
		"before": len(messages),
		"after":  compacted.Len(),
	}).Info("Context compressed")

	return compacted, stats, usage, nil
}

func (c *Compactor) summarize(ctx context.Context, middle []llms.MessageContent) (string, llm.Usage, error) {
	var parts []string
	for _, msg := range middle {
		for _, p := range msg.Parts {
			switch v := p.(type) {
			case llms.ToolCallResponse:
				parts = append(parts, "Tool Result: "+truncate(v.Content, 500))
			case llms.ToolCall:
				if v.FunctionCall != nil {
					parts = append(parts, "AI called: "+v.FunctionCall.Name)
				}
			case llms.TextContent:
				if msg.Role == llms.ChatMessageTypeAI && v.Text != "" {
					parts = append(parts, "AI: "+truncate(v.Text, 300))
				}
			}
		}
	}

	prompt := fmt.Sprintf(summaryPromptTemplate, strings.Join(parts, "\n\n"))
	resp, err := c.summarizer.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", llm.Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", llm.Usage{}, fmt.Errorf("summarizer returned no choices")
	}

	choice := resp.Choices[0]
	return choice.Content, llm.UsageFromGenerationInfo(choice.GenerationInfo), nil
}

// replay appends an already-built message to a history via the builder,
// preserving its invariant checks.
func replay(h *History, msg llms.MessageContent) error {
	switch msg.Role {
	case llms.ChatMessageTypeAI:
		choice := &llms.ContentChoice{}
		for _, p := range msg.Parts {
			switch v := p.(type) {
			case llms.TextContent:
				choice.Content = v.Text
			case llms.ToolCall:
				choice.ToolCalls = append(choice.ToolCalls, v)
			}
		}
		return h.AppendAssistant(choice)
	case llms.ChatMessageTypeSystem:
		return h.AppendSystem(textOf(msg))
	default:
		return h.AppendUser(textOf(msg))
	}
}

func textOf(msg llms.MessageContent) string {
	var b strings.Builder
	for _, p := range msg.Parts {
		if t, ok := p.(llms.TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
