package agent_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tmc/langchaingo/llms"

	"github.com/leadforge/outreach-orchestrator/pkg/agent"
)

func toolCallChoice(ids ...string) *llms.ContentChoice {
	choice := &llms.ContentChoice{}
	for _, id := range ids {
		choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
			ID:   id,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "web_search",
				Arguments: `{"query": "x"}`,
			},
		})
	}
	return choice
}

var _ = Describe("History", func() {
	var h *agent.History

	BeforeEach(func() {
		h = agent.NewHistory()
	})

	It("accepts a well-formed conversation", func() {
		Expect(h.AppendSystem("system")).To(Succeed())
		Expect(h.AppendUser("task")).To(Succeed())
		Expect(h.AppendAssistant(toolCallChoice("call_1"))).To(Succeed())
		Expect(h.AppendToolResult("call_1", "web_search", "results")).To(Succeed())
		Expect(h.AppendAssistant(&llms.ContentChoice{Content: "done"})).To(Succeed())
		Expect(h.Len()).To(Equal(5))
		Expect(h.PendingToolCalls()).To(BeZero())
	})

	It("rejects a tool result that answers no outstanding call", func() {
		Expect(h.AppendUser("task")).To(Succeed())
		err := h.AppendToolResult("call_99", "web_search", "results")
		Expect(err).To(MatchError(ContainSubstring("outstanding")))
	})

	It("rejects plain appends while tool responses are owed", func() {
		Expect(h.AppendUser("task")).To(Succeed())
		Expect(h.AppendAssistant(toolCallChoice("call_1", "call_2"))).To(Succeed())
		Expect(h.PendingToolCalls()).To(Equal(2))

		Expect(h.AppendUser("more")).To(HaveOccurred())
		Expect(h.AppendSystem("note")).To(HaveOccurred())
		Expect(h.AppendAssistant(&llms.ContentChoice{Content: "x"})).To(HaveOccurred())

		Expect(h.AppendToolResult("call_1", "web_search", "a")).To(Succeed())
		Expect(h.AppendUser("still owed one")).To(HaveOccurred())
		Expect(h.AppendToolResult("call_2", "web_search", "b")).To(Succeed())
		Expect(h.AppendUser("now fine")).To(Succeed())
	})

	It("places each tool response immediately after its requesting assistant message", func() {
		Expect(h.AppendUser("task")).To(Succeed())
		Expect(h.AppendAssistant(toolCallChoice("call_1"))).To(Succeed())
		Expect(h.AppendToolResult("call_1", "web_search", "r")).To(Succeed())

		msgs := h.Messages()
		Expect(msgs).To(HaveLen(3))
		Expect(msgs[1].Role).To(Equal(llms.ChatMessageTypeAI))
		Expect(msgs[2].Role).To(Equal(llms.ChatMessageTypeTool))
		resp := msgs[2].Parts[0].(llms.ToolCallResponse)
		Expect(resp.ToolCallID).To(Equal("call_1"))
	})

	It("returns a copy from Messages", func() {
		Expect(h.AppendUser("task")).To(Succeed())
		msgs := h.Messages()
		msgs[0] = llms.TextParts(llms.ChatMessageTypeHuman, "mutated")
		Expect(h.Messages()[0].Parts[0].(llms.TextContent).Text).To(Equal("task"))
	})
})
