package generate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/leadforge/outreach-orchestrator/pkg/generate"
)

var _ = Describe("ExtractJSON", func() {
	It("parses the whole text when it is pure JSON", func() {
		obj, ok := generate.ExtractJSON(`{"rejected": false, "letter": {"subject": "Hi"}}`)
		Expect(ok).To(BeTrue())
		Expect(obj["rejected"]).To(Equal(false))
	})

	It("recovers the object from a fenced json block surrounded by prose", func() {
		text := "Here you go:\n```json\n{\"rejected\": false, \"letter\": {\"subject\": \"S\", \"body\": \"B\"}}\n```\nThanks!"
		obj, ok := generate.ExtractJSON(text)
		Expect(ok).To(BeTrue())
		Expect(obj["rejected"]).To(Equal(false))
		letter := obj["letter"].(map[string]any)
		Expect(letter["subject"]).To(Equal("S"))
	})

	It("finds a brace-balanced object with a rejected key inside prose", func() {
		text := `After research I concluded {"rejected": true, "reason": "no fit"} as stated.`
		obj, ok := generate.ExtractJSON(text)
		Expect(ok).To(BeTrue())
		Expect(obj["rejected"]).To(Equal(true))
		Expect(obj["reason"]).To(Equal("no fit"))
	})

	It("handles nested objects when balancing braces", func() {
		text := `Result: {"rejected": false, "letter": {"subject": "A {B}", "body": "x"}} done`
		obj, ok := generate.ExtractJSON(text)
		Expect(ok).To(BeTrue())
		letter := obj["letter"].(map[string]any)
		Expect(letter["subject"]).To(Equal("A {B}"))
	})

	It("returns false for pure prose", func() {
		_, ok := generate.ExtractJSON("I could not find anything useful about this person.")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Parse", func() {
	It("produces an accepted result with the letter fields", func() {
		result := generate.Parse(`{
			"rejected": false,
			"letter": {
				"subject": "Quick question",
				"body": "Hello there",
				"send_time": "Tuesday, 19:00",
				"personalization_signals": ["posted about SRE hiring last month"]
			},
			"relevance_assessment": "strong fit",
			"notes": "n"
		}`)

		Expect(result.Outcome).To(Equal(generate.OutcomeAccepted))
		Expect(result.Letter.Subject).To(Equal("Quick question"))
		Expect(result.Letter.SendTime).To(Equal("Tuesday, 19:00"))
		Expect(result.Letter.PersonalizationSignals).To(HaveLen(1))
		Expect(result.RelevanceAssessment).To(Equal("strong fit"))
	})

	It("accepts the legacy send_time_msk key", func() {
		result := generate.Parse(`{"rejected": false, "letter": {"subject": "s", "body": "b", "send_time_msk": "Wed 10:00"}}`)
		Expect(result.Outcome).To(Equal(generate.OutcomeAccepted))
		Expect(result.Letter.SendTime).To(Equal("Wed 10:00"))
	})

	It("produces a rejection with the agent's reason", func() {
		result := generate.Parse(`{"rejected": true, "reason": "wrong seniority", "letter": null}`)
		Expect(result.Outcome).To(Equal(generate.OutcomeRejected))
		Expect(result.Reason).To(Equal("wrong seniority"))
	})

	It("treats an accepted response without a letter as errored", func() {
		result := generate.Parse(`{"rejected": false, "letter": null}`)
		Expect(result.Outcome).To(Equal(generate.OutcomeErrored))
	})

	It("synthesizes a rejection from prose containing rejection vocabulary", func() {
		result := generate.Parse("The lead should be rejected because the company is far too small.")
		Expect(result.Outcome).To(Equal(generate.OutcomeRejected))
		Expect(result.Notes).To(ContainSubstring("too small"))
	})

	It("synthesizes an errored result with a preview for unusable prose", func() {
		result := generate.Parse("Sorry, something went sideways while composing.")
		Expect(result.Outcome).To(Equal(generate.OutcomeErrored))
		Expect(result.RelevanceAssessment).To(Equal("ERROR"))
		Expect(result.Notes).To(ContainSubstring("Raw response:"))
	})
})
