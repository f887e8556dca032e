package generate_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/leadforge/outreach-orchestrator/pkg/generate"
	"github.com/leadforge/outreach-orchestrator/pkg/leads"
)

var _ = Describe("ValidatePersonalization", func() {
	lead := leads.Lead{
		Email:    "ada@acme.io",
		Name:     "Ada Lovelace",
		Company:  "Acme",
		JobTitle: "CTO",
	}

	letterWith := func(signals ...string) *generate.Letter {
		return &generate.Letter{
			Subject:                "s",
			Body:                   "b",
			PersonalizationSignals: signals,
		}
	}

	It("accepts a specific, verifiable observation", func() {
		reason := generate.ValidatePersonalization(
			letterWith("posted about hiring 3 SREs two weeks ago"), lead)
		Expect(reason).To(BeEmpty())
	})

	It("rejects a missing letter", func() {
		Expect(generate.ValidatePersonalization(nil, lead)).NotTo(BeEmpty())
	})

	It("rejects empty signals", func() {
		reason := generate.ValidatePersonalization(letterWith(), lead)
		Expect(reason).To(ContainSubstring("personalization_signals"))
	})

	It("rejects placeholder phrasing", func() {
		reason := generate.ValidatePersonalization(
			letterWith("you work as a CTO at Acme"), lead)
		Expect(reason).To(ContainSubstring("Generic/placeholder"))
	})

	It("rejects restating the lead row", func() {
		reason := generate.ValidatePersonalization(
			letterWith("Ada is the cto and she does work at acme on infrastructure"), lead)
		Expect(reason).NotTo(BeEmpty())
	})

	It("rejects very short signals without specifics", func() {
		reason := generate.ValidatePersonalization(letterWith("great company"), lead)
		Expect(reason).NotTo(BeEmpty())
	})

	It("accepts short signals that carry a concrete marker", func() {
		reason := generate.ValidatePersonalization(letterWith("raised Series B"), lead)
		Expect(reason).To(BeEmpty())
	})
})
