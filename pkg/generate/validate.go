package generate

import (
	"fmt"
	"strings"

	"github.com/leadforge/outreach-orchestrator/pkg/leads"
)

// Generic phrasings that indicate the writer restated the lead row instead
// of citing real research.
var disallowedSubstrings = []string{
	"you work as",
	"you are working as",
	"works as",
	"working as",
	"at company",
	"job title",
	"companyname",
	"linkedin profile",
	"generic observation",
}

// Cues that a short signal still carries a concrete observation.
var specificityMarkers = []string{
	"posted", "post", "commented", "article", "hiring", "opening", "open roles",
	"raised", "series", "joined", "months", "years", "week", "weeks", "days",
	"yesterday", "today", "announcement", "launch", "funding", "seed",
	"series a", "series b", "series c",
}

// ValidatePersonalization checks that a letter's personalization signals
// are specific and verifiable, rejecting placeholder or tautological ones.
// Returns a non-empty reason when validation fails.
func ValidatePersonalization(letter *Letter, lead leads.Lead) string {
	if letter == nil {
		return "Missing letter"
	}
	if len(letter.PersonalizationSignals) == 0 {
		return "Missing personalization_signals (must reference a specific, verifiable observation)"
	}

	role := strings.ToLower(lead.JobTitle)
	company := strings.ToLower(lead.Company)

	for _, signal := range letter.PersonalizationSignals {
		if genericSignal(signal, role, company) {
			return fmt.Sprintf("Generic/placeholder observation found: '%s'", truncate(signal, 80))
		}
	}
	return ""
}

func genericSignal(signal, role, company string) bool {
	t := strings.ToLower(strings.TrimSpace(signal))
	if t == "" {
		return true
	}
	for _, s := range disallowedSubstrings {
		if strings.Contains(t, s) {
			return true
		}
	}
	if t == "company" || t == "job title" {
		return true
	}
	// Tautology: just restating where they work.
	if company != "" && strings.Contains(t, company) && strings.Contains(t, "work") &&
		role != "" && strings.Contains(t, role) {
		return true
	}
	// Very short with no specificity cues.
	words := len(strings.Fields(t))
	hasDigit := strings.ContainsAny(t, "0123456789")
	hasMarker := false
	for _, m := range specificityMarkers {
		if strings.Contains(t, m) {
			hasMarker = true
			break
		}
	}
	return words < 6 && !hasDigit && !hasMarker
}
