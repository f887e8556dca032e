package leads

import (
	"strings"
)

// Lead is the normalized internal representation of one prospect row.
// Normalization from raw CSV columns happens exactly once, at ingest;
// downstream components never see source column names.
type Lead struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Company     string `json:"company"`
	JobTitle    string `json:"job_title"`
	LinkedInURL string `json:"linkedin_url"`
}

// Normalize maps a raw CSV row onto the fixed Lead schema. Both the
// standard column convention (email, name, company, job_title,
// linkedin_url) and the vendor export convention (Email, First Name +
// Last Name, companyName, jobTitle, linkedIn) are recognized.
func Normalize(row map[string]string) Lead {
	return Lead{
		Email:       strings.TrimSpace(first(row, "Email", "email")),
		Name:        fullName(row),
		Company:     first(row, "companyName", "company"),
		JobTitle:    first(row, "jobTitle", "job_title"),
		LinkedInURL: first(row, "linkedIn", "linkedin_url", "LinkedIn"),
	}
}

// HasEmail reports whether the lead carries a usable email address.
func (l Lead) HasEmail() bool {
	return l.Email != ""
}

func fullName(row map[string]string) string {
	name := strings.TrimSpace(strings.TrimSpace(row["First Name"]) + " " + strings.TrimSpace(row["Last Name"]))
	if name != "" {
		return name
	}
	return row["name"]
}

func first(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
