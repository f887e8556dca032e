// Package export writes the batch results CSV and the human summary.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/leadforge/outreach-orchestrator/pkg/generate"
	"github.com/leadforge/outreach-orchestrator/pkg/queue"
)

var columns = []string{
	"email",
	"name",
	"company",
	"job_title",
	"linkedin_url",

	"stage1_relevant",
	"stage1_reason",

	"stage2_status",
	"stage2_rejected",
	"stage2_rejection_reason",

	"letter_subject",
	"letter_body",
	"letter_send_time",
	"personalization_signals",

	"relevance_assessment",
	"notes",

	"final_status",
	"error",
	"processed_at",
}

// WriteResults writes every terminal task to a CSV at outputPath.
func WriteResults(tasks []queue.ExportTask, outputPath string, logger *logrus.Logger) error {
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, task := range tasks {
		if err := w.Write(row(task)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"rows": len(tasks),
		"path": outputPath,
	}).Info("Wrote results")
	return nil
}

func row(task queue.ExportTask) []string {
	stage1Relevant := ""
	stage1Reason := ""
	if task.Stage1 != nil {
		stage1Relevant = yesNo(task.Stage1.Relevant)
		stage1Reason = task.Stage1.Reason
	}

	stage2Status := "skipped"
	stage2Rejected := ""
	stage2Reason := ""
	letterSubject := ""
	letterSendTime := ""
	signals := ""
	assessment := ""
	notes := ""
	if task.Stage2 != nil {
		stage2Status = "completed"
		stage2Rejected = yesNo(task.Stage2.Outcome == generate.OutcomeRejected)
		if task.Stage2.Outcome == generate.OutcomeRejected {
			stage2Reason = task.Stage2.Reason
		}
		if letter := task.Stage2.Letter; letter != nil {
			letterSubject = letter.Subject
			letterSendTime = letter.SendTime
			signals = strings.Join(letter.PersonalizationSignals, "; ")
		}
		assessment = task.Stage2.RelevanceAssessment
		notes = task.Stage2.Notes
	}

	processedAt := ""
	if task.CompletedAt != nil {
		processedAt = task.CompletedAt.Format("2006-01-02 15:04:05")
	}

	return []string{
		task.Email,
		task.Lead.Name,
		task.Lead.Company,
		task.Lead.JobTitle,
		task.LinkedInURL,

		stage1Relevant,
		stage1Reason,

		stage2Status,
		stage2Rejected,
		stage2Reason,

		letterSubject,
		letterBody(task),
		letterSendTime,
		signals,

		assessment,
		notes,

		FinalStatus(task),
		task.Error,
		processedAt,
	}
}

// letterBody renders the composite letter column: the rejection reason for
// declined leads, or the ready-to-send email/send-time/subject/body block
// for accepted ones.
func letterBody(task queue.ExportTask) string {
	if task.Stage2 == nil {
		return ""
	}
	switch task.Stage2.Outcome {
	case generate.OutcomeRejected:
		reason := task.Stage2.Reason
		if reason == "" {
			reason = "Not relevant"
		}
		return "REJECTED: " + reason
	case generate.OutcomeAccepted:
		letter := task.Stage2.Letter
		if letter == nil {
			return ""
		}
		return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s", task.Email, letter.SendTime, letter.Subject, letter.Body)
	default:
		return ""
	}
}

// FinalStatus derives the single summary status for a task.
func FinalStatus(task queue.ExportTask) string {
	switch {
	case task.Status == "failed":
		return "error"
	case task.Status == "pending" || task.Status == "processing":
		return "pending"
	case task.Stage1 == nil || !task.Stage1.Relevant:
		return "not_relevant_stage1"
	case task.Stage2 == nil:
		return "stage2_not_run"
	case task.Stage2.Outcome == generate.OutcomeRejected:
		return "not_relevant_stage2"
	case task.Stage2.Outcome == generate.OutcomeErrored:
		return "error"
	default:
		return "success"
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
