package export_test

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/leadforge/outreach-orchestrator/pkg/classify"
	"github.com/leadforge/outreach-orchestrator/pkg/db/models"
	"github.com/leadforge/outreach-orchestrator/pkg/export"
	"github.com/leadforge/outreach-orchestrator/pkg/generate"
	"github.com/leadforge/outreach-orchestrator/pkg/leads"
	"github.com/leadforge/outreach-orchestrator/pkg/queue"
)

func acceptedTask() queue.ExportTask {
	completed := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)
	return queue.ExportTask{
		Email:       "ada@acme.io",
		LinkedInURL: "https://linkedin.com/in/ada",
		Lead: leads.Lead{
			Email:    "ada@acme.io",
			Name:     "Ada Lovelace",
			Company:  "Acme",
			JobTitle: "CTO",
		},
		Status: models.StatusCompleted,
		Stage1: &classify.Result{Relevant: true, Reason: "ICP match"},
		Stage2: generate.Accepted(&generate.Letter{
			Subject:                "Quick question about your platform team",
			Body:                   "Hi Ada,\n\nSaw your post.",
			SendTime:               "Tuesday, 10:00",
			PersonalizationSignals: []string{"posted about SRE hiring", "raised Series B in June"},
		}, "strong fit", ""),
		CompletedAt: &completed,
	}
}

var _ = Describe("FinalStatus", func() {
	It("maps each terminal shape to its summary status", func() {
		Expect(export.FinalStatus(queue.ExportTask{Status: models.StatusFailed})).To(Equal("error"))
		Expect(export.FinalStatus(queue.ExportTask{Status: models.StatusPending})).To(Equal("pending"))

		Expect(export.FinalStatus(queue.ExportTask{
			Status: models.StatusCompleted,
			Stage1: &classify.Result{Relevant: false},
		})).To(Equal("not_relevant_stage1"))

		Expect(export.FinalStatus(queue.ExportTask{
			Status: models.StatusCompleted,
			Stage1: &classify.Result{Relevant: true},
		})).To(Equal("stage2_not_run"))

		Expect(export.FinalStatus(queue.ExportTask{
			Status: models.StatusCompleted,
			Stage1: &classify.Result{Relevant: true},
			Stage2: generate.Rejected("weak signals", "", ""),
		})).To(Equal("not_relevant_stage2"))

		Expect(export.FinalStatus(queue.ExportTask{
			Status: models.StatusCompleted,
			Stage1: &classify.Result{Relevant: true},
			Stage2: generate.Errored("agent gave up", ""),
		})).To(Equal("error"))

		Expect(export.FinalStatus(acceptedTask())).To(Equal("success"))
	})
})

var _ = Describe("WriteResults", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	})

	readRows := func(path string) (map[string]int, [][]string) {
		f, err := os.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).NotTo(BeEmpty())

		index := make(map[string]int)
		for i, col := range rows[0] {
			index[col] = i
		}
		return index, rows[1:]
	}

	It("writes an accepted lead as a ready-to-send block", func() {
		path := filepath.Join(GinkgoT().TempDir(), "out", "results.csv")
		Expect(export.WriteResults([]queue.ExportTask{acceptedTask()}, path, logger)).To(Succeed())

		index, rows := readRows(path)
		Expect(rows).To(HaveLen(1))
		row := rows[0]

		Expect(row[index["email"]]).To(Equal("ada@acme.io"))
		Expect(row[index["name"]]).To(Equal("Ada Lovelace"))
		Expect(row[index["stage1_relevant"]]).To(Equal("Yes"))
		Expect(row[index["stage2_status"]]).To(Equal("completed"))
		Expect(row[index["stage2_rejected"]]).To(Equal("No"))
		Expect(row[index["final_status"]]).To(Equal("success"))
		Expect(row[index["personalization_signals"]]).To(Equal("posted about SRE hiring; raised Series B in June"))
		Expect(row[index["letter_body"]]).To(Equal(
			"ada@acme.io\n\nTuesday, 10:00\n\nQuick question about your platform team\n\nHi Ada,\n\nSaw your post."))
		Expect(row[index["processed_at"]]).To(Equal("2026-08-26 14:30:00"))
	})

	It("writes a stage 2 rejection as a REJECTED marker", func() {
		task := queue.ExportTask{
			Email:  "bob@beta.dev",
			Status: models.StatusCompleted,
			Stage1: &classify.Result{Relevant: true, Reason: "ICP match"},
			Stage2: generate.Rejected("recently changed jobs", "weak fit", ""),
		}
		path := filepath.Join(GinkgoT().TempDir(), "results.csv")
		Expect(export.WriteResults([]queue.ExportTask{task}, path, logger)).To(Succeed())

		index, rows := readRows(path)
		row := rows[0]
		Expect(row[index["stage2_rejected"]]).To(Equal("Yes"))
		Expect(row[index["stage2_rejection_reason"]]).To(Equal("recently changed jobs"))
		Expect(row[index["letter_body"]]).To(Equal("REJECTED: recently changed jobs"))
		Expect(row[index["final_status"]]).To(Equal("not_relevant_stage2"))
	})

	It("marks stage 2 as skipped for stage 1 rejections", func() {
		task := queue.ExportTask{
			Email:  "carl@gamma.co",
			Status: models.StatusCompleted,
			Stage1: &classify.Result{Relevant: false, Reason: "outside ICP"},
		}
		path := filepath.Join(GinkgoT().TempDir(), "results.csv")
		Expect(export.WriteResults([]queue.ExportTask{task}, path, logger)).To(Succeed())

		index, rows := readRows(path)
		row := rows[0]
		Expect(row[index["stage2_status"]]).To(Equal("skipped"))
		Expect(row[index["letter_body"]]).To(BeEmpty())
		Expect(row[index["final_status"]]).To(Equal("not_relevant_stage1"))
	})

	It("carries the error message for failed tasks", func() {
		task := queue.ExportTask{
			Email:  "eve@eps.io",
			Status: models.StatusFailed,
			Error:  "classification provider unavailable",
		}
		path := filepath.Join(GinkgoT().TempDir(), "results.csv")
		Expect(export.WriteResults([]queue.ExportTask{task}, path, logger)).To(Succeed())

		index, rows := readRows(path)
		row := rows[0]
		Expect(row[index["final_status"]]).To(Equal("error"))
		Expect(row[index["error"]]).To(Equal("classification provider unavailable"))
	})
})
