package workerpool_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/leadforge/outreach-orchestrator/pkg/classify"
	"github.com/leadforge/outreach-orchestrator/pkg/db"
	"github.com/leadforge/outreach-orchestrator/pkg/db/models"
	"github.com/leadforge/outreach-orchestrator/pkg/generate"
	"github.com/leadforge/outreach-orchestrator/pkg/leads"
	"github.com/leadforge/outreach-orchestrator/pkg/llm"
	"github.com/leadforge/outreach-orchestrator/pkg/queue"
	"github.com/leadforge/outreach-orchestrator/pkg/workerpool"
)

// fakeClassifier routes leads by email prefix: "no-" is not relevant,
// "err-" fails, everything else is relevant.
type fakeClassifier struct {
	mu    sync.Mutex
	calls []string
}

func (c *fakeClassifier) Classify(ctx context.Context, lead leads.Lead) (*classify.Result, llm.Usage, error) {
	c.mu.Lock()
	c.calls = append(c.calls, lead.Email)
	c.mu.Unlock()

	usage := llm.Usage{InputTokens: 50, OutputTokens: 10}
	switch {
	case strings.HasPrefix(lead.Email, "err-"):
		return nil, usage, errors.New("classification provider unavailable")
	case strings.HasPrefix(lead.Email, "no-"):
		return &classify.Result{Relevant: false, Reason: "outside ICP"}, usage, nil
	default:
		return &classify.Result{Relevant: true, Reason: "ICP match"}, usage, nil
	}
}

// fakeGenerator routes relevant leads by email prefix: "rej-" is rejected
// at stage 2, everything else gets a letter.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []string
}

func (g *fakeGenerator) Generate(ctx context.Context, lead leads.Lead, workerID string) (*generate.Output, error) {
	g.mu.Lock()
	g.calls = append(g.calls, lead.Email)
	g.mu.Unlock()

	usage := llm.Usage{InputTokens: 500, OutputTokens: 200}
	if strings.HasPrefix(lead.Email, "rej-") {
		return &generate.Output{
			Result: generate.Rejected("recently changed jobs", "weak fit", ""),
			Usage:  usage,
		}, nil
	}
	return &generate.Output{
		Result: generate.Accepted(&generate.Letter{
			Subject:                "Quick question",
			Body:                   "Hello",
			SendTime:               "Tue 10:00",
			PersonalizationSignals: []string{"posted about hiring 3 SREs"},
		}, "strong fit", ""),
		Usage: usage,
	}, nil
}

var _ = Describe("Pool", func() {
	var (
		logger     *logrus.Logger
		q          *queue.TaskQueue
		classifier *fakeClassifier
		generator  *fakeGenerator
		dir        string
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)

		dir = GinkgoT().TempDir()
		gdb, err := db.SetupDatabase(logger, filepath.Join(dir, "progress.db"))
		Expect(err).NotTo(HaveOccurred())
		q = queue.New(gdb, logger)
		Expect(q.Initialize(true)).To(Succeed())

		classifier = &fakeClassifier{}
		generator = &fakeGenerator{}
	})

	load := func(emails ...string) {
		body := "Email,First Name,Last Name,companyName,jobTitle,linkedIn\n"
		for _, e := range emails {
			body += fmt.Sprintf("%s,First,Last,Co,Role,\n", e)
		}
		path := filepath.Join(dir, "leads.csv")
		Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
		_, err := q.LoadFromCSV(path, 0)
		Expect(err).NotTo(HaveOccurred())
	}

	run := func(workers int) *workerpool.Pool {
		pool, err := workerpool.New(workerpool.Config{
			Queue:      q,
			Classifier: classifier,
			Generator:  generator,
			NumWorkers: workers,
			Logger:     logger,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(pool.Run(context.Background())).To(Succeed())
		return pool
	}

	It("drains the queue and generates letters for relevant leads", func() {
		load("ada@acme.io", "bob@beta.dev")

		pool := run(2)

		stats := pool.Snapshot()
		Expect(stats.Processed).To(Equal(2))
		Expect(stats.Stage2Letters).To(Equal(2))
		Expect(generator.calls).To(HaveLen(2))

		queueStats, err := q.GetStats()
		Expect(err).NotTo(HaveOccurred())
		Expect(queueStats.Completed).To(Equal(int64(2)))
		Expect(queueStats.Pending).To(BeZero())
	})

	It("skips stage 2 for leads rejected at stage 1", func() {
		load("no-carl@gamma.co")

		pool := run(1)

		stats := pool.Snapshot()
		Expect(stats.Stage1NotRelevant).To(Equal(1))
		Expect(generator.calls).To(BeEmpty())

		tasks, err := q.GetAllTasks()
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(1))
		Expect(tasks[0].Status).To(Equal(models.StatusCompleted))
		Expect(tasks[0].Stage1.Relevant).To(BeFalse())
		Expect(tasks[0].Stage2).To(BeNil())
	})

	It("records stage 2 rejections with their reason", func() {
		load("rej-dora@delta.io")

		pool := run(1)

		Expect(pool.Snapshot().Stage2Rejected).To(Equal(1))

		tasks, err := q.GetAllTasks()
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks[0].Stage2.Outcome).To(Equal(generate.OutcomeRejected))
		Expect(tasks[0].Stage2.Reason).To(Equal("recently changed jobs"))
	})

	It("isolates one lead's failure from the rest of the batch", func() {
		load("err-eve@eps.io", "ada@acme.io", "bob@beta.dev")

		pool := run(2)

		stats := pool.Snapshot()
		Expect(stats.Processed).To(Equal(3))
		Expect(stats.Errors).To(Equal(1))
		Expect(stats.Stage2Letters).To(Equal(2))

		queueStats, err := q.GetStats()
		Expect(err).NotTo(HaveOccurred())
		Expect(queueStats.Failed).To(Equal(int64(1)))
		Expect(queueStats.Completed).To(Equal(int64(2)))
	})

	It("accumulates usage per stage", func() {
		load("ada@acme.io", "no-bob@beta.dev")

		pool := run(1)

		stats := pool.Snapshot()
		// Both leads hit stage 1; only one reached stage 2.
		Expect(stats.Stage1Usage.InputTokens).To(Equal(100))
		Expect(stats.Stage2Usage.InputTokens).To(Equal(500))
		Expect(stats.TotalUsage().InputTokens).To(Equal(600))
	})

	It("stops claiming new work once a graceful stop is requested", func() {
		load("ada@acme.io", "bob@beta.dev", "cay@gamma.co")

		pool, err := workerpool.New(workerpool.Config{
			Queue:      q,
			Classifier: classifier,
			Generator:  generator,
			NumWorkers: 1,
			Stopped:    func() bool { return true },
			Logger:     logger,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(pool.Run(context.Background())).To(Succeed())

		Expect(pool.Snapshot().Processed).To(BeZero())

		queueStats, err := q.GetStats()
		Expect(err).NotTo(HaveOccurred())
		Expect(queueStats.Pending).To(Equal(int64(3)))
	})
})
