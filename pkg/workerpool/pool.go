// Package workerpool runs N concurrent worker loops over the task queue:
// claim a lead, classify it, generate a letter when relevant, write the
// terminal state back. One lead's failure never halts the pool.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/leadforge/outreach-orchestrator/pkg/agent"
	"github.com/leadforge/outreach-orchestrator/pkg/classify"
	"github.com/leadforge/outreach-orchestrator/pkg/db/models"
	"github.com/leadforge/outreach-orchestrator/pkg/generate"
	"github.com/leadforge/outreach-orchestrator/pkg/leads"
	"github.com/leadforge/outreach-orchestrator/pkg/llm"
	"github.com/leadforge/outreach-orchestrator/pkg/queue"
)

// Classifier is the stage 1 dependency.
type Classifier interface {
	Classify(ctx context.Context, lead leads.Lead) (*classify.Result, llm.Usage, error)
}

// Stats is the pool's process-lifetime funnel. Guarded by the pool mutex;
// Snapshot returns a copy.
type Stats struct {
	Processed         int
	Stage1Relevant    int
	Stage1NotRelevant int
	Stage2Letters     int
	Stage2Rejected    int
	Errors            int

	Stage1Usage llm.Usage
	Stage2Usage llm.Usage
	Compression agent.CompressionStats
}

// TotalUsage sums token usage across both stages.
func (s Stats) TotalUsage() llm.Usage {
	total := s.Stage1Usage
	total.Add(s.Stage2Usage)
	return total
}

// Pool drains the queue with a bounded number of concurrent workers.
type Pool struct {
	queue      *queue.TaskQueue
	classifier Classifier
	generator  generate.Generator
	numWorkers int
	taskDelay  time.Duration
	logger     *logrus.Logger

	// sem is the concurrency enforcement point: a worker holds a permit
	// for the whole of one lead's pipeline.
	sem *semaphore.Weighted

	// stopped flips when the orchestrator requests a graceful stop;
	// workers finish their current lead and claim no more.
	stopped func() bool

	mu    sync.Mutex
	stats Stats
}

// Config wires a Pool.
type Config struct {
	Queue      *queue.TaskQueue
	Classifier Classifier
	Generator  generate.Generator
	NumWorkers int
	TaskDelay  time.Duration
	// Stopped reports whether a graceful shutdown was requested. Nil
	// means never.
	Stopped func() bool
	Logger  *logrus.Logger
}

func New(config Config) (*Pool, error) {
	if config.Queue == nil {
		return nil, fmt.Errorf("workerpool: queue is required")
	}
	if config.Classifier == nil {
		return nil, fmt.Errorf("workerpool: classifier is required")
	}
	if config.Generator == nil {
		return nil, fmt.Errorf("workerpool: generator is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("workerpool: logger is required")
	}
	if config.NumWorkers < 1 {
		return nil, fmt.Errorf("workerpool: number of workers must be positive, got %d", config.NumWorkers)
	}
	stopped := config.Stopped
	if stopped == nil {
		stopped = func() bool { return false }
	}
	return &Pool{
		queue:      config.Queue,
		classifier: config.Classifier,
		generator:  config.Generator,
		numWorkers: config.NumWorkers,
		taskDelay:  config.TaskDelay,
		logger:     config.Logger,
		sem:        semaphore.NewWeighted(int64(config.NumWorkers)),
		stopped:    stopped,
	}, nil
}

// Run starts the worker loops and blocks until the queue is drained, a
// stop is requested, or the context is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 1; i <= p.numWorkers; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			return p.workerLoop(ctx, workerID)
		})
	}
	return g.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, workerID string) error {
	log := p.logger.WithField("worker_id", workerID)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.stopped() {
			log.Debug("Stop requested, worker exiting")
			return nil
		}

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}

		task, err := p.queue.GetNextTask(ctx, workerID)
		if err != nil {
			p.sem.Release(1)
			return fmt.Errorf("%s: %w", workerID, err)
		}
		if task == nil {
			p.sem.Release(1)
			log.Debug("Queue drained, worker exiting")
			return nil
		}

		p.processTask(ctx, task, workerID)
		p.sem.Release(1)

		if p.taskDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.taskDelay):
			}
		}
	}
}

// processTask runs one lead through both stages. Every failure path ends
// in a terminal task state; errors never escape to the worker loop.
func (p *Pool) processTask(ctx context.Context, task *models.Task, workerID string) {
	log := p.logger.WithFields(logrus.Fields{
		"worker_id": workerID,
		"task_id":   task.ID,
		"email":     task.Email,
	})
	log.Info("Processing lead")

	lead, err := task.Lead()
	if err != nil {
		p.failTask(ctx, task, fmt.Sprintf("invalid lead data: %s", err), log)
		return
	}

	stage1, usage1, err := p.classifier.Classify(ctx, lead)
	p.mu.Lock()
	p.stats.Stage1Usage.Add(usage1)
	p.mu.Unlock()
	if err != nil {
		p.failTask(ctx, task, err.Error(), log)
		return
	}

	if !stage1.Relevant {
		log.WithField("reason", stage1.Reason).Info("Not relevant (stage 1)")
		p.completeTask(ctx, task, stage1, nil, log)
		p.mu.Lock()
		p.stats.Stage1NotRelevant++
		p.stats.Processed++
		p.mu.Unlock()
		return
	}

	log.WithField("reason", stage1.Reason).Info("Relevant (stage 1), generating letter")
	p.mu.Lock()
	p.stats.Stage1Relevant++
	p.mu.Unlock()

	output, err := p.generator.Generate(ctx, lead, workerID)
	if err != nil {
		p.failTask(ctx, task, err.Error(), log)
		return
	}

	p.mu.Lock()
	p.stats.Stage2Usage.Add(output.Usage)
	p.stats.Compression.Add(output.Compression)
	switch output.Result.Outcome {
	case generate.OutcomeAccepted:
		p.stats.Stage2Letters++
	case generate.OutcomeRejected:
		p.stats.Stage2Rejected++
	case generate.OutcomeErrored:
		p.stats.Errors++
	}
	p.stats.Processed++
	p.mu.Unlock()

	switch output.Result.Outcome {
	case generate.OutcomeAccepted:
		log.Info("Letter generated")
	case generate.OutcomeRejected:
		log.WithField("reason", output.Result.Reason).Info("Rejected (stage 2)")
	case generate.OutcomeErrored:
		log.WithField("error", output.Result.Message).Warn("Stage 2 produced no usable result")
	}

	p.completeTask(ctx, task, stage1, output.Result, log)
}

func (p *Pool) completeTask(ctx context.Context, task *models.Task, stage1 *classify.Result, stage2 *generate.Result, log *logrus.Entry) {
	if err := p.queue.UpdateTask(ctx, task.ID, models.StatusCompleted, stage1, stage2, ""); err != nil {
		log.WithError(err).Error("Failed to persist task result")
	}
}

func (p *Pool) failTask(ctx context.Context, task *models.Task, errMsg string, log *logrus.Entry) {
	log.WithField("error", errMsg).Warn("Lead failed")
	p.mu.Lock()
	p.stats.Errors++
	p.stats.Processed++
	p.mu.Unlock()

	if err := p.queue.UpdateTask(ctx, task.ID, models.StatusFailed, nil, nil, errMsg); err != nil {
		log.WithError(err).Error("Failed to persist task failure")
	}
}

// Snapshot returns a copy of the pool statistics.
func (p *Pool) Snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
