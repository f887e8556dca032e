// Package orchestrator is the top-level batch controller: it wires the
// queue, worker pool, and context collaborators, drives the run to
// completion, and always exports whatever reached a terminal state.
package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/leadforge/outreach-orchestrator/pkg/export"
	"github.com/leadforge/outreach-orchestrator/pkg/generate"
	"github.com/leadforge/outreach-orchestrator/pkg/queue"
	"github.com/leadforge/outreach-orchestrator/pkg/workerpool"
)

// Options control one batch run.
type Options struct {
	InputCSV  string
	OutputCSV string
	// Resume keeps existing queue state and skips the CSV load; a fresh
	// run wipes the table and reloads.
	Resume bool
	// StartPosition skips this many data rows of the input CSV on load.
	StartPosition int
	NumWorkers    int
	TaskDelay     time.Duration
	// CostModel is the model whose pricing anchors the summary cost line.
	CostModel string
}

// Classifier mirrors the pool's stage 1 dependency.
type Classifier = workerpool.Classifier

// Orchestrator owns the batch lifecycle.
type Orchestrator struct {
	queue      *queue.TaskQueue
	classifier Classifier
	generator  generate.Generator
	opts       Options
	logger     *logrus.Logger

	// stopRequested flips on the first interrupt; workers drain their
	// current lead and stop claiming.
	stopRequested atomic.Bool
}

func New(q *queue.TaskQueue, classifier Classifier, generator generate.Generator, opts Options, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		queue:      q,
		classifier: classifier,
		generator:  generator,
		opts:       opts,
		logger:     logger,
	}
}

// RequestStop asks a running batch to drain gracefully, exactly as the
// first interrupt signal does: workers finish their current lead and
// claim no more. Results still export.
func (o *Orchestrator) RequestStop() {
	o.stopRequested.Store(true)
}

// Run executes the full batch: initialize, load, process, export. The
// export runs even when processing was interrupted so partial progress is
// never lost. The first SIGINT/SIGTERM stops new claims; the second
// cancels in-flight work.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	restoreSignals := o.setupSignalHandlers(cancel)
	defer restoreSignals()

	log := o.logger.WithField("run_id", uuid.NewString()[:8])
	log.WithFields(logrus.Fields{
		"resume":  o.opts.Resume,
		"workers": o.opts.NumWorkers,
	}).Info("Starting batch run")

	if err := o.queue.Initialize(!o.opts.Resume); err != nil {
		return err
	}

	if !o.opts.Resume {
		log.WithField("input", o.opts.InputCSV).Info("Loading leads")
		added, err := o.queue.LoadFromCSV(o.opts.InputCSV, o.opts.StartPosition)
		if err != nil {
			return err
		}
		log.WithField("added", added).Info("Loaded new tasks")
	}

	stats, err := o.queue.GetStats()
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"total":      stats.Total,
		"pending":    stats.Pending,
		"processing": stats.Processing,
		"completed":  stats.Completed,
		"failed":     stats.Failed,
	}).Info("Task queue status")

	if o.opts.Resume && stats.Processing > 0 {
		reset, err := o.queue.ResetProcessingTasks()
		if err != nil {
			return err
		}
		log.WithField("reset", reset).Info("Reset stuck tasks")
	}

	pool, err := workerpool.New(workerpool.Config{
		Queue:      o.queue,
		Classifier: o.classifier,
		Generator:  o.generator,
		NumWorkers: o.opts.NumWorkers,
		TaskDelay:  o.opts.TaskDelay,
		Stopped:    o.stopRequested.Load,
		Logger:     o.logger,
	})
	if err != nil {
		return err
	}

	log.WithField("workers", o.opts.NumWorkers).Info("Processing queue")
	runErr := pool.Run(ctx)
	if runErr != nil && ctx.Err() != nil {
		log.Warn("Processing cancelled, exporting partial progress")
		runErr = nil
	}

	if err := o.exportResults(pool.Snapshot()); err != nil {
		return err
	}
	return runErr
}

func (o *Orchestrator) exportResults(stats workerpool.Stats) error {
	o.logger.WithField("output", o.opts.OutputCSV).Info("Exporting results")

	tasks, err := o.queue.GetAllTasks()
	if err != nil {
		return err
	}
	if err := export.WriteResults(tasks, o.opts.OutputCSV, o.logger); err != nil {
		return err
	}

	export.PrintSummary(stats, o.opts.CostModel, o.opts.OutputCSV)
	return nil
}

// setupSignalHandlers installs the two-phase interrupt: the first signal
// requests a graceful drain, the second cancels the run context.
func (o *Orchestrator) setupSignalHandlers(cancel context.CancelFunc) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigs:
				if !o.stopRequested.Swap(true) {
					o.logger.Warn("Shutdown requested, finishing current tasks")
					continue
				}
				o.logger.Warn("Force shutdown")
				cancel()
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
