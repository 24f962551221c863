package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"videodl/internal/core/domain"
)

// Scheduler fans a job list out over a bounded worker pool. Results
// come back in input order regardless of completion order, and one
// failing job never aborts the batch.
type Scheduler struct {
	orch        *Orchestrator
	concurrency int
	// maxDownloads caps the total number of successful downloads; once
	// reached, remaining queued jobs are marked skipped. Zero means no
	// cap.
	maxDownloads int
	logger       hclog.Logger
}

// NewScheduler creates a Scheduler. Concurrency below one is raised to
// one.
func NewScheduler(orch *Orchestrator, concurrency, maxDownloads int, logger hclog.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		orch:         orch,
		concurrency:  concurrency,
		maxDownloads: maxDownloads,
		logger:       logger.Named("batch"),
	}
}

type queued struct {
	idx int
	job domain.JobConfig
}

// Run executes the batch. Each worker runs one job's full state
// machine to completion before taking the next. Cancelling ctx lets
// in-flight jobs abort (their child processes are terminated through
// the context) and marks every not-yet-started job skipped; finished
// results are preserved.
func (s *Scheduler) Run(ctx context.Context, jobs []domain.JobConfig) domain.BatchResult {
	results := make([]domain.DownloadResult, len(jobs))

	queue := make(chan queued)
	go func() {
		defer close(queue)
		for i, job := range jobs {
			// IDs are assigned up front so even jobs that never start
			// report a usable JobID in their skipped result.
			if job.ID == "" {
				job.ID = uuid.NewString()
			}
			queue <- queued{idx: i, job: job}
		}
	}()

	var wg sync.WaitGroup
	var succeeded atomic.Int64
	for w := 0; w < s.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				if ctx.Err() != nil || s.capReached(&succeeded) {
					results[item.idx] = skippedResult(item.job)
					continue
				}
				result := s.orch.RunJob(ctx, item.job)
				if result.Success {
					succeeded.Add(1)
				}
				// Index-addressed slot per job; no locking needed.
				results[item.idx] = result
			}
		}()
	}
	wg.Wait()

	batch := domain.BatchResult{Results: results}
	batch.Tally()
	s.logger.Info("batch finished",
		"jobs", len(jobs),
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"skipped", batch.Skipped)
	return batch
}

func (s *Scheduler) capReached(succeeded *atomic.Int64) bool {
	return s.maxDownloads > 0 && succeeded.Load() >= int64(s.maxDownloads)
}

func skippedResult(job domain.JobConfig) domain.DownloadResult {
	return domain.DownloadResult{
		JobID: job.ID,
		URL:   job.URL,
		State: domain.StateSkipped,
		Err:   domain.ErrSkipped,
	}
}
