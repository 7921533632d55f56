package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/rss-nest/app/sites"
)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler keeps selected feeds warm. Each target is refreshed once at start
// and then on its cron schedule by a fixed pool of workers.
type Scheduler struct {
	refresher   FeedRefresher
	targets     []sites.WarmTarget
	workerCount int
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(refresher FeedRefresher, targets []sites.WarmTarget, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount <= 0 {
		workerCount = 1
	}

	return &Scheduler{
		refresher:   refresher,
		targets:     targets,
		workerCount: workerCount,
		cron:        cron.New(),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.scheduleTargets()
	s.cron.Start()

	s.enqueueStartupTasks()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) scheduleTargets() {
	for _, target := range s.targets {
		if target.Schedule == "" {
			continue
		}

		_, err := s.cron.AddFunc(target.Schedule, func() {
			s.enqueueWarm(target)
		})
		if err != nil {
			slog.Error("Invalid warm schedule, target skipped", "site", target.SiteID, "schedule", target.Schedule, "error", err)
			continue
		}

		slog.Debug("Warm target scheduled", "site", target.SiteID, "params", target.Params.Canonical(), "schedule", target.Schedule)
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	if len(s.targets) == 0 {
		slog.Debug("No warm targets configured")
		return
	}

	slog.Debug("Warming feeds", "count", len(s.targets))

	for _, target := range s.targets {
		s.enqueueWarm(target)
	}
}

func (s *Scheduler) enqueueWarm(target sites.WarmTarget) {
	task := NewWarmFeedTask(target.SiteID, target.Params, s.refresher)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue WarmFeedTask", "site", target.SiteID, "params", target.Params.Canonical(), "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "site", task.GetSiteID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
