package tasks

import (
	"context"

	"github.com/lysyi3m/rss-nest/app/feed"
)

// TaskSchedulerInterface is the background warm-up scheduler as seen by main.
//
//	scheduler := NewScheduler(service, targets, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// FeedRefresher regenerates cached feeds.
type FeedRefresher interface {
	Refresh(ctx context.Context, siteID string, params feed.Params) error
}
