package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-nest/app/feed"
)

type WarmFeedTask struct {
	Task
	Params    feed.Params
	refresher FeedRefresher
}

func NewWarmFeedTask(siteID string, params feed.Params, refresher FeedRefresher) *WarmFeedTask {
	return &WarmFeedTask{
		Task:      NewTask(TaskTypeWarmFeed, siteID),
		Params:    params,
		refresher: refresher,
	}
}

func (t *WarmFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.refresher.Refresh(ctx, t.SiteID, t.Params); err != nil {
		switch feed.KindOf(err) {
		case feed.KindUnsupportedSite, feed.KindInvalidParameter:
			// Retrying cannot fix a bad target.
			t.DisableRetry()
		}
		return fmt.Errorf("failed to warm feed: %w", err)
	}

	slog.Debug("Feed warmed", "site", t.SiteID, "params", t.Params.Canonical(), "duration", t.GetDuration())

	return nil
}
