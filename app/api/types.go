package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/registry"
	"github.com/lysyi3m/rss-nest/app/service"
)

type FeedServiceInterface interface {
	Generate(ctx context.Context, siteID string, params feed.Params) (string, error)
	ClearCache(ctx context.Context, siteID string, params feed.Params) (int, error)
	Sites() []string
	Providers() []registry.Info
	Health(ctx context.Context) service.Health
}

var _ FeedServiceInterface = (*service.FeedService)(nil)

type Handler struct {
	service FeedServiceInterface
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}
