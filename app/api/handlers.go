package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-nest/app/feed"
)

const rssContentType = "application/rss+xml; charset=utf-8"

func NewHandler(service FeedServiceInterface) *Handler {
	return &Handler{service: service}
}

// GetFeed serves /feeds/:site and /feeds/:site/:category. Query parameters
// become feed params; the category path segment wins over a category query.
func (h *Handler) GetFeed(c *gin.Context) {
	siteID := c.Param("site")
	params := queryParams(c)
	if category := c.Param("category"); category != "" {
		params["category"] = category
	}

	rss, err := h.service.Generate(c.Request.Context(), siteID, params)
	if err != nil {
		h.writeError(c, err, "site", siteID, "params", params.Canonical())
		return
	}

	c.Header("X-Feed-Site", siteID)
	c.Data(http.StatusOK, rssContentType, []byte(rss))
}

func (h *Handler) ClearCache(c *gin.Context) {
	siteID := c.Param("site")
	params := queryParams(c)

	deleted, err := h.service.ClearCache(c.Request.Context(), siteID, params)
	if err != nil {
		h.writeError(c, err, "site", siteID, "params", params.Canonical())
		return
	}

	message := "Cached feed cleared"
	if len(params) == 0 {
		message = "All cached feeds of the site cleared"
	}

	slog.Info("Cache cleared", "site", siteID, "params", params.Canonical(), "deleted", deleted)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"deleted": deleted,
	})
}

func (h *Handler) ListSites(c *gin.Context) {
	sites := h.service.Sites()
	c.JSON(http.StatusOK, gin.H{
		"total": len(sites),
		"sites": sites,
	})
}

func (h *Handler) ListProviders(c *gin.Context) {
	providers := h.service.Providers()
	c.JSON(http.StatusOK, gin.H{
		"total":     len(providers),
		"providers": providers,
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Health(c.Request.Context()))
}

func queryParams(c *gin.Context) feed.Params {
	params := feed.Params{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 && values[0] != "" {
			params[key] = values[0]
		}
	}
	return params
}

func statusFor(kind feed.Kind) int {
	switch kind {
	case feed.KindUnsupportedSite:
		return http.StatusNotFound
	case feed.KindInvalidParameter:
		return http.StatusBadRequest
	case feed.KindFetchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(kind feed.Kind) string {
	switch kind {
	case feed.KindUnsupportedSite:
		return "Site is not supported, see /sites for the list of supported sites"
	case feed.KindInvalidParameter:
		return "Invalid request parameter"
	case feed.KindFetchFailure:
		return "Source site could not be reached"
	case feed.KindParseFailure:
		return "Source page could not be parsed, its layout may have changed"
	case feed.KindGenerationFailure:
		return "Feed could not be generated"
	default:
		return "Internal server error"
	}
}

func (h *Handler) writeError(c *gin.Context, err error, attrs ...any) {
	kind := feed.KindOf(err)
	status := statusFor(kind)

	attrs = append(attrs, "code", kind.Code(), "status", status, "error", err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", attrs...)
	} else {
		slog.Warn("Request rejected", attrs...)
	}

	response := ErrorResponse{
		Code:      kind.Code(),
		Message:   messageFor(kind),
		Path:      c.Request.URL.Path,
		Timestamp: time.Now(),
	}

	var feedErr *feed.Error
	if errors.As(err, &feedErr) {
		response.Detail = err.Error()
	}

	c.AbortWithStatusJSON(status, response)
}
