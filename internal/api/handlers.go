package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"feedsync/internal/model"
	"feedsync/internal/protocol"
	"feedsync/internal/storage"
)

const (
	defaultItemLimit = 50
	maxItemLimit     = 500
)

// Store is the subset of storage.Storage the handlers read from.
type Store interface {
	GetFeed(ctx context.Context, id string) (*model.FeedSource, error)
	ListFeeds(ctx context.Context) ([]model.FeedSource, error)
	ListFeedItems(ctx context.Context, feedID string, after *storage.Cursor, limit int) ([]model.FeedItem, error)
	ListRecentItems(ctx context.Context, limit int) ([]model.FeedItem, error)
	CountItems(ctx context.Context, feedID string) (int, error)
	SchemaVersion(ctx context.Context) (int64, error)
}

// Commander accepts actor commands.
type Commander interface {
	Send(cmd protocol.Command) error
}

// Handler serves the control API.
type Handler struct {
	store           Store
	page            Commander
	background      Commander
	defaultInterval time.Duration
	log             *slog.Logger
}

// NewHandler creates a Handler. Single-feed commands go to page and bulk
// updates go to background.
func NewHandler(store Store, page, background Commander, defaultInterval time.Duration, log *slog.Logger) *Handler {
	return &Handler{
		store:           store,
		page:            page,
		background:      background,
		defaultInterval: defaultInterval,
		log:             log,
	}
}

// Health reports database reachability and schema version.
func (h *Handler) Health(c *gin.Context) {
	version, err := h.store.SchemaVersion(c.Request.Context())
	if err != nil {
		h.log.Error("Database error", "operation", "schema_version", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"schema_version": version,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// ListFeeds returns every configured feed.
func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.store.ListFeeds(c.Request.Context())
	if err != nil {
		h.log.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list feeds"})
		return
	}
	out := make([]feedResponse, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, toFeedResponse(f, h.defaultInterval))
	}
	c.JSON(http.StatusOK, gin.H{"feeds": out})
}

// GetFeed returns one feed with its item count.
func (h *Handler) GetFeed(c *gin.Context) {
	feed, ok := h.loadFeed(c)
	if !ok {
		return
	}
	resp := toFeedResponse(*feed, h.defaultInterval)
	if n, err := h.store.CountItems(c.Request.Context(), feed.ID); err == nil {
		resp.ItemCount = &n
	}
	c.JSON(http.StatusOK, resp)
}

// ListItems pages through a feed's items, newest first. The before and
// before_id query parameters are the cursor returned as next_before and
// next_before_id.
func (h *Handler) ListItems(c *gin.Context) {
	feed, ok := h.loadFeed(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	var after *storage.Cursor
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid before", Message: "before must be an RFC 3339 timestamp"})
			return
		}
		after = &storage.Cursor{PubDate: t, ID: c.Query("before_id")}
	} else if c.Query("before_id") != "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid before_id", Message: "before_id requires before"})
		return
	}

	items, err := h.store.ListFeedItems(c.Request.Context(), feed.ID, after, limit)
	if err != nil {
		h.log.Error("Database error", "operation", "list_items", "feed_id", feed.ID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list items"})
		return
	}

	resp := itemsResponse{Items: toItemResponses(items)}
	if len(items) == limit {
		last := items[len(items)-1]
		resp.NextBefore = &last.PubDate
		resp.NextBeforeID = last.ID
	}
	c.JSON(http.StatusOK, resp)
}

// RecentItems returns the newest items across all feeds.
func (h *Handler) RecentItems(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	items, err := h.store.ListRecentItems(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Database error", "operation", "list_recent_items", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list items"})
		return
	}
	c.JSON(http.StatusOK, itemsResponse{Items: toItemResponses(items)})
}

// UpdateFeed asks the page actor to update a feed immediately.
func (h *Handler) UpdateFeed(c *gin.Context) {
	feed, ok := h.loadFeed(c)
	if !ok {
		return
	}
	h.dispatch(c, h.page, protocol.UpdateNow{FeedID: feed.ID}, "update_now", feed.ID)
}

// UpdateAll asks the background actor for a bulk update.
func (h *Handler) UpdateAll(c *gin.Context) {
	h.dispatch(c, h.background, protocol.UpdateAll{}, "update_all", "")
}

// ScheduleFeed (re)arms the recurring timer of a feed.
func (h *Handler) ScheduleFeed(c *gin.Context) {
	feed, ok := h.loadFeed(c)
	if !ok {
		return
	}

	var req scheduleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body", Message: err.Error()})
			return
		}
	}
	var interval time.Duration
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid interval", Message: "interval must be a positive duration such as 15m"})
			return
		}
		interval = d
	}
	h.dispatch(c, h.page, protocol.ScheduleFeed{FeedID: feed.ID, Interval: interval}, "schedule", feed.ID)
}

// CancelSchedule stops the recurring timer of a feed.
func (h *Handler) CancelSchedule(c *gin.Context) {
	h.dispatch(c, h.page, protocol.CancelSchedule{FeedID: c.Param("id")}, "cancel_schedule", c.Param("id"))
}

// RefreshSchedules reloads feeds from the store and re-arms all timers.
func (h *Handler) RefreshSchedules(c *gin.Context) {
	feeds, err := h.store.ListFeeds(c.Request.Context())
	if err != nil {
		h.log.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list feeds"})
		return
	}
	if err := h.page.Send(protocol.SetFeeds{Feeds: feeds}); err != nil {
		h.commandFailed(c, "set_feeds", err)
		return
	}
	h.dispatch(c, h.page, protocol.RefreshSchedules{}, "refresh_schedules", "")
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultItemLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit", Message: "limit must be a positive integer"})
		return 0, false
	}
	return min(n, maxItemLimit), true
}

func (h *Handler) loadFeed(c *gin.Context) (*model.FeedSource, bool) {
	id := c.Param("id")
	feed, err := h.store.GetFeed(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "feed not found"})
		return nil, false
	}
	if err != nil {
		h.log.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load feed"})
		return nil, false
	}
	return feed, true
}

func (h *Handler) dispatch(c *gin.Context, to Commander, cmd protocol.Command, name, feedID string) {
	if err := to.Send(cmd); err != nil {
		h.commandFailed(c, name, err)
		return
	}
	c.JSON(http.StatusAccepted, acceptedResponse{Status: "accepted", Command: name, FeedID: feedID})
}

func (h *Handler) commandFailed(c *gin.Context, name string, err error) {
	h.log.Error("dispatch command", "command", name, "error", err)
	c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "command rejected", Message: err.Error()})
}
