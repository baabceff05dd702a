package api

import (
	"time"

	"feedsync/internal/model"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type feedResponse struct {
	ID             string     `json:"id"`
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Tags           []string   `json:"tags"`
	IgnoredWords   []string   `json:"ignored_words"`
	UpdateInterval string     `json:"update_interval"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	IsActive       bool       `json:"is_active"`
	ItemCount      *int       `json:"item_count,omitempty"`
}

type itemResponse struct {
	ID          string    `json:"id"`
	FeedID      string    `json:"feed_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	PubDate     time.Time `json:"pub_date"`
	GUID        string    `json:"guid"`
	Categories  []string  `json:"categories"`
	OGImage     string    `json:"og_image,omitempty"`
	IsHidden    bool      `json:"is_hidden"`
}

type itemsResponse struct {
	Items        []itemResponse `json:"items"`
	NextBefore   *time.Time     `json:"next_before,omitempty"`
	NextBeforeID string         `json:"next_before_id,omitempty"`
}

type scheduleRequest struct {
	// Interval is a Go duration string such as "15m". Empty uses the
	// feed's own interval.
	Interval string `json:"interval"`
}

type acceptedResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
	FeedID  string `json:"feed_id,omitempty"`
}

func toFeedResponse(f model.FeedSource, defaultInterval time.Duration) feedResponse {
	interval := defaultInterval
	if f.UpdateInterval > 0 {
		interval = time.Duration(f.UpdateInterval) * time.Minute
	}
	return feedResponse{
		ID:             f.ID,
		URL:            f.URL,
		Title:          f.Title,
		Description:    f.Description,
		Tags:           nonNil(f.Tags),
		IgnoredWords:   nonNil(f.IgnoredWords),
		UpdateInterval: interval.String(),
		LastUpdated:    f.LastUpdated,
		IsActive:       f.IsActive,
	}
}

func toItemResponse(it model.FeedItem) itemResponse {
	return itemResponse{
		ID:          it.ID,
		FeedID:      it.FeedID,
		Title:       it.Title,
		Link:        it.Link,
		Description: it.Description,
		Author:      it.Author,
		PubDate:     it.PubDate,
		GUID:        it.GUID,
		Categories:  nonNil(it.Categories),
		OGImage:     it.OGImage,
		IsHidden:    it.IsHidden,
	}
}

func toItemResponses(items []model.FeedItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
