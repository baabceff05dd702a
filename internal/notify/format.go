package notify

import (
	"fmt"
	"strings"

	"feedsync/internal/model"
	"feedsync/internal/protocol"
)

const (
	statusActive = "active"
	statusPaused = "paused"
)

// FormatCompleted formats a successful update that found new items.
func FormatCompleted(title string, c protocol.Completed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n\n", title)
	fmt.Fprintf(&b, "%d new of %d items", c.NewItems, c.TotalItems)
	if c.HiddenItems > 0 {
		fmt.Fprintf(&b, ", %d hidden by ignored words", c.HiddenItems)
	}
	return b.String()
}

// FormatFailed formats a final update failure.
func FormatFailed(title string, f protocol.Failed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n\n", title)
	b.WriteString("Update failed")
	if f.MaxAttempts > 0 {
		fmt.Fprintf(&b, " after %d/%d retries", f.Attempt, f.MaxAttempts)
	}
	fmt.Fprintf(&b, ": %s\n\nUse /update %s to try again.", f.Message, f.FeedID)
	return b.String()
}

// FormatFeedList formats a list of feeds for display.
func FormatFeedList(feeds []model.FeedSource) string {
	if len(feeds) == 0 {
		return "No feeds configured."
	}
	var b strings.Builder
	b.WriteString("Feeds:\n")
	for _, f := range feeds {
		status := statusActive
		if !f.IsActive {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\n%s [%s]\n   id: %s\n", f.Title, status, f.ID)
		if f.LastUpdated != nil {
			fmt.Fprintf(&b, "   last update: %s\n", f.LastUpdated.UTC().Format("2006-01-02 15:04 UTC"))
		} else {
			b.WriteString("   never updated\n")
		}
	}
	return b.String()
}
