// Package dedup strips already-known items from an incoming batch.
package dedup

import "feedsync/internal/model"

// NewItems returns the items whose guid is neither in known nor earlier in
// the batch. Order follows items.
func NewItems(items []model.FeedItem, known map[string]struct{}) []model.FeedItem {
	seen := make(map[string]struct{}, len(items))
	var fresh []model.FeedItem
	for _, item := range items {
		if _, ok := known[item.GUID]; ok {
			continue
		}
		if _, ok := seen[item.GUID]; ok {
			continue
		}
		seen[item.GUID] = struct{}{}
		fresh = append(fresh, item)
	}
	return fresh
}
