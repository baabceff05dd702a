// Package notify forwards update events to a Telegram chat and accepts a
// small set of operator commands from that chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedsync/internal/model"
	"feedsync/internal/protocol"
)

const queueSize = 128

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Store is the read access the notifier needs to name feeds.
type Store interface {
	GetFeed(ctx context.Context, id string) (*model.FeedSource, error)
	ListFeeds(ctx context.Context) ([]model.FeedSource, error)
}

// Commander accepts actor commands.
type Commander interface {
	Send(cmd protocol.Command) error
}

// Notifier is a protocol.Sink that delivers completions with new items and
// final failures to one chat.
type Notifier struct {
	api       telegramAPI
	chatID    int64
	store     Store
	commander Commander
	queue     chan protocol.Event
	log       *slog.Logger
}

// New creates a Notifier with the given Telegram token.
func New(token string, chatID int64, store Store, commander Commander, log *slog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newNotifier(api, chatID, store, commander, log), nil
}

func newNotifier(api telegramAPI, chatID int64, store Store, commander Commander, log *slog.Logger) *Notifier {
	return &Notifier{
		api:       api,
		chatID:    chatID,
		store:     store,
		commander: commander,
		queue:     make(chan protocol.Event, queueSize),
		log:       log,
	}
}

// Emit queues the events worth a message. It never blocks; when the queue
// is full the event is dropped.
func (n *Notifier) Emit(e protocol.Event) {
	switch ev := e.(type) {
	case protocol.Completed:
		if ev.NewItems == 0 {
			return
		}
	case protocol.Failed:
	default:
		return
	}
	select {
	case n.queue <- e:
	default:
		n.log.Warn("notification queue full, dropping event", "event", fmt.Sprintf("%T", e))
	}
}

// Run delivers queued events and handles chat commands until ctx is
// cancelled.
func (n *Notifier) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := n.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			n.api.StopReceivingUpdates()
			return
		case e := <-n.queue:
			n.deliver(ctx, e)
		case update := <-updates:
			msg := update.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}
			if msg.Chat == nil {
				continue
			}
			if msg.Chat.ID != n.chatID {
				n.log.Warn("command from unknown chat", "chat_id", msg.Chat.ID)
				continue
			}
			n.handleCommand(ctx, msg)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, e protocol.Event) {
	switch ev := e.(type) {
	case protocol.Completed:
		n.send(FormatCompleted(n.feedTitle(ctx, ev.FeedID), ev))
	case protocol.Failed:
		n.send(FormatFailed(n.feedTitle(ctx, ev.FeedID), ev))
	}
}

func (n *Notifier) feedTitle(ctx context.Context, feedID string) string {
	feed, err := n.store.GetFeed(ctx, feedID)
	if err != nil || feed.Title == "" {
		return feedID
	}
	return feed.Title
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		n.log.Error("send message", "chat_id", n.chatID, "error", err)
	}
}
