package notify

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedsync/internal/protocol"
)

const helpText = `Commands:
/list - show configured feeds
/update <id> - update a feed now
/updateall - update every active feed
/refresh - re-arm feed schedules`

func (n *Notifier) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	n.log.Debug("command", "cmd", cmd, "args", args)

	switch cmd {
	case "start", "help":
		n.send(helpText)
	case "list":
		n.handleList(ctx)
	case "update":
		if args == "" {
			n.send("Usage: /update <id>")
			return
		}
		n.dispatch(protocol.UpdateNow{FeedID: args}, "Update of "+args+" started.")
	case "updateall":
		n.dispatch(protocol.UpdateAll{}, "Update of all feeds started.")
	case "refresh":
		n.handleRefresh(ctx)
	default:
		n.send("Unknown command. Use /help for a list of commands.")
	}
}

func (n *Notifier) handleList(ctx context.Context) {
	feeds, err := n.store.ListFeeds(ctx)
	if err != nil {
		n.log.Error("list feeds", "error", err)
		n.send("Failed to list feeds.")
		return
	}
	n.send(FormatFeedList(feeds))
}

// handleRefresh reloads the feed set before re-arming, so feeds added or
// changed in the store since startup are scheduled too.
func (n *Notifier) handleRefresh(ctx context.Context) {
	if n.commander == nil {
		n.send("Commands are not available.")
		return
	}
	feeds, err := n.store.ListFeeds(ctx)
	if err != nil {
		n.log.Error("list feeds", "error", err)
		n.send("Failed to list feeds.")
		return
	}
	if err := n.commander.Send(protocol.SetFeeds{Feeds: feeds}); err != nil {
		n.log.Error("dispatch command", "error", err)
		n.send("Command failed: " + err.Error())
		return
	}
	n.dispatch(protocol.RefreshSchedules{}, "Schedules refreshed.")
}

func (n *Notifier) dispatch(cmd protocol.Command, ack string) {
	if n.commander == nil {
		n.send("Commands are not available.")
		return
	}
	if err := n.commander.Send(cmd); err != nil {
		n.log.Error("dispatch command", "error", err)
		n.send("Command failed: " + err.Error())
		return
	}
	n.send(ack)
}
