package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftsync/driftsync/internal/client/models"
)

func channelLine(cardID string, item models.ChannelItem) string {
	owner := "hosted"
	if cardID != "" {
		owner = cardID
	}
	subject := item.Detail.Subject()
	if subject == "" {
		subject = "(no subject)"
	}
	unread := ""
	if item.Unread() {
		unread = " *"
	}
	return fmt.Sprintf("%-12s %s  %s%s", owner, item.ChannelID, subject, unread)
}

func (a *App) listChannels() {
	channels := a.session.Channels()
	cards := a.session.Cards()
	if channels == nil || cards == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}
	for _, item := range channels.Snapshot() {
		if item.Blocked {
			continue
		}
		fmt.Fprintln(a.out, channelLine("", item))
	}
	for _, view := range cards.Snapshot() {
		if view.Card.Blocked {
			continue
		}
		for _, item := range view.Channels {
			if item.Blocked {
				continue
			}
			fmt.Fprintln(a.out, channelLine(view.Card.CardID, item))
		}
	}
}

func (a *App) channel(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "Usage: channel add|subject|member|unmember|remove|block|unblock ...")
		return
	}
	var err error
	switch args[0] {
	case "add":
		err = a.channelAdd(ctx)
	case "subject":
		if len(args) < 3 {
			fmt.Fprintln(a.out, "Usage: channel subject <channelId> <subject>")
			return
		}
		err = a.session.SetChannelSubject(ctx, args[1], strings.Join(args[2:], " "))
	case "member":
		if len(args) < 3 {
			fmt.Fprintln(a.out, "Usage: channel member <channelId> <cardId>")
			return
		}
		err = a.session.SetChannelMember(ctx, args[1], args[2], true)
	case "unmember":
		if len(args) < 3 {
			fmt.Fprintln(a.out, "Usage: channel unmember <channelId> <cardId>")
			return
		}
		err = a.session.SetChannelMember(ctx, args[1], args[2], false)
	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: channel remove <channelId> [cardId]")
			return
		}
		cardID := ""
		if len(args) > 2 {
			cardID = args[2]
		}
		err = a.session.RemoveChannel(ctx, cardID, args[1])
	case "block", "unblock":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: channel block|unblock <channelId> [cardId]")
			return
		}
		cardID := ""
		if len(args) > 2 {
			cardID = args[2]
		}
		err = a.session.SetChannelBlocked(ctx, cardID, args[1], args[0] == "block")
	default:
		fmt.Fprintln(a.out, "Unknown subcommand:", args[0])
		return
	}
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
	}
}

func (a *App) channelAdd(ctx context.Context) error {
	subject, err := GetSimpleText(a.reader, "Enter subject", a.out)
	if err != nil {
		return err
	}
	members, err := GetSimpleText(a.reader, "Enter member card ids (space separated, empty for none)", a.out)
	if err != nil {
		return err
	}
	channelID, err := a.session.AddChannel(ctx, subject, strings.Fields(members))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added channel %s\n", channelID)
	return nil
}
