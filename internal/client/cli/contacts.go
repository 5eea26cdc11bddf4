package cli

import (
	"context"
	"fmt"

	"github.com/driftsync/driftsync/internal/client/models"
)

func (a *App) listContacts() {
	cards := a.session.Cards()
	if cards == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}
	for _, view := range cards.Snapshot() {
		card := view.Card
		if card.Blocked {
			continue
		}
		name := "?"
		status := models.CardPending
		if card.Profile != nil {
			name = card.Profile.Handle
			if card.Profile.Name != "" {
				name = card.Profile.Name
			}
		}
		if card.Detail != nil {
			status = card.Detail.Status
		}
		marker := ""
		if card.Offsync {
			marker = " [offsync]"
		}
		fmt.Fprintf(a.out, "%s  %-20s %s%s\n", card.CardID, name, status, marker)
	}
}

func (a *App) contact(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "Usage: contact add|connect|disconnect|remove|resync|block|unblock ...")
		return
	}
	var err error
	switch args[0] {
	case "add":
		err = a.contactAdd(ctx)
	case "connect":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: contact connect <cardId>")
			return
		}
		err = a.session.Connect(ctx, args[1])
	case "disconnect":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: contact disconnect <cardId>")
			return
		}
		err = a.session.Disconnect(ctx, args[1])
	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: contact remove <cardId>")
			return
		}
		err = a.session.RemoveCard(ctx, args[1])
	case "resync":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: contact resync <cardId>")
			return
		}
		err = a.session.Resync(args[1])
	case "block":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: contact block <cardId>")
			return
		}
		err = a.session.SetCardBlocked(ctx, args[1], true)
	case "unblock":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: contact unblock <cardId>")
			return
		}
		err = a.session.SetCardBlocked(ctx, args[1], false)
	default:
		fmt.Fprintln(a.out, "Unknown subcommand:", args[0])
		return
	}
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
	}
}

func (a *App) contactAdd(ctx context.Context) error {
	guid, err := GetSimpleText(a.reader, "Enter contact guid", a.out)
	if err != nil {
		return err
	}
	node, err := GetSimpleText(a.reader, "Enter contact node", a.out)
	if err != nil {
		return err
	}
	handle, err := GetSimpleText(a.reader, "Enter contact handle", a.out)
	if err != nil {
		return err
	}
	cardID, err := a.session.AddCard(ctx, &models.CardProfile{GUID: guid, Node: node, Handle: handle})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added card %s\n", cardID)
	return nil
}
