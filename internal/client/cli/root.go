package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/driftsync/driftsync/internal/common"
)

func (a *App) getStatus() string {
	s := string(a.bridgeStatus())
	if access, ok := a.session.Access(); ok {
		s = access.GUID[:minInt(8, len(access.GUID))] + " " + s
	}
	return fmt.Sprintf("(%s)", s)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "driftsync CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	// A previous session resumes silently; a fresh database just waits for
	// an explicit login.
	if err := a.session.Resume(ctx); err != nil && !errors.Is(err, common.ErrNoSession) {
		a.log.Warn(ctx, "session resume failed", "error", err)
	}

	for {
		fmt.Fprintf(a.out, "driftsync %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			a.help()
		case "login":
			a.login(ctx)
		case "logout":
			a.logout(ctx)
		case "status":
			a.showStatus()
		case "profile":
			a.profile(ctx, args)
		case "searchable":
			a.searchable(ctx, args)
		case "contacts":
			a.listContacts()
		case "contact":
			a.contact(ctx, args)
		case "channels":
			a.listChannels()
		case "channel":
			a.channel(ctx, args)
		case "open":
			a.open(ctx, args)
		case "close":
			a.session.Blur()
		case "topics":
			a.listTopics()
		case "send":
			a.send(ctx, args)
		case "sendfile":
			a.sendFile(ctx, args)
		case "read":
			a.markRead(ctx)
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}

func (a *App) help() {
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Available commands: status, profile, searchable, contacts, contact, channels, channel, open, close, topics, send, sendfile, read, logout, exit")
	} else {
		fmt.Fprintln(a.out, "Available commands: login, exit")
	}
}

func (a *App) login(ctx context.Context) {
	server := a.config.Server
	if server == "" {
		var err error
		server, err = GetSimpleText(a.reader, "Enter node (host[:port])", a.out)
		if err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
			return
		}
	}
	handle, err := GetSimpleText(a.reader, "Enter handle", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	password, err := GetPassword(a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}

	if err := a.session.Login(ctx, server, handle, password); err != nil {
		fmt.Fprintf(a.out, "Login unsuccessful: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, "Login successful")
}

func (a *App) logout(ctx context.Context) {
	if err := a.session.Logout(ctx); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(a.out, "Logged out")
}

func (a *App) showStatus() {
	fmt.Fprintf(a.out, "bridge: %s\n", a.bridgeStatus())
	if cards := a.session.Cards(); cards != nil {
		cursor := cards.Cursor()
		fmt.Fprintf(a.out, "cards: applied=%d target=%d\n", cursor.Applied(), cursor.Target())
	}
	if channels := a.session.Channels(); channels != nil {
		cursor := channels.Cursor()
		fmt.Fprintf(a.out, "channels: applied=%d target=%d\n", cursor.Applied(), cursor.Target())
	}
	status := a.session.AccountStatus()
	fmt.Fprintf(a.out, "storage: %d/%d searchable=%v\n", status.StorageUsed, status.StorageAvailable, status.Searchable)
}
