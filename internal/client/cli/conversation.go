package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/upload"
)

// open focuses a conversation: "open <channelId>" for hosted channels,
// "open <cardId> <channelId>" for contact channels.
func (a *App) open(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(a.out, "Usage: open <channelId> | open <cardId> <channelId>")
		return
	}
	cardID, channelID := "", args[0]
	if len(args) > 1 {
		cardID, channelID = args[0], args[1]
	}
	if err := a.session.Focus(cardID, channelID); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	a.listTopics()
}

func messageText(detail *models.TopicDetail) string {
	if detail == nil {
		return ""
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(detail.Data), &msg); err != nil {
		return detail.Data
	}
	text := msg.Text
	for _, asset := range msg.Assets {
		text += fmt.Sprintf(" [%s:%s]", asset.Type, asset.Full)
	}
	return text
}

func (a *App) listTopics() {
	conversation := a.session.Conversation()
	if conversation == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}
	cardID, channelID, ok := conversation.Focused()
	if !ok {
		fmt.Fprintln(a.out, "No open conversation")
		return
	}
	for _, item := range conversation.Snapshot() {
		if item.Blocked || item.Detail == nil {
			continue
		}
		if item.Detail.Status != models.TopicConfirmed {
			continue
		}
		when := time.Unix(item.Detail.Created, 0).Format("01-02 15:04")
		fmt.Fprintf(a.out, "%s  %-10s %s\n", when, item.Detail.GUID[:minInt(8, len(item.Detail.GUID))], messageText(item.Detail))
	}
	if uploads := a.session.Uploads(); uploads != nil {
		for _, p := range uploads.ChannelProgress(cardID, channelID) {
			if p.Status == upload.StatusComplete {
				continue
			}
			fmt.Fprintf(a.out, "upload %s: %s (%d/%d assets, %d/%d bytes)\n",
				p.TopicID, p.Status, p.Asset, p.Total, p.Sent, p.Size)
		}
	}
}

func (a *App) send(ctx context.Context, args []string) {
	conversation := a.session.Conversation()
	if conversation == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}
	cardID, channelID, ok := conversation.Focused()
	if !ok {
		fmt.Fprintln(a.out, "No open conversation")
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: send <text>")
		return
	}
	if _, err := a.session.SendMessage(ctx, cardID, channelID, strings.Join(args, " ")); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
	}
}

func (a *App) sendFile(ctx context.Context, args []string) {
	conversation := a.session.Conversation()
	if conversation == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return
	}
	cardID, channelID, ok := conversation.Focused()
	if !ok {
		fmt.Fprintln(a.out, "No open conversation")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(a.out, "Usage: sendfile <path> [text]")
		return
	}
	path := args[0]
	text := strings.Join(args[1:], " ")
	asset := upload.Asset{Path: path, Kind: assetKind(path), Label: filepath.Base(path)}
	topicID, err := a.session.SendAssets(ctx, cardID, channelID, text, []upload.Asset{asset})
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "Uploading as topic %s\n", topicID)
}

func assetKind(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	case ".mp4", ".mov", ".webm":
		return "video"
	case ".mp3", ".ogg", ".flac", ".wav":
		return "audio"
	default:
		return "binary"
	}
}

func (a *App) markRead(ctx context.Context) {
	if err := a.session.MarkRead(ctx); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
	}
}
