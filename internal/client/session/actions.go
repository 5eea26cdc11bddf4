package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/driftsync/driftsync/internal/client/api"
	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/sync"
	"github.com/driftsync/driftsync/internal/client/upload"
	"github.com/driftsync/driftsync/internal/common"
)

func (s *Session) apiClient() (*api.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, common.ErrNoSession
	}
	return s.client, nil
}

func (s *Session) cardDestination(cardID string) (models.Destination, error) {
	cards := s.Cards()
	if cards == nil {
		return models.Destination{}, common.ErrNoSession
	}
	card, ok := cards.Card(cardID)
	if !ok {
		return models.Destination{}, common.ErrNotFound
	}
	dest, ok := card.Destination()
	if !ok {
		return models.Destination{}, ErrNotConnected
	}
	return dest, nil
}

// AddCard saves a new contact from its profile. The card starts unconnected;
// Connect initiates the handshake.
func (s *Session) AddCard(ctx context.Context, profile *models.CardProfile) (string, error) {
	client, err := s.apiClient()
	if err != nil {
		return "", err
	}
	cardID, err := client.AddCard(ctx, profile)
	if err != nil {
		return "", err
	}
	s.Cards().Nudge()
	return cardID, nil
}

// Connect runs the open handshake with the contact's node: mark the card
// connecting, deliver the open message, and record the returned token and
// revision baseline.
func (s *Session) Connect(ctx context.Context, cardID string) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	cards := s.Cards()
	card, ok := cards.Card(cardID)
	if !ok {
		return common.ErrNotFound
	}
	if card.Profile == nil || card.Profile.Node == "" {
		return ErrNotConnected
	}
	if err := client.SetCardConnecting(ctx, cardID); err != nil {
		return err
	}
	msg, err := client.GetCardOpenMessage(ctx, cardID)
	if err != nil {
		return err
	}
	result, err := client.DeliverOpenMessage(ctx, card.Profile.Node, msg)
	if err != nil {
		return err
	}
	if err := client.SetCardConnected(ctx, cardID, result); err != nil {
		return err
	}
	cards.Resync(cardID)
	return nil
}

// Disconnect closes the relationship: the card drops back to confirmed and
// the peer is told, best effort, that the connection is gone.
func (s *Session) Disconnect(ctx context.Context, cardID string) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	cards := s.Cards()
	card, ok := cards.Card(cardID)
	if !ok {
		return common.ErrNotFound
	}
	if err := client.SetCardConfirmed(ctx, cardID); err != nil {
		return err
	}
	if card.Profile != nil && card.Profile.Node != "" {
		msg, err := client.GetCardCloseMessage(ctx, cardID)
		if err == nil {
			if err := client.DeliverCloseMessage(ctx, card.Profile.Node, msg); err != nil {
				s.log.Warn(ctx, "close message delivery failed", "cardId", cardID, "error", err)
			}
		}
	}
	cards.Nudge()
	return nil
}

// RemoveCard disconnects (best effort) and deletes the card.
func (s *Session) RemoveCard(ctx context.Context, cardID string) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	if err := s.Disconnect(ctx, cardID); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.log.Warn(ctx, "disconnect before removal failed", "cardId", cardID, "error", err)
	}
	if err := client.RemoveCard(ctx, cardID); err != nil {
		return err
	}
	s.Cards().Nudge()
	return nil
}

// Resync queues a full refetch of one card, clearing its offsync flag on
// success.
func (s *Session) Resync(cardID string) error {
	cards := s.Cards()
	if cards == nil {
		return common.ErrNoSession
	}
	cards.Resync(cardID)
	return nil
}

// SetCardBlocked hides or unhides a contact locally.
func (s *Session) SetCardBlocked(ctx context.Context, cardID string, blocked bool) error {
	cards := s.Cards()
	if cards == nil {
		return common.ErrNoSession
	}
	return cards.SetBlocked(ctx, cardID, blocked)
}

// SetChannelBlocked hides or unhides a channel locally.
func (s *Session) SetChannelBlocked(ctx context.Context, cardID, channelID string, blocked bool) error {
	if cardID == "" {
		channels := s.Channels()
		if channels == nil {
			return common.ErrNoSession
		}
		return channels.SetBlocked(ctx, channelID, blocked)
	}
	cards := s.Cards()
	if cards == nil {
		return common.ErrNoSession
	}
	return cards.SetChannelBlocked(ctx, cardID, channelID, blocked)
}

// SetTopicBlocked hides or unhides a topic of the focused conversation.
func (s *Session) SetTopicBlocked(ctx context.Context, topicID string, blocked bool) error {
	conversation := s.Conversation()
	if conversation == nil {
		return common.ErrNoSession
	}
	return conversation.SetTopicBlocked(ctx, topicID, blocked)
}

// AddChannel creates a hosted channel with the given members.
func (s *Session) AddChannel(ctx context.Context, subject string, cardIDs []string) (string, error) {
	client, err := s.apiClient()
	if err != nil {
		return "", err
	}
	channelID, err := client.AddChannel(ctx, subject, cardIDs)
	if err != nil {
		return "", err
	}
	s.Channels().Nudge()
	return channelID, nil
}

// SetChannelSubject renames a hosted channel.
func (s *Session) SetChannelSubject(ctx context.Context, channelID, subject string) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	if err := client.SetChannelSubject(ctx, channelID, subject); err != nil {
		return err
	}
	s.Channels().Nudge()
	return nil
}

// SetChannelMember adds or removes a card on a hosted channel.
func (s *Session) SetChannelMember(ctx context.Context, channelID, cardID string, member bool) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	if member {
		err = client.SetChannelCard(ctx, channelID, cardID)
	} else {
		err = client.ClearChannelCard(ctx, channelID, cardID)
	}
	if err != nil {
		return err
	}
	s.Channels().Nudge()
	return nil
}

// RemoveChannel deletes a hosted channel, or leaves a channel hosted by a
// contact.
func (s *Session) RemoveChannel(ctx context.Context, cardID, channelID string) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	if cardID == "" {
		if err := client.RemoveChannel(ctx, channelID); err != nil {
			return err
		}
		s.Channels().Nudge()
		return nil
	}
	dest, err := s.cardDestination(cardID)
	if err != nil {
		return err
	}
	if err := client.RemoveContactChannel(ctx, dest, channelID); err != nil {
		return err
	}
	s.Cards().Resync(cardID)
	return nil
}

// Focus opens one conversation, routing topic fetches to the home node or
// the owning contact's node.
func (s *Session) Focus(cardID, channelID string) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	conversation := s.Conversation()
	var source sync.TopicSource
	if cardID == "" {
		source = &hostedTopics{client: client, channelID: channelID}
	} else {
		dest, err := s.cardDestination(cardID)
		if err != nil {
			return err
		}
		source = &contactTopics{client: client, dest: dest, channelID: channelID}
	}
	return conversation.Focus(cardID, channelID, source)
}

// Blur drops the focused conversation.
func (s *Session) Blur() {
	if conversation := s.Conversation(); conversation != nil {
		conversation.Blur()
	}
}

// MarkRead advances the focused channel's read marker.
func (s *Session) MarkRead(ctx context.Context) error {
	conversation := s.Conversation()
	if conversation == nil {
		return common.ErrNoSession
	}
	return conversation.MarkRead(ctx)
}

// SendMessage posts a text-only topic to a channel and nudges the focused
// conversation so it shows up promptly.
func (s *Session) SendMessage(ctx context.Context, cardID, channelID, text string) (string, error) {
	client, err := s.apiClient()
	if err != nil {
		return "", err
	}
	msg := &models.Message{Text: text}
	var topicID string
	if cardID == "" {
		topicID, err = client.AddTopic(ctx, channelID, msg, true)
	} else {
		var dest models.Destination
		dest, err = s.cardDestination(cardID)
		if err != nil {
			return "", err
		}
		topicID, err = client.AddContactTopic(ctx, dest, channelID, msg, true)
	}
	if err != nil {
		return "", err
	}
	if conversation := s.Conversation(); conversation != nil {
		conversation.Nudge()
	}
	return topicID, nil
}

// SendAssets creates an unconfirmed placeholder topic and hands it to the
// upload worker; the topic confirms only after every asset landed, and a
// failed handoff removes the placeholder.
func (s *Session) SendAssets(ctx context.Context, cardID, channelID, text string, assets []upload.Asset) (string, error) {
	client, err := s.apiClient()
	if err != nil {
		return "", err
	}
	var topicID string
	var sink upload.Sink
	if cardID == "" {
		topicID, err = client.AddTopic(ctx, channelID, nil, false)
		sink = &hostedSink{client: client}
	} else {
		var dest models.Destination
		dest, err = s.cardDestination(cardID)
		if err != nil {
			return "", err
		}
		topicID, err = client.AddContactTopic(ctx, dest, channelID, nil, false)
		sink = &contactSink{client: client, dest: dest}
	}
	if err != nil {
		return "", err
	}
	task := upload.Task{
		Sink:      sink,
		CardID:    cardID,
		ChannelID: channelID,
		TopicID:   topicID,
		Message:   &models.Message{Text: text},
		Assets:    assets,
	}
	if err := s.Uploads().Enqueue(task); err != nil {
		// No worker will ever confirm it; remove the placeholder now.
		if sink.Abort(ctx, channelID, topicID) != nil {
			s.log.Warn(ctx, "placeholder removal failed", "topicId", topicID)
		}
		return "", err
	}
	return topicID, nil
}

// RemoveTopic deletes a topic from a channel.
func (s *Session) RemoveTopic(ctx context.Context, cardID, channelID, topicID string) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	if cardID == "" {
		err = client.RemoveTopic(ctx, channelID, topicID)
	} else {
		var dest models.Destination
		dest, err = s.cardDestination(cardID)
		if err != nil {
			return err
		}
		err = client.RemoveContactTopic(ctx, dest, channelID, topicID)
	}
	if err != nil {
		return err
	}
	if conversation := s.Conversation(); conversation != nil {
		conversation.Nudge()
	}
	return nil
}

// UpdateProfile writes the mutable profile fields; the fresh payload folds
// back in through the profile revision push.
func (s *Session) UpdateProfile(ctx context.Context, data models.ProfileData) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	if err := client.SetProfileData(ctx, data); err != nil {
		return err
	}
	s.mu.RLock()
	profile := s.profile
	s.mu.RUnlock()
	if profile != nil {
		profile.Nudge()
	}
	return nil
}

// SetSearchable toggles whether the account appears in node listings.
func (s *Session) SetSearchable(ctx context.Context, flag bool) error {
	client, err := s.apiClient()
	if err != nil {
		return err
	}
	if err := client.SetAccountSearchable(ctx, flag); err != nil {
		return err
	}
	s.mu.RLock()
	account := s.account
	s.mu.RUnlock()
	if account != nil {
		account.Nudge()
	}
	return nil
}

// hostedTopics binds the conversation coordinator to a hosted channel.
type hostedTopics struct {
	client    *api.Client
	channelID string
}

func (h *hostedTopics) GetTopics(ctx context.Context, since int64) (*models.TopicBatch, error) {
	return h.client.GetTopics(ctx, h.channelID, since)
}

func (h *hostedTopics) GetTopic(ctx context.Context, topicID string) (*models.TopicDelta, error) {
	return h.client.GetTopic(ctx, h.channelID, topicID)
}

// contactTopics binds the conversation coordinator to a channel on a
// contact's node.
type contactTopics struct {
	client    *api.Client
	dest      models.Destination
	channelID string
}

func (h *contactTopics) GetTopics(ctx context.Context, since int64) (*models.TopicBatch, error) {
	return h.client.GetContactTopics(ctx, h.dest, h.channelID, since)
}

func (h *contactTopics) GetTopic(ctx context.Context, topicID string) (*models.TopicDelta, error) {
	return h.client.GetContactTopic(ctx, h.dest, h.channelID, topicID)
}

// transformsFor picks the server-side transforms for an asset kind and
// reports which transform id carries the thumb.
func transformsFor(kind string) (transforms []string, thumb string) {
	switch kind {
	case "image":
		return []string{"ithumb;photo", "icopy;photo"}, "ithumb;photo"
	case "video":
		return []string{"vthumb;video", "vcopy;video"}, "vthumb;video"
	case "audio":
		return []string{"acopy;audio"}, ""
	default:
		return []string{"bcopy"}, ""
	}
}

func assetIDs(metas []models.AssetMeta, thumb string) upload.AssetIDs {
	var ids upload.AssetIDs
	for _, meta := range metas {
		if meta.Transform == thumb {
			ids.Thumb = meta.AssetID
		} else {
			ids.Full = meta.AssetID
		}
	}
	return ids
}

// progressReader reports bytes consumed from the wrapped reader.
type progressReader struct {
	r    io.Reader
	size int64
	sent int64
	fn   func(sent, size int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.size)
	}
	return n, err
}

func openAsset(asset upload.Asset, progress func(sent, size int64)) (*os.File, io.Reader, error) {
	f, err := os.Open(asset.Path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, &progressReader{r: f, size: info.Size(), fn: progress}, nil
}

// hostedSink writes handoff results to the home node.
type hostedSink struct {
	client *api.Client
}

func (h *hostedSink) AddAsset(ctx context.Context, channelID, topicID string, asset upload.Asset, progress func(sent, size int64)) (upload.AssetIDs, error) {
	f, r, err := openAsset(asset, progress)
	if err != nil {
		return upload.AssetIDs{}, err
	}
	defer f.Close()
	transforms, thumb := transformsFor(asset.Kind)
	metas, err := h.client.AddTopicAsset(ctx, channelID, topicID, filepath.Base(asset.Path), r, transforms)
	if err != nil {
		return upload.AssetIDs{}, err
	}
	return assetIDs(metas, thumb), nil
}

func (h *hostedSink) Confirm(ctx context.Context, channelID, topicID string, msg *models.Message) error {
	return h.client.SetTopicSubject(ctx, channelID, topicID, msg)
}

func (h *hostedSink) Abort(ctx context.Context, channelID, topicID string) error {
	return h.client.RemoveTopic(ctx, channelID, topicID)
}

// contactSink writes handoff results to a contact's node.
type contactSink struct {
	client *api.Client
	dest   models.Destination
}

func (h *contactSink) AddAsset(ctx context.Context, channelID, topicID string, asset upload.Asset, progress func(sent, size int64)) (upload.AssetIDs, error) {
	f, r, err := openAsset(asset, progress)
	if err != nil {
		return upload.AssetIDs{}, err
	}
	defer f.Close()
	transforms, thumb := transformsFor(asset.Kind)
	metas, err := h.client.AddContactTopicAsset(ctx, h.dest, channelID, topicID, filepath.Base(asset.Path), r, transforms)
	if err != nil {
		return upload.AssetIDs{}, err
	}
	return assetIDs(metas, thumb), nil
}

func (h *contactSink) Confirm(ctx context.Context, channelID, topicID string, msg *models.Message) error {
	return h.client.SetContactTopicSubject(ctx, h.dest, channelID, topicID, msg)
}

func (h *contactSink) Abort(ctx context.Context, channelID, topicID string) error {
	return h.client.RemoveContactTopic(ctx, h.dest, channelID, topicID)
}
