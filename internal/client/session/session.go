// Package session composes the client: it owns the store, the API client,
// the notification bridge, the sync coordinators and the upload worker for
// one logged-in account, and routes pushed revision vectors to the right
// engine.
package session

import (
	"context"
	"encoding/json"
	"errors"
	gosync "sync"

	"github.com/google/uuid"

	"github.com/driftsync/driftsync/internal/client/api"
	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/notify"
	"github.com/driftsync/driftsync/internal/client/repositories/cursors"
	"github.com/driftsync/driftsync/internal/client/store"
	"github.com/driftsync/driftsync/internal/client/sync"
	"github.com/driftsync/driftsync/internal/client/upload"
	"github.com/driftsync/driftsync/internal/common"
	"github.com/driftsync/driftsync/internal/logging"
)

// ErrActive is returned by Login when a session is already running.
var ErrActive = errors.New("session already active")

// ErrNotConnected is returned when an operation needs a reachable contact
// node and the card is not connected.
var ErrNotConnected = errors.New("contact not connected")

// Options tune the session's transports.
type Options struct {
	// Insecure switches both HTTP and websocket traffic to plaintext.
	Insecure bool
	// APIOptions are applied to every api.Client the session builds.
	APIOptions []api.Option
}

type groupItem struct {
	Revision int64            `json:"revision"`
	Data     models.GroupData `json:"data"`
}

// Session is the per-account composition root. All fields behind mu are nil
// or zero while logged out.
type Session struct {
	store *store.Store
	log   logging.Logger
	opts  Options

	mu     gosync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	access *models.Access
	client *api.Client

	bridge       *notify.Bridge
	cards        *sync.Cards
	channels     *sync.Channels
	conversation *sync.Conversation
	uploads      *upload.Worker

	account *sync.Engine
	profile *sync.Engine
	groups  *sync.Engine

	accountStatus models.AccountStatus
	profileData   models.Profile
	groupItems    map[string]groupItem

	onUpdate func()
	onStatus func(notify.Status)
}

// New creates a logged-out session over an opened store.
func New(st *store.Store, log logging.Logger, opts Options) *Session {
	return &Session{store: st, log: log, opts: opts}
}

// SetOnUpdate registers the callback invoked whenever any coordinator
// publishes a fresh snapshot. Must be set before Login or Resume.
func (s *Session) SetOnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// SetOnStatus registers the callback for bridge connection changes. Must be
// set before Login or Resume.
func (s *Session) SetOnStatus(fn func(notify.Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

// Active reports whether a session is running.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// Login authenticates against the node and starts the session. The issued
// access credential is persisted, so a later Resume continues without
// credentials.
func (s *Session) Login(ctx context.Context, server, handle, password string) error {
	if s.Active() {
		return ErrActive
	}
	access, err := api.Authenticate(ctx, server, handle, password, s.opts.APIOptions...)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(access)
	if err != nil {
		return err
	}
	if err := s.store.Cursors.Set(ctx, cursors.KeySession, raw); err != nil {
		return err
	}
	return s.start(ctx, access)
}

// Resume restarts the session from the persisted credential and cursors.
// Items and watermarks are reloaded verbatim; no resync happens until the
// node pushes a newer vector.
func (s *Session) Resume(ctx context.Context) error {
	if s.Active() {
		return ErrActive
	}
	raw, err := s.store.Cursors.Get(ctx, cursors.KeySession)
	if err != nil {
		return err
	}
	if raw == nil {
		return common.ErrNoSession
	}
	access := &models.Access{}
	if err := json.Unmarshal(raw, access); err != nil {
		return err
	}
	return s.start(ctx, access)
}

// Logout stops the bridge, cancels every in-flight pass, drops the
// coordinators and wipes the local replica.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	bridge := s.bridge
	uploads := s.uploads
	cancel := s.cancel
	cards, channels, conversation := s.cards, s.channels, s.conversation
	s.bridge = nil
	s.uploads = nil
	s.cancel = nil
	s.ctx = nil
	s.access = nil
	s.client = nil
	s.cards = nil
	s.channels = nil
	s.conversation = nil
	s.account = nil
	s.profile = nil
	s.groups = nil
	s.accountStatus = models.AccountStatus{}
	s.profileData = models.Profile{}
	s.groupItems = nil
	s.mu.Unlock()

	if bridge == nil {
		return common.ErrNoSession
	}
	bridge.Stop()
	cancel()
	uploads.Stop()
	cards.Wait()
	channels.Wait()
	conversation.Wait()
	return s.store.Wipe(ctx)
}

func (s *Session) start(ctx context.Context, access *models.Access) error {
	client := api.New(access.Server, access.AppToken, s.opts.APIOptions...)
	log := s.log.With("session", uuid.NewString())

	cardRev, err := s.store.Cursors.GetRevision(ctx, cursors.KeyCardRevision)
	if err != nil {
		return err
	}
	channelRev, err := s.store.Cursors.GetRevision(ctx, cursors.KeyChannelRevision)
	if err != nil {
		return err
	}
	accountRev, err := s.store.Cursors.GetRevision(ctx, cursors.KeyAccountRevision)
	if err != nil {
		return err
	}
	profileRev, err := s.store.Cursors.GetRevision(ctx, cursors.KeyProfileRevision)
	if err != nil {
		return err
	}
	groupRev, err := s.store.Cursors.GetRevision(ctx, cursors.KeyGroupRevision)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	cards := sync.NewCards(runCtx, client, client, s.store, cardRev, log)
	if err := cards.Load(ctx); err != nil {
		cancel()
		return err
	}
	channels := sync.NewChannels(runCtx, client, s.store, channelRev, log)
	if err := channels.Load(ctx); err != nil {
		cancel()
		return err
	}
	conversation := sync.NewConversation(runCtx, s.store, &channelMarks{s: s}, log)

	uploads := upload.NewWorker(log)

	s.mu.Lock()
	s.ctx = runCtx
	s.cancel = cancel
	s.access = access
	s.client = client
	s.cards = cards
	s.channels = channels
	s.conversation = conversation
	s.uploads = uploads
	s.groupItems = make(map[string]groupItem)
	s.account = sync.NewEngine(runCtx, "account", accountRev, s.accountPass(client), log)
	s.profile = sync.NewEngine(runCtx, "profile", profileRev, s.profilePass(client), log)
	s.groups = s.newGroupEngine(runCtx, client, groupRev, log)
	s.mu.Unlock()

	if err := s.loadSmallState(ctx); err != nil {
		cancel()
		return err
	}

	cards.SetOnUpdate(func() {
		conversation.Poke()
		s.publish()
	})
	channels.SetOnUpdate(func() {
		conversation.Poke()
		s.publish()
	})
	conversation.SetOnUpdate(s.publish)
	uploads.SetOnProgress(func(upload.Progress) { s.publish() })
	uploads.Start(runCtx)

	bridge := notify.New(access.Server, access.AppToken, s.opts.Insecure, log)
	bridge.OnRevision(s.distribute)
	bridge.OnStatus(func(st notify.Status) {
		s.mu.RLock()
		fn := s.onStatus
		s.mu.RUnlock()
		if fn != nil {
			fn(st)
		}
	})
	s.mu.Lock()
	s.bridge = bridge
	s.mu.Unlock()
	bridge.Start(runCtx)

	log.Info(ctx, "session started", "guid", access.GUID, "server", access.Server)
	return nil
}

// distribute fans a pushed revision vector out to the per-collection
// engines. Later vectors win inside each engine.
func (s *Session) distribute(rev models.Revision) {
	s.mu.RLock()
	account, profile, groups := s.account, s.profile, s.groups
	cards, channels := s.cards, s.channels
	s.mu.RUnlock()
	if cards == nil {
		return
	}
	account.RequestRevision(rev.Account)
	profile.RequestRevision(rev.Profile)
	groups.RequestRevision(rev.Group)
	cards.RequestRevision(rev.Card)
	channels.RequestRevision(rev.Channel)
}

// loadSmallState restores the single-fetch collections persisted as opaque
// values.
func (s *Session) loadSmallState(ctx context.Context) error {
	if raw, err := s.store.Cursors.Get(ctx, cursors.KeyAccountStatus); err != nil {
		return err
	} else if raw != nil {
		var status models.AccountStatus
		if err := json.Unmarshal(raw, &status); err == nil {
			s.mu.Lock()
			s.accountStatus = status
			s.mu.Unlock()
		}
	}
	if raw, err := s.store.Cursors.Get(ctx, cursors.KeyProfileData); err != nil {
		return err
	} else if raw != nil {
		var profile models.Profile
		if err := json.Unmarshal(raw, &profile); err == nil {
			s.mu.Lock()
			s.profileData = profile
			s.mu.Unlock()
		}
	}
	if raw, err := s.store.Cursors.Get(ctx, cursors.KeyGroups); err != nil {
		return err
	} else if raw != nil {
		items := make(map[string]groupItem)
		if err := json.Unmarshal(raw, &items); err == nil {
			s.mu.Lock()
			s.groupItems = items
			s.mu.Unlock()
		}
	}
	return nil
}

// accountPass refreshes the account status when the account revision moves.
func (s *Session) accountPass(client *api.Client) sync.PassFunc {
	return func(ctx context.Context, target int64) error {
		status, err := client.GetAccountStatus(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(status)
		if err != nil {
			return err
		}
		if err := s.store.Cursors.Set(ctx, cursors.KeyAccountStatus, raw); err != nil {
			return err
		}
		if err := s.store.Cursors.SetRevision(ctx, cursors.KeyAccountRevision, target); err != nil {
			return err
		}
		s.mu.Lock()
		s.accountStatus = *status
		s.mu.Unlock()
		s.publish()
		return nil
	}
}

// profilePass refreshes the local profile when the profile revision moves.
func (s *Session) profilePass(client *api.Client) sync.PassFunc {
	return func(ctx context.Context, target int64) error {
		profile, err := client.GetProfile(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(profile)
		if err != nil {
			return err
		}
		if err := s.store.Cursors.Set(ctx, cursors.KeyProfileData, raw); err != nil {
			return err
		}
		if err := s.store.Cursors.SetRevision(ctx, cursors.KeyProfileRevision, target); err != nil {
			return err
		}
		s.mu.Lock()
		s.profileData = *profile
		s.mu.Unlock()
		s.publish()
		return nil
	}
}

// newGroupEngine folds the group collection, an id-keyed map persisted as
// one value.
func (s *Session) newGroupEngine(ctx context.Context, client *api.Client, applied int64, log logging.Logger) *sync.Engine {
	var eng *sync.Engine
	pass := func(ctx context.Context, target int64) error {
		deltas, err := client.GetGroupDeltas(ctx, eng.Applied())
		if err != nil {
			return err
		}
		s.mu.Lock()
		for i := range deltas {
			rec := &deltas[i]
			if rec.Data == nil {
				delete(s.groupItems, rec.ID)
				continue
			}
			s.groupItems[rec.ID] = groupItem{Revision: rec.Revision, Data: *rec.Data}
		}
		raw, err := json.Marshal(s.groupItems)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		if err := s.store.Cursors.Set(ctx, cursors.KeyGroups, raw); err != nil {
			return err
		}
		if err := s.store.Cursors.SetRevision(ctx, cursors.KeyGroupRevision, target); err != nil {
			return err
		}
		s.publish()
		return nil
	}
	eng = sync.NewEngine(ctx, "groups", applied, pass, log)
	return eng
}

func (s *Session) publish() {
	s.mu.RLock()
	fn := s.onUpdate
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Cards exposes the contact coordinator; nil while logged out.
func (s *Session) Cards() *sync.Cards {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cards
}

// Channels exposes the hosted channel coordinator; nil while logged out.
func (s *Session) Channels() *sync.Channels {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels
}

// Conversation exposes the focused topic coordinator; nil while logged out.
func (s *Session) Conversation() *sync.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversation
}

// Uploads exposes the asset handoff worker; nil while logged out.
func (s *Session) Uploads() *upload.Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploads
}

// BridgeStatus reports the notification socket state.
func (s *Session) BridgeStatus() notify.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bridge == nil {
		return notify.StatusDisconnected
	}
	return s.bridge.Status()
}

// Profile returns the local user's last synced profile.
func (s *Session) Profile() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileData
}

// AccountStatus returns the last synced account state.
func (s *Session) AccountStatus() models.AccountStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountStatus
}

// Access returns the session credential.
func (s *Session) Access() (models.Access, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.access == nil {
		return models.Access{}, false
	}
	return *s.access, true
}

// channelMarks routes conversation watermark writes to the owning
// coordinator: hosted channels (empty card id) to sync.Channels, contact
// channels to sync.Cards.
type channelMarks struct {
	s *Session
}

func (m *channelMarks) Channel(cardID, channelID string) (models.ChannelItem, bool) {
	if cardID == "" {
		if c := m.s.Channels(); c != nil {
			return c.Channel(channelID)
		}
		return models.ChannelItem{}, false
	}
	if c := m.s.Cards(); c != nil {
		return c.Channel(cardID, channelID)
	}
	return models.ChannelItem{}, false
}

func (m *channelMarks) SetSyncRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	if cardID == "" {
		if c := m.s.Channels(); c != nil {
			return c.SetSyncRevision(ctx, channelID, revision)
		}
		return common.ErrNoSession
	}
	if c := m.s.Cards(); c != nil {
		return c.SetSyncRevision(ctx, cardID, channelID, revision)
	}
	return common.ErrNoSession
}

func (m *channelMarks) SetReadRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	if cardID == "" {
		if c := m.s.Channels(); c != nil {
			return c.SetReadRevision(ctx, channelID, revision)
		}
		return common.ErrNoSession
	}
	if c := m.s.Cards(); c != nil {
		return c.SetReadRevision(ctx, cardID, channelID, revision)
	}
	return common.ErrNoSession
}
