package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsc/clinic-chat-bridge/internal/api"
	"github.com/medsc/clinic-chat-bridge/internal/domain"
	"github.com/medsc/clinic-chat-bridge/internal/repository"
	"github.com/medsc/clinic-chat-bridge/internal/socket"
)

const (
	defaultQuietWindow = 3 * time.Second
	historyLimit       = 200
)

// ChatService routes outbound messages over the best available path, feeds
// every inbound event through the session reconciler, and republishes the
// result on the event bus for the CLI and MCP surfaces.
type ChatService struct {
	sock    *socket.Client
	api     *api.Client
	session *Session
	msgRepo repository.MessageRepository
	docRepo repository.DoctorRepository
	bus     domain.EventBus
	log     zerolog.Logger
	quiet   time.Duration

	typingMu    sync.Mutex
	typingTimer *time.Timer
	typingKey   string

	unsubs []func()
}

// Options tunes testing-relevant knobs; zero values take the defaults.
type Options struct {
	// TypingQuietWindow is how long after the last StartTyping call the
	// stop indicator goes out.
	TypingQuietWindow time.Duration
}

func NewChatService(
	sock *socket.Client,
	apiClient *api.Client,
	session *Session,
	msgRepo repository.MessageRepository,
	docRepo repository.DoctorRepository,
	bus domain.EventBus,
	log zerolog.Logger,
	opts Options,
) *ChatService {
	quiet := opts.TypingQuietWindow
	if quiet <= 0 {
		quiet = defaultQuietWindow
	}
	return &ChatService{
		sock:    sock,
		api:     apiClient,
		session: session,
		msgRepo: msgRepo,
		docRepo: docRepo,
		bus:     bus,
		log:     log,
		quiet:   quiet,
	}
}

// Start wires the push-channel subscriptions, attempts the initial connect,
// and loads the directory and unread counters. A failed connect is not
// fatal: the service continues in HTTP-only mode while the transport
// retries in the background.
func (s *ChatService) Start(ctx context.Context) error {
	s.unsubs = append(s.unsubs,
		s.sock.OnMessage(s.handleInbound),
		s.sock.OnMessageSent(s.handleConfirmed),
		s.sock.OnConnectionStatus(s.handleConnectionStatus),
		s.sock.OnPresence(s.handlePresence),
		s.sock.OnTyping(s.handleTyping),
		s.sock.OnUnread(s.handleUnreadNotice),
		s.sock.OnMessageError(s.handleMessageError),
	)

	if err := s.sock.Connect(ctx); err != nil {
		s.log.Warn().Err(err).Msg("push channel unavailable, continuing over HTTP")
	}

	s.loadDirectory(ctx)
	return nil
}

// Stop removes every subscription and tears down the transport. Mandatory
// on teardown so no stale callback fires after the service is gone.
func (s *ChatService) Stop() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	s.typingMu.Lock()
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.typingMu.Unlock()

	s.sock.Disconnect()
}

// loadDirectory seeds the session with the doctor list and unread counts.
// Both fetches degrade instead of failing the session: the doctor list
// falls back to the local archive, unread counts to an empty map.
func (s *ChatService) loadDirectory(ctx context.Context) {
	doctors, err := s.api.GetDoctors(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("doctor directory fetch failed, serving archived directory")
		if s.docRepo != nil {
			doctors, _ = s.docRepo.GetAll(ctx)
		}
	} else if s.docRepo != nil {
		for _, d := range doctors {
			if err := s.docRepo.Upsert(ctx, d); err != nil {
				s.log.Warn().Err(err).Str("doctor", d.Key()).Msg("failed to archive doctor")
			}
		}
	}
	s.session.SetDoctors(doctors)

	counts, err := s.api.GetUnreadCounts(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("unread counts fetch failed, starting from zero")
		counts = map[string]int{}
	}
	s.session.SetUnreadCounts(counts)
}

// Send delivers a message to the given conversation, preferring the push
// channel and falling back to HTTP when it is not live. Every call either
// lands a message in the session or returns an error; nothing is dropped
// silently. On an HTTP failure the session is untouched, so the caller can
// retry with the same body.
func (s *ChatService) Send(ctx context.Context, conversationKey, body string) (*domain.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("send: empty message body")
	}

	s.StopTyping(conversationKey)

	if s.sock.IsLive() {
		msg := domain.NewOutgoing(conversationKey, body)
		// Merge before emitting so a fast confirmation arriving on the
		// read loop always finds the echo to reconcile against. The echo
		// stays out of the archive; only the confirmed record lands there.
		s.session.Merge(msg)
		if err := s.sock.SendMessage(conversationKey, body); err != nil {
			// The write raced a disconnect; take the HTTP path instead.
			s.session.Drop(msg.ID)
		} else {
			s.bus.Publish(domain.MessageSentEvent{Message: msg, EventTime: time.Now()})
			return msg, nil
		}
	}

	msg, err := s.api.SendMessage(ctx, conversationKey, body)
	if err != nil {
		return nil, err
	}
	// Feed the confirmed record through the same inbound path as pushed
	// messages, so every subscriber sees one uniform stream.
	s.handleInbound(*msg)
	return msg, nil
}

func (s *ChatService) handleInbound(m domain.Message) {
	msg := &m
	added := s.session.RecordInbound(msg)
	if added {
		key := s.conversationKey(msg)
		s.archive(context.Background(), key, msg)
	}
	s.bus.Publish(domain.MessageReceivedEvent{Message: msg, EventTime: time.Now()})
}

// handleConfirmed absorbs the server's send confirmation, replacing the
// optimistic echo when the identities reconcile.
func (s *ChatService) handleConfirmed(m domain.Message) {
	msg := &m
	msg.IsMine = true
	if s.session.Merge(msg) {
		s.archive(context.Background(), s.conversationKey(msg), msg)
	}
	s.bus.Publish(domain.MessageSentEvent{Message: msg, EventTime: time.Now()})
}

func (s *ChatService) handleConnectionStatus(connected bool) {
	reason := ""
	if !connected {
		reason = "transport down"
	}
	s.bus.Publish(domain.ConnectionStatusEvent{
		Connected: connected,
		Reason:    reason,
		EventTime: time.Now(),
	})
}

func (s *ChatService) handlePresence(userID string, status domain.Presence) {
	if s.session.SetPresence(userID, status) {
		s.bus.Publish(domain.PresenceUpdatedEvent{
			UserID:    userID,
			Status:    status,
			EventTime: time.Now(),
		})
	}
}

func (s *ChatService) handleTyping(userID string, typing bool) {
	s.session.SetTyping(userID, typing)
	s.bus.Publish(domain.TypingUpdatedEvent{
		UserID:    userID,
		Typing:    typing,
		EventTime: time.Now(),
	})
}

// handleUnreadNotice republishes the server's heads-up unless the sender is
// the conversation the user already has open.
func (s *ChatService) handleUnreadNotice(n domain.UnreadNotice) {
	active := s.session.ActiveKey()
	if active != "" {
		if d := s.session.DoctorByID(n.SenderID); d != nil && d.Key() == active {
			return
		}
		if n.SenderID == active {
			return
		}
	}
	s.bus.Publish(domain.UnreadNoticeEvent{Notice: n, EventTime: time.Now()})
}

func (s *ChatService) handleMessageError(reason string) {
	s.bus.Publish(domain.MessageErrorEvent{Reason: reason, EventTime: time.Now()})
}

// OpenConversation activates a conversation, loads its history on first
// open, and returns the visible transcript. Activation resets the unread
// counter. When the backend is unreachable the local archive serves the
// transcript and the history fetch is retried on the next open.
func (s *ChatService) OpenConversation(ctx context.Context, key string) ([]*domain.Message, error) {
	key = s.canonicalKey(key)
	needHistory := s.session.Activate(key)
	if needHistory {
		history, err := s.api.GetMessages(ctx, key)
		if err == nil {
			for i := range history {
				msg := &history[i]
				if s.session.Merge(msg) {
					s.archive(ctx, key, msg)
				}
			}
			s.session.MarkHistoryLoaded(key)
		} else {
			s.log.Warn().Err(err).Str("conversation", key).Msg("history fetch failed, serving archive")
			if s.msgRepo != nil {
				archived, aerr := s.msgRepo.GetByConversation(ctx, key, historyLimit, 0)
				if aerr != nil {
					s.log.Warn().Err(aerr).Str("conversation", key).Msg("archive read failed")
				}
				for _, msg := range archived {
					s.session.Merge(msg)
				}
			}
		}
	}
	return s.session.Transcript(key), nil
}

// StartTyping emits a typing indicator and arms the quiet-window timer:
// with no further StartTyping call and no explicit stop, the stop indicator
// goes out by itself. No-op in HTTP-only mode.
func (s *ChatService) StartTyping(conversationKey string) {
	if err := s.sock.SendTyping(conversationKey, true); err != nil {
		return
	}

	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingKey = conversationKey
	s.typingTimer = time.AfterFunc(s.quiet, func() {
		s.typingMu.Lock()
		s.typingTimer = nil
		s.typingKey = ""
		s.typingMu.Unlock()
		if err := s.sock.SendTyping(conversationKey, false); err != nil {
			s.log.Debug().Err(err).Msg("typing stop not delivered")
		}
	})
}

// StopTyping cancels any pending quiet-window timer and emits the stop
// indicator immediately. Called on message send.
func (s *ChatService) StopTyping(conversationKey string) {
	s.typingMu.Lock()
	armed := s.typingTimer != nil && s.typingKey == conversationKey
	if armed {
		s.typingTimer.Stop()
		s.typingTimer = nil
		s.typingKey = ""
	}
	s.typingMu.Unlock()

	if !armed {
		return
	}
	if err := s.sock.SendTyping(conversationKey, false); err != nil {
		s.log.Debug().Err(err).Msg("typing stop not delivered")
	}
}

// Connect resumes the push channel manually, e.g. after the automatic
// reconnect attempts were exhausted.
func (s *ChatService) Connect(ctx context.Context) error {
	return s.sock.Connect(ctx)
}

func (s *ChatService) Disconnect() {
	s.sock.Disconnect()
}

func (s *ChatService) IsLive() bool {
	return s.sock.IsLive()
}

func (s *ChatService) Doctors() []*domain.Doctor {
	return s.session.Doctors()
}

func (s *ChatService) Transcript(key string) []*domain.Message {
	return s.session.Transcript(key)
}

func (s *ChatService) ActiveConversation() string {
	return s.session.ActiveKey()
}

func (s *ChatService) UnreadCounts() map[string]int {
	return s.session.UnreadCounts()
}

func (s *ChatService) IsTyping(key string) bool {
	return s.session.IsTyping(key)
}

// SearchMessages queries the local archive.
func (s *ChatService) SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	if s.msgRepo == nil {
		return nil, nil
	}
	return s.msgRepo.Search(ctx, query, limit)
}

// ArchivedMessages reads a conversation's stored history from the local
// archive, independent of the live session.
func (s *ChatService) ArchivedMessages(ctx context.Context, key string, limit, offset int) ([]*domain.Message, error) {
	if s.msgRepo == nil {
		return nil, nil
	}
	return s.msgRepo.GetByConversation(ctx, s.canonicalKey(key), limit, offset)
}

func (s *ChatService) conversationKey(m *domain.Message) string {
	return s.canonicalKey(m.ConversationKey())
}

// canonicalKey resolves a conversation key to the doctor's canonical
// identifier so the same conversation never splits across the legacy
// and UUID namespaces.
func (s *ChatService) canonicalKey(key string) string {
	if d := s.session.DoctorByID(key); d != nil {
		return d.Key()
	}
	return key
}

func (s *ChatService) archive(ctx context.Context, conversationKey string, msg *domain.Message) {
	if s.msgRepo == nil {
		return
	}
	if err := s.msgRepo.CreateOrIgnore(ctx, conversationKey, msg); err != nil {
		s.log.Warn().Err(err).Str("message", msg.ID).Msg("failed to archive message")
	}
}
