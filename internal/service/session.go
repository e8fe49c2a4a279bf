package service

import (
	"sync"
	"time"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

// echoWindow bounds how far apart an optimistic entry and its confirmed echo
// may be timestamped and still reconcile to one logical message.
const echoWindow = 30 * time.Second

// Session is the reconciled in-memory chat state for one connected user:
// the global append-only message list, the doctor directory with live
// presence, and the unread and typing maps keyed by canonical conversation
// key. Only the chat service writes to it, in response to inbound events or
// local sends.
type Session struct {
	mu       sync.RWMutex
	doctors  []*domain.Doctor
	messages []*domain.Message
	seen     map[string]int
	unread   map[string]int
	typing   map[string]bool
	loaded   map[string]struct{}
	active   string
}

func NewSession() *Session {
	return &Session{
		seen:   make(map[string]int),
		unread: make(map[string]int),
		typing: make(map[string]bool),
		loaded: make(map[string]struct{}),
	}
}

func (s *Session) SetDoctors(doctors []*domain.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors = doctors
}

func (s *Session) Doctors() []*domain.Doctor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Doctor, len(s.doctors))
	copy(out, s.doctors)
	return out
}

// DoctorByID finds a doctor by either identifier namespace.
func (s *Session) DoctorByID(id string) *domain.Doctor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doctorByIDLocked(id)
}

func (s *Session) doctorByIDLocked(id string) *domain.Doctor {
	for _, d := range s.doctors {
		if d.Matches(id) {
			return d
		}
	}
	return nil
}

// canonicalKeyLocked resolves any identifier to the canonical conversation
// key, preferring the directory's globally-unique id when the doctor is
// known.
func (s *Session) canonicalKeyLocked(id string) string {
	if d := s.doctorByIDLocked(id); d != nil {
		return d.Key()
	}
	return id
}

// SetPresence updates a doctor's online state, matching either identifier
// namespace. Returns false when no doctor matched.
func (s *Session) SetPresence(userID string, status domain.Presence) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doctorByIDLocked(userID)
	if d == nil {
		return false
	}
	d.Status = status
	return true
}

// Merge inserts a message into the global list. Inserting an identity that
// is already present is a no-op. A confirmed locally-authored message first
// tries to replace its optimistic pending echo in place, so the two never
// coexist.
func (s *Session) Merge(m *domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeLocked(m)
}

// Drop removes a message by id, shifting later entries down. Callers use
// it to roll back an optimistic echo whose emit failed.
func (s *Session) Drop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.seen[id]
	if !ok {
		return false
	}
	delete(s.seen, id)
	s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	for i := idx; i < len(s.messages); i++ {
		s.seen[s.messages[i].ID] = i
	}
	return true
}

func (s *Session) mergeLocked(m *domain.Message) bool {
	if _, ok := s.seen[m.ID]; ok {
		return false
	}

	if m.IsMine && !m.Pending && !m.IsTemp() {
		if idx := s.findPendingEchoLocked(m); idx >= 0 {
			old := s.messages[idx]
			delete(s.seen, old.ID)
			s.messages[idx] = m
			s.seen[m.ID] = idx
			return true
		}
	}

	s.messages = append(s.messages, m)
	s.seen[m.ID] = len(s.messages) - 1
	return true
}

// findPendingEchoLocked locates the oldest optimistic entry the confirmed
// message m is the echo of: same conversation, same body, timestamps within
// the echo window. The backend attaches no reconciliation id, so content
// matching is the best available signal.
func (s *Session) findPendingEchoLocked(m *domain.Message) int {
	key := m.ConversationKey()
	for i, cand := range s.messages {
		if !cand.Pending || !cand.IsMine {
			continue
		}
		if cand.ConversationKey() != key || cand.Body != m.Body {
			continue
		}
		delta := m.Timestamp.Sub(cand.Timestamp)
		if delta < 0 {
			delta = -delta
		}
		if m.Timestamp.IsZero() || cand.Timestamp.IsZero() || delta <= echoWindow {
			return i
		}
	}
	return -1
}

// RecordInbound merges an inbound message and does the unread bookkeeping:
// messages not authored locally for a conversation other than the active
// one bump that conversation's counter.
func (s *Session) RecordInbound(m *domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.mergeLocked(m)
	if added && !m.IsMine {
		key := s.canonicalKeyLocked(m.SenderID)
		if key != s.active {
			s.unread[key]++
		}
	}
	return added
}

func (s *Session) Messages() []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Transcript derives the visible message list for one conversation: every
// message sent by that party, addressed to that party, or authored locally,
// in original append order. Matching tolerates either identifier namespace.
func (s *Session) Transcript(key string) []*domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.doctorByIDLocked(key)
	match := func(id string) bool {
		if id == "" {
			return false
		}
		return id == key || (d != nil && d.Matches(id))
	}

	var out []*domain.Message
	for _, m := range s.messages {
		if m.IsMine || match(m.SenderID) || match(m.ReceiverID) {
			out = append(out, m)
		}
	}
	return out
}

// Activate makes key the active conversation and unconditionally clears its
// unread counter. Returns true when the conversation's history has not been
// loaded yet this session.
func (s *Session) Activate(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = s.canonicalKeyLocked(key)
	s.active = key
	s.unread[key] = 0
	_, ok := s.loaded[key]
	return !ok
}

func (s *Session) ActiveKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) MarkHistoryLoaded(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded[s.canonicalKeyLocked(key)] = struct{}{}
}

func (s *Session) SetUnreadCounts(counts map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread = make(map[string]int, len(counts))
	for k, v := range counts {
		s.unread[s.canonicalKeyLocked(k)] = v
	}
}

func (s *Session) UnreadCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.unread))
	for k, v := range s.unread {
		out[k] = v
	}
	return out
}

func (s *Session) UnreadFor(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[s.canonicalKeyLocked(key)]
}

// SetTyping records a remote typing indicator. Inbound events alone drive
// this map; the remote peer's stop event clears it.
func (s *Session) SetTyping(userID string, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.canonicalKeyLocked(userID)
	if typing {
		s.typing[key] = true
	} else {
		delete(s.typing, key)
	}
}

func (s *Session) IsTyping(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing[s.canonicalKeyLocked(key)]
}
