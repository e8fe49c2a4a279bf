package socket

import (
	"sync"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

type (
	MessageFunc  func(msg domain.Message)
	StatusFunc   func(connected bool)
	PresenceFunc func(userID string, status domain.Presence)
	TypingFunc   func(userID string, typing bool)
	UnreadFunc   func(notice domain.UnreadNotice)
	ErrorFunc    func(reason string)
)

// callbacks is the subscription registry for all inbound event kinds. Each
// On* method returns an unsubscribe closure that removes exactly that
// registration; consumers must call it on teardown so a dead subscriber
// never receives further events.
type callbacks struct {
	cbMu        sync.Mutex
	nextID      int
	messageCBs  map[int]MessageFunc
	sentCBs     map[int]MessageFunc
	statusCBs   map[int]StatusFunc
	presenceCBs map[int]PresenceFunc
	typingCBs   map[int]TypingFunc
	unreadCBs   map[int]UnreadFunc
	errorCBs    map[int]ErrorFunc
}

func (c *callbacks) init() {
	c.messageCBs = make(map[int]MessageFunc)
	c.sentCBs = make(map[int]MessageFunc)
	c.statusCBs = make(map[int]StatusFunc)
	c.presenceCBs = make(map[int]PresenceFunc)
	c.typingCBs = make(map[int]TypingFunc)
	c.unreadCBs = make(map[int]UnreadFunc)
	c.errorCBs = make(map[int]ErrorFunc)
}

// OnMessage registers a callback for inbound chat messages.
func (c *callbacks) OnMessage(fn MessageFunc) func() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextID++
	id := c.nextID
	c.messageCBs[id] = fn
	return func() {
		c.cbMu.Lock()
		delete(c.messageCBs, id)
		c.cbMu.Unlock()
	}
}

// OnMessageSent registers a callback for server send confirmations.
func (c *callbacks) OnMessageSent(fn MessageFunc) func() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextID++
	id := c.nextID
	c.sentCBs[id] = fn
	return func() {
		c.cbMu.Lock()
		delete(c.sentCBs, id)
		c.cbMu.Unlock()
	}
}

// OnConnectionStatus registers a callback for connection state transitions.
func (c *callbacks) OnConnectionStatus(fn StatusFunc) func() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextID++
	id := c.nextID
	c.statusCBs[id] = fn
	return func() {
		c.cbMu.Lock()
		delete(c.statusCBs, id)
		c.cbMu.Unlock()
	}
}

// OnPresence registers a callback for user online/offline changes.
func (c *callbacks) OnPresence(fn PresenceFunc) func() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextID++
	id := c.nextID
	c.presenceCBs[id] = fn
	return func() {
		c.cbMu.Lock()
		delete(c.presenceCBs, id)
		c.cbMu.Unlock()
	}
}

// OnTyping registers a callback for remote typing indicators.
func (c *callbacks) OnTyping(fn TypingFunc) func() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextID++
	id := c.nextID
	c.typingCBs[id] = fn
	return func() {
		c.cbMu.Lock()
		delete(c.typingCBs, id)
		c.cbMu.Unlock()
	}
}

// OnUnread registers a callback for unread-message notices.
func (c *callbacks) OnUnread(fn UnreadFunc) func() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextID++
	id := c.nextID
	c.unreadCBs[id] = fn
	return func() {
		c.cbMu.Lock()
		delete(c.unreadCBs, id)
		c.cbMu.Unlock()
	}
}

// OnMessageError registers a callback for server-side send failures.
func (c *callbacks) OnMessageError(fn ErrorFunc) func() {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextID++
	id := c.nextID
	c.errorCBs[id] = fn
	return func() {
		c.cbMu.Lock()
		delete(c.errorCBs, id)
		c.cbMu.Unlock()
	}
}

func (c *callbacks) notifyMessage(msg domain.Message) {
	c.cbMu.Lock()
	fns := make([]MessageFunc, 0, len(c.messageCBs))
	for _, fn := range c.messageCBs {
		fns = append(fns, fn)
	}
	c.cbMu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (c *callbacks) notifySent(msg domain.Message) {
	c.cbMu.Lock()
	fns := make([]MessageFunc, 0, len(c.sentCBs))
	for _, fn := range c.sentCBs {
		fns = append(fns, fn)
	}
	c.cbMu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (c *callbacks) notifyStatus(connected bool) {
	c.cbMu.Lock()
	fns := make([]StatusFunc, 0, len(c.statusCBs))
	for _, fn := range c.statusCBs {
		fns = append(fns, fn)
	}
	c.cbMu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}

func (c *callbacks) notifyPresence(userID string, status domain.Presence) {
	c.cbMu.Lock()
	fns := make([]PresenceFunc, 0, len(c.presenceCBs))
	for _, fn := range c.presenceCBs {
		fns = append(fns, fn)
	}
	c.cbMu.Unlock()
	for _, fn := range fns {
		fn(userID, status)
	}
}

func (c *callbacks) notifyTyping(userID string, typing bool) {
	c.cbMu.Lock()
	fns := make([]TypingFunc, 0, len(c.typingCBs))
	for _, fn := range c.typingCBs {
		fns = append(fns, fn)
	}
	c.cbMu.Unlock()
	for _, fn := range fns {
		fn(userID, typing)
	}
}

func (c *callbacks) notifyUnread(notice domain.UnreadNotice) {
	c.cbMu.Lock()
	fns := make([]UnreadFunc, 0, len(c.unreadCBs))
	for _, fn := range c.unreadCBs {
		fns = append(fns, fn)
	}
	c.cbMu.Unlock()
	for _, fn := range fns {
		fn(notice)
	}
}

func (c *callbacks) notifyError(reason string) {
	c.cbMu.Lock()
	fns := make([]ErrorFunc, 0, len(c.errorCBs))
	for _, fn := range c.errorCBs {
		fns = append(fns, fn)
	}
	c.cbMu.Unlock()
	for _, fn := range fns {
		fn(reason)
	}
}
