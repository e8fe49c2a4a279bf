package socket

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

// Events consumed from the server.
const (
	evNewMessage   = "new_message"
	evMessageSent  = "message_sent"
	evUserStatus   = "user_status"
	evUserTyping   = "user_typing"
	evUnread       = "unread_message"
	evMessageError = "message_error"
	evConnectError = "connect_error"
	evDisconnect   = "disconnect"
)

// Events emitted to the server.
const (
	evSendMessage = "send_message"
	evTyping      = "typing"
)

// frame is the envelope for every message on the push channel.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	buf, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", event, err)
	}
	return buf, nil
}

type sendMessagePayload struct {
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message"`
}

type typingEmitPayload struct {
	ReceiverID string `json:"receiver_id"`
	IsTyping   bool   `json:"is_typing"`
}

type messagePayload struct {
	ID         domain.FlexID `json:"id"`
	SenderID   domain.FlexID `json:"sender_id"`
	ReceiverID domain.FlexID `json:"receiver_id"`
	SenderName string        `json:"sender_name"`
	Message    string        `json:"message"`
	Timestamp  string        `json:"timestamp"`
	IsMine     bool          `json:"is_mine"`
}

func (p *messagePayload) toDomain() domain.Message {
	return domain.Message{
		ID:         p.ID.String(),
		SenderID:   p.SenderID.String(),
		ReceiverID: p.ReceiverID.String(),
		SenderName: p.SenderName,
		Body:       p.Message,
		Timestamp:  parseTimestamp(p.Timestamp),
		IsMine:     p.IsMine,
	}
}

type userStatusPayload struct {
	UserID domain.FlexID `json:"user_id"`
	Status string        `json:"status"`
}

type userTypingPayload struct {
	UserID   domain.FlexID `json:"user_id"`
	IsTyping bool          `json:"is_typing"`
}

type unreadPayload struct {
	SenderID       domain.FlexID `json:"sender_id"`
	SenderName     string        `json:"sender_name"`
	MessagePreview string        `json:"message_preview"`
	Timestamp      string        `json:"timestamp"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func (c *Client) dispatch(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	switch f.Event {
	case evNewMessage:
		var p messagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Str("event", f.Event).Msg("dropping malformed payload")
			return
		}
		c.notifyMessage(p.toDomain())

	case evMessageSent:
		var p messagePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Str("event", f.Event).Msg("dropping malformed payload")
			return
		}
		c.notifySent(p.toDomain())

	case evUserStatus:
		var p userStatusPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Str("event", f.Event).Msg("dropping malformed payload")
			return
		}
		status := domain.PresenceOffline
		if p.Status == string(domain.PresenceOnline) {
			status = domain.PresenceOnline
		}
		c.notifyPresence(p.UserID.String(), status)

	case evUserTyping:
		var p userTypingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Str("event", f.Event).Msg("dropping malformed payload")
			return
		}
		c.notifyTyping(p.UserID.String(), p.IsTyping)

	case evUnread:
		var p unreadPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Str("event", f.Event).Msg("dropping malformed payload")
			return
		}
		c.notifyUnread(domain.UnreadNotice{
			SenderID:   p.SenderID.String(),
			SenderName: p.SenderName,
			Preview:    p.MessagePreview,
			Timestamp:  parseTimestamp(p.Timestamp),
		})

	case evMessageError:
		var p errorPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			c.log.Warn().Err(err).Str("event", f.Event).Msg("dropping malformed payload")
			return
		}
		c.log.Warn().Str("reason", p.Error).Msg("server rejected message")
		c.notifyError(p.Error)

	case evConnectError:
		var p errorPayload
		_ = json.Unmarshal(f.Data, &p)
		c.log.Warn().Str("reason", p.Error).Msg("server reported connect error")
		c.notifyStatus(false)

	case evDisconnect:
		// Server-directed close: tear down without auto-reconnect, as a
		// deliberate disconnect would.
		c.log.Info().Msg("server requested disconnect")
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}

	default:
		c.log.Debug().Str("event", f.Event).Msg("ignoring unknown event")
	}
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
