package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const tempIDPrefix = "temp_"

// Message is one chat message as the bridge sees it. Entries are append-only:
// the only mutation after creation is identity reconciliation, where a
// pending optimistic entry is swapped for its server-confirmed record.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	SenderName string
	Body       string
	Timestamp  time.Time
	IsMine     bool
	Pending    bool
}

// NewOutgoing builds the optimistic local echo for a message handed to the
// push transport. It carries a temporary identity until the server-confirmed
// record supersedes it.
func NewOutgoing(receiverID, body string) *Message {
	return &Message{
		ID:         TempID(),
		SenderID:   "me",
		ReceiverID: receiverID,
		SenderName: "me",
		Body:       body,
		Timestamp:  time.Now(),
		IsMine:     true,
		Pending:    true,
	}
}

// TempID returns a client-local message identity derived from the current
// timestamp, matching the temp_<unix-ms> scheme the backend never assigns.
func TempID() string {
	return tempIDPrefix + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func (m *Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, tempIDPrefix)
}

// ConversationKey is the identity of the other party: the receiver for
// locally authored messages, the sender otherwise.
func (m *Message) ConversationKey() string {
	if m.IsMine {
		return m.ReceiverID
	}
	return m.SenderID
}

// UnreadNotice is the server's heads-up for a message delivered to a
// conversation the user does not have open.
type UnreadNotice struct {
	SenderID   string
	SenderName string
	Preview    string
	Timestamp  time.Time
}

// FlexID decodes identifiers the backend emits as either JSON strings or
// bare numbers: legacy rows carry numeric ids, newer ones UUIDs.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexID(v)
		return nil
	}
	*f = FlexID(s)
	return nil
}

func (f FlexID) String() string { return string(f) }
