package domain

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestFlexIDDecodesStringsAndNumbers(t *testing.T) {
	var payload struct {
		A FlexID `json:"a"`
		B FlexID `json:"b"`
		C FlexID `json:"c"`
		D FlexID `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a":"a1b2c3","b":42,"c":null,"d":"7"}`), &payload)
	require.NoError(t, err)
	require.Equal(t, "a1b2c3", payload.A.String())
	require.Equal(t, "42", payload.B.String())
	require.Equal(t, "", payload.C.String())
	require.Equal(t, "7", payload.D.String())
}

func TestNewOutgoing(t *testing.T) {
	m := NewOutgoing("a1b2c3", "hola")
	require.True(t, m.IsMine)
	require.True(t, m.Pending)
	require.True(t, m.IsTemp())
	require.Equal(t, "a1b2c3", m.ReceiverID)
	require.False(t, m.Timestamp.IsZero())
}

func TestConversationKey(t *testing.T) {
	mine := &Message{IsMine: true, SenderID: "me", ReceiverID: "a1b2c3"}
	require.Equal(t, "a1b2c3", mine.ConversationKey())

	theirs := &Message{SenderID: "7", ReceiverID: "me-uuid"}
	require.Equal(t, "7", theirs.ConversationKey())
}

func TestDoctorKeyAndMatches(t *testing.T) {
	withUID := &Doctor{ID: "7", UID: "a1b2c3"}
	require.Equal(t, "a1b2c3", withUID.Key())
	require.True(t, withUID.Matches("7"))
	require.True(t, withUID.Matches("a1b2c3"))
	require.False(t, withUID.Matches("12"))
	require.False(t, withUID.Matches(""))

	legacyOnly := &Doctor{ID: "12"}
	require.Equal(t, "12", legacyOnly.Key())
	require.True(t, legacyOnly.Matches("12"))
}
