package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Token: "tok-123"}, zerolog.Nop())
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/send-message", r.URL.Path)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "a1b2c3", body["receiver_id"])
		require.Equal(t, "hola", body["message"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":314,"sender_id":"me-uuid","receiver_id":"a1b2c3","message":"hola","timestamp":"2026-08-30T10:00:00Z"}`))
	})

	msg, err := client.SendMessage(context.Background(), "a1b2c3", "hola")
	require.NoError(t, err)
	require.Equal(t, "314", msg.ID)
	require.Equal(t, "a1b2c3", msg.ReceiverID)
	require.Equal(t, "hola", msg.Body)
	require.True(t, msg.IsMine)
	require.False(t, msg.Timestamp.IsZero())
}

func TestSendMessageBackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.SendMessage(context.Background(), "a1b2c3", "hola")
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestGetMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/get-messages-uuid/a1b2c3", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// Identifier fields arrive as numbers or strings depending on
		// which backend table they came from.
		w.Write([]byte(`{"messages":[
			{"id":1,"sender_id":7,"sender_name":"Ana Ruiz","message":"hola","timestamp":"2026-08-30 09:00:00","is_mine":false},
			{"id":"2","sender_id":"me-uuid","receiver_id":7,"message":"buenas","timestamp":"2026-08-30T09:01:00Z","is_mine":true}
		]}`))
	})

	messages, err := client.GetMessages(context.Background(), "a1b2c3")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "1", messages[0].ID)
	require.Equal(t, "7", messages[0].SenderID)
	require.False(t, messages[0].Timestamp.IsZero())
	require.Equal(t, "2", messages[1].ID)
	require.True(t, messages[1].IsMine)
}

func TestGetDoctors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/get-chat-doctors", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"doctors":[
			{"id":7,"supabase_id":"a1b2c3","firstName":"Ana","lastName1":"Ruiz","email":"ana@clinic.test","speciality":"Cardiology"},
			{"id":12,"firstName":"Luis","lastName1":"Vega","speciality":"Dermatology"}
		]}`))
	})

	doctors, err := client.GetDoctors(context.Background())
	require.NoError(t, err)
	require.Len(t, doctors, 2)

	require.Equal(t, "7", doctors[0].ID)
	require.Equal(t, "a1b2c3", doctors[0].UID)
	require.Equal(t, "Ana Ruiz", doctors[0].Name)
	require.Equal(t, "a1b2c3", doctors[0].Key())
	require.Equal(t, domain.PresenceOffline, doctors[0].Status)

	// No account uuid: the legacy id is the canonical key.
	require.Equal(t, "12", doctors[1].Key())
}

func TestGetUnreadCounts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/get-unread-counts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"unread_counts":{"a1b2c3":3,"12":1}}`))
	})

	counts, err := client.GetUnreadCounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a1b2c3": 3, "12": 1}, counts)
}

func TestGetUnreadCountsEmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	counts, err := client.GetUnreadCounts(context.Background())
	require.NoError(t, err)
	require.NotNil(t, counts)
	require.Empty(t, counts)
}
