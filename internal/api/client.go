// Package api is the request/response client for the chat backend: the send
// fallback when the push channel is down, plus the directory, history and
// unread-count fetches done at session start.
package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	rest *resty.Client
	log  zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		rest.SetAuthToken(cfg.Token)
	}

	return &Client{rest: rest, log: log}
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message"`
}

type sendMessageResponse struct {
	ID         domain.FlexID `json:"id"`
	SenderID   domain.FlexID `json:"sender_id"`
	ReceiverID domain.FlexID `json:"receiver_id"`
	Message    string        `json:"message"`
	Timestamp  string        `json:"timestamp"`
}

type wireMessage struct {
	ID         domain.FlexID `json:"id"`
	SenderID   domain.FlexID `json:"sender_id"`
	ReceiverID domain.FlexID `json:"receiver_id"`
	SenderName string        `json:"sender_name"`
	Message    string        `json:"message"`
	Timestamp  string        `json:"timestamp"`
	IsMine     bool          `json:"is_mine"`
}

type messagesResponse struct {
	Messages []wireMessage `json:"messages"`
}

type wireDoctor struct {
	ID         domain.FlexID `json:"id"`
	SupabaseID string        `json:"supabase_id"`
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName1"`
	Email      string        `json:"email"`
	Specialty  string        `json:"speciality"`
}

type doctorsResponse struct {
	Doctors []wireDoctor `json:"doctors"`
}

type unreadCountsResponse struct {
	UnreadCounts map[string]int `json:"unread_counts"`
}

// SendMessage delivers one message over HTTP and returns the confirmed
// record. Used when the push channel is not live.
func (c *Client) SendMessage(ctx context.Context, receiverID, body string) (*domain.Message, error) {
	var out sendMessageResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{ReceiverID: receiverID, Message: body}).
		SetResult(&out).
		Post("/send-message")
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("send message: backend returned %s", resp.Status())
	}

	return &domain.Message{
		ID:         out.ID.String(),
		SenderID:   out.SenderID.String(),
		ReceiverID: out.ReceiverID.String(),
		SenderName: "me",
		Body:       out.Message,
		Timestamp:  parseTimestamp(out.Timestamp),
		IsMine:     true,
	}, nil
}

// GetMessages fetches the stored history for one conversation.
func (c *Client) GetMessages(ctx context.Context, conversationKey string) ([]domain.Message, error) {
	var out messagesResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/get-messages-uuid/" + url.PathEscape(conversationKey))
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get messages: backend returned %s", resp.Status())
	}

	messages := make([]domain.Message, 0, len(out.Messages))
	for _, w := range out.Messages {
		messages = append(messages, domain.Message{
			ID:         w.ID.String(),
			SenderID:   w.SenderID.String(),
			ReceiverID: w.ReceiverID.String(),
			SenderName: w.SenderName,
			Body:       w.Message,
			Timestamp:  parseTimestamp(w.Timestamp),
			IsMine:     w.IsMine,
		})
	}
	return messages, nil
}

// GetDoctors fetches the chat directory. Presence starts offline and is
// corrected by push events.
func (c *Client) GetDoctors(ctx context.Context) ([]*domain.Doctor, error) {
	var out doctorsResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/get-chat-doctors")
	if err != nil {
		return nil, fmt.Errorf("get doctors: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get doctors: backend returned %s", resp.Status())
	}

	doctors := make([]*domain.Doctor, 0, len(out.Doctors))
	for _, w := range out.Doctors {
		doctors = append(doctors, &domain.Doctor{
			ID:        w.ID.String(),
			UID:       w.SupabaseID,
			Name:      strings.TrimSpace(w.FirstName + " " + w.LastName),
			Email:     w.Email,
			Specialty: w.Specialty,
			Status:    domain.PresenceOffline,
		})
	}
	return doctors, nil
}

// GetUnreadCounts fetches the per-conversation unread counters accumulated
// while this client was away.
func (c *Client) GetUnreadCounts(ctx context.Context) (map[string]int, error) {
	var out unreadCountsResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/get-unread-counts")
	if err != nil {
		return nil, fmt.Errorf("get unread counts: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get unread counts: backend returned %s", resp.Status())
	}
	if out.UnreadCounts == nil {
		return map[string]int{}, nil
	}
	return out.UnreadCounts, nil
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
