package cli

import "time"

// Mode represents the CLI operation mode
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeHeadless    Mode = "headless"
)

// Request represents a JSON request in headless mode
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a JSON response in headless mode
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event represents a real-time event in headless mode
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// DoctorInfo represents directory information for responses
type DoctorInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Specialty   string `json:"specialty,omitempty"`
	Status      string `json:"status"`
	UnreadCount int    `json:"unread_count"`
	Typing      bool   `json:"typing,omitempty"`
}

// MessageInfo represents message information for responses
type MessageInfo struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
	IsMine     bool      `json:"is_mine"`
	Pending    bool      `json:"pending,omitempty"`
}

// ConnectionStatus represents connection status for responses
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Status    string `json:"status"`
}
