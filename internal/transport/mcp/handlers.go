package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) handleListDoctors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doctors := s.chatSvc.Doctors()
	if len(doctors) == 0 {
		return mcp.NewToolResultText("No doctors found. The directory may still be loading, or the backend is unreachable."), nil
	}

	unread := s.chatSvc.UnreadCounts()

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d doctor(s):\n\n", len(doctors)))

	for i, d := range doctors {
		result.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, d.Name, d.Status))
		result.WriteString(fmt.Sprintf("   ID: %s\n", d.Key()))
		if d.Specialty != "" {
			result.WriteString(fmt.Sprintf("   Specialty: %s\n", d.Specialty))
		}
		if n := unread[d.Key()]; n > 0 {
			result.WriteString(fmt.Sprintf("   Unread: %d message(s)\n", n))
		}
		if s.chatSvc.IsTyping(d.Key()) {
			result.WriteString("   Typing...\n")
		}
		result.WriteString("\n")
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleGetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doctorID := request.GetString("doctor_id", "")
	if doctorID == "" {
		return mcp.NewToolResultError("doctor_id is required"), nil
	}

	messages, err := s.chatSvc.OpenConversation(ctx, doctorID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get messages: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages in conversation with %s yet", doctorID)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Conversation with %s (%d message(s)):\n\n", doctorID, len(messages)))

	for _, msg := range messages {
		sender := "Me"
		if !msg.IsMine {
			sender = msg.SenderName
			if sender == "" {
				sender = msg.SenderID
			}
		}

		pending := ""
		if msg.Pending {
			pending = " [sending]"
		}

		result.WriteString(fmt.Sprintf("[%s] %s%s:\n", msg.Timestamp.Format("2006-01-02 15:04"), sender, pending))
		result.WriteString(fmt.Sprintf("  %s\n", msg.Body))
		result.WriteString(fmt.Sprintf("  ID: %s\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doctorID := request.GetString("doctor_id", "")
	if doctorID == "" {
		return mcp.NewToolResultError("doctor_id is required"), nil
	}

	text := request.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	msg, err := s.chatSvc.Send(ctx, doctorID, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Message sent!\nID: %s\nTimestamp: %s\nTo: %s",
		msg.ID, msg.Timestamp.Format("2006-01-02 15:04:05"), doctorID)), nil
}

func (s *Server) handleUnreadCounts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts := s.chatSvc.UnreadCounts()
	if len(counts) == 0 {
		return mcp.NewToolResultText("No unread messages."), nil
	}

	var result strings.Builder
	result.WriteString("Unread messages per conversation:\n\n")
	for key, n := range counts {
		if n == 0 {
			continue
		}
		name := key
		for _, d := range s.chatSvc.Doctors() {
			if d.Matches(key) {
				name = d.Name
				break
			}
		}
		result.WriteString(fmt.Sprintf("  %s: %d\n", name, n))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleSearchMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}

	messages, err := s.chatSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found matching '%s'", query)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Search results for '%s' (%d found):\n\n", query, len(messages)))

	for i, msg := range messages {
		sender := "Me"
		if !msg.IsMine {
			sender = msg.SenderName
			if sender == "" {
				sender = msg.SenderID
			}
		}

		text := msg.Body
		if len(text) > 100 {
			text = text[:100] + "..."
		}

		result.WriteString(fmt.Sprintf("%d. [%s] %s:\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), sender))
		result.WriteString(fmt.Sprintf("   %s\n", text))
		result.WriteString(fmt.Sprintf("   ID: %s\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleConnectionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	live := s.chatSvc.IsLive()

	status := "Push channel down (HTTP fallback active)"
	if live {
		status = "Push channel connected"
	}

	return mcp.NewToolResultText(fmt.Sprintf("Status: %s\nConnected: %v", status, live)), nil
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.chatSvc.Connect(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to connect: %v", err)), nil
	}
	return mcp.NewToolResultText("Push channel connected"), nil
}

func (s *Server) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.chatSvc.Disconnect()
	return mcp.NewToolResultText("Push channel disconnected. Messages still go out over HTTP."), nil
}
