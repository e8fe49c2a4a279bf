package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
	"github.com/medsc/clinic-chat-bridge/internal/service"
)

// CommandHandler handles CLI commands
type CommandHandler struct {
	chatSvc *service.ChatService
	bus     domain.EventBus
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(chatSvc *service.ChatService, bus domain.EventBus) *CommandHandler {
	return &CommandHandler{
		chatSvc: chatSvc,
		bus:     bus,
	}
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string (e.g., "/send 42 Hello")
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	return &Command{Name: name, Args: args}, nil
}

// Execute executes a command and returns the result
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus()
	case "connect", "c":
		return h.cmdConnect(ctx)
	case "disconnect", "d":
		return h.cmdDisconnect()
	case "doctors", "ls":
		return h.cmdDoctors()
	case "open", "o":
		return h.cmdOpen(ctx, cmd.Args)
	case "messages", "msg":
		return h.cmdMessages(ctx, cmd.Args)
	case "send":
		return h.cmdSend(ctx, cmd.Args)
	case "typing":
		return h.cmdTyping(cmd.Args)
	case "unread":
		return h.cmdUnread()
	case "search":
		return h.cmdSearch(ctx, cmd.Args)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Connection:
  /status, /s              Show push channel status
  /connect, /c             Connect the push channel
  /disconnect, /d          Disconnect the push channel (HTTP fallback stays available)

Conversations:
  /doctors, /ls            List doctors with presence and unread counts
  /open, /o <doctor_id>    Open a conversation and show its transcript
  /messages, /msg <doctor_id> [limit]  Show archived messages for a conversation
  /send <doctor_id> <text> Send a text message
  /typing <doctor_id>      Send a typing indicator (auto-stops after a pause)
  /unread                  Show unread counts
  /search <query> [limit]  Search archived messages

Other:
  /help, /h                Show this help
  /quit, /exit, /q         Exit the CLI`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() (interface{}, error) {
	connected := h.chatSvc.IsLive()

	status := "push channel down (HTTP fallback active)"
	if connected {
		status = "push channel connected"
	}

	return ConnectionStatus{
		Connected: connected,
		Status:    status,
	}, nil
}

func (h *CommandHandler) cmdConnect(ctx context.Context) (interface{}, error) {
	if err := h.chatSvc.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return map[string]string{"message": "Push channel connected"}, nil
}

func (h *CommandHandler) cmdDisconnect() (interface{}, error) {
	h.chatSvc.Disconnect()
	return map[string]string{"message": "Push channel disconnected"}, nil
}

func (h *CommandHandler) cmdDoctors() (interface{}, error) {
	doctors := h.chatSvc.Doctors()
	unread := h.chatSvc.UnreadCounts()

	result := make([]DoctorInfo, len(doctors))
	for i, d := range doctors {
		result[i] = DoctorInfo{
			ID:          d.Key(),
			Name:        d.Name,
			Specialty:   d.Specialty,
			Status:      string(d.Status),
			UnreadCount: unread[d.Key()],
			Typing:      h.chatSvc.IsTyping(d.Key()),
		}
	}

	return map[string]interface{}{"doctors": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdOpen(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /open <doctor_id>")
	}

	messages, err := h.chatSvc.OpenConversation(ctx, args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = messageInfo(msg)
	}

	return map[string]interface{}{
		"doctor_id": args[0],
		"messages":  result,
		"count":     len(result),
	}, nil
}

func (h *CommandHandler) cmdMessages(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /messages <doctor_id> [limit]")
	}

	limit := 50
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[1]); err == nil && l > 0 {
			limit = l
		}
	}

	messages, err := h.chatSvc.ArchivedMessages(ctx, args[0], limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = messageInfo(msg)
	}

	return map[string]interface{}{"messages": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdSend(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /send <doctor_id> <text>")
	}

	text := strings.Join(args[1:], " ")

	msg, err := h.chatSvc.Send(ctx, args[0], text)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return messageInfo(msg), nil
}

func (h *CommandHandler) cmdTyping(args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /typing <doctor_id>")
	}

	h.chatSvc.StartTyping(args[0])
	return map[string]string{"message": "Typing indicator sent"}, nil
}

func (h *CommandHandler) cmdUnread() (interface{}, error) {
	counts := h.chatSvc.UnreadCounts()

	total := 0
	for _, n := range counts {
		total += n
	}

	return map[string]interface{}{"counts": counts, "total": total}, nil
}

func (h *CommandHandler) cmdSearch(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /search <query> [limit]")
	}

	query := args[0]
	limit := 20

	// Check if last arg is a number (limit)
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[len(args)-1]); err == nil && l > 0 {
			limit = l
			query = strings.Join(args[:len(args)-1], " ")
		} else {
			query = strings.Join(args, " ")
		}
	}

	messages, err := h.chatSvc.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = messageInfo(msg)
	}

	return map[string]interface{}{
		"query":    query,
		"messages": result,
		"count":    len(result),
	}, nil
}

func messageInfo(msg *domain.Message) MessageInfo {
	return MessageInfo{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		Timestamp:  msg.Timestamp,
		IsMine:     msg.IsMine,
		Pending:    msg.Pending,
	}
}

// SubscribeEvents subscribes to chat events
func (h *CommandHandler) SubscribeEvents(eventTypes []domain.EventType) <-chan Event {
	if len(eventTypes) == 0 {
		eventTypes = []domain.EventType{
			domain.EventTypeMessageReceived,
			domain.EventTypeMessageSent,
			domain.EventTypeMessageError,
			domain.EventTypeConnectionStatus,
			domain.EventTypePresenceUpdated,
			domain.EventTypeTypingUpdated,
			domain.EventTypeUnreadNotice,
		}
	}

	domainChan := h.bus.Subscribe(eventTypes)

	resultChan := make(chan Event)

	go func() {
		defer close(resultChan)
		for evt := range domainChan {
			var eventType string
			var data interface{}

			switch e := evt.(type) {
			case domain.MessageReceivedEvent:
				eventType = "message_received"
				data = messageInfo(e.Message)
			case domain.MessageSentEvent:
				eventType = "message_sent"
				data = messageInfo(e.Message)
			case domain.MessageErrorEvent:
				eventType = "message_error"
				data = map[string]interface{}{"reason": e.Reason}
			case domain.ConnectionStatusEvent:
				eventType = "connection_status"
				data = map[string]interface{}{
					"connected": e.Connected,
					"reason":    e.Reason,
				}
			case domain.PresenceUpdatedEvent:
				eventType = "presence_updated"
				data = map[string]interface{}{
					"user_id": e.UserID,
					"status":  string(e.Status),
				}
			case domain.TypingUpdatedEvent:
				eventType = "typing_updated"
				data = map[string]interface{}{
					"user_id": e.UserID,
					"typing":  e.Typing,
				}
			case domain.UnreadNoticeEvent:
				eventType = "unread_notice"
				data = map[string]interface{}{
					"sender_id":   e.Notice.SenderID,
					"sender_name": e.Notice.SenderName,
					"preview":     e.Notice.Preview,
				}
			default:
				continue
			}

			resultChan <- Event{
				Type:      eventType,
				Timestamp: time.Now(),
				Data:      data,
			}
		}
	}()

	return resultChan
}
