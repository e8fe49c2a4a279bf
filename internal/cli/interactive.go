package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

// InteractiveCLI handles interactive command-line interface
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

// NewInteractiveCLI creates a new interactive CLI
func NewInteractiveCLI(handler *CommandHandler) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the interactive CLI loop
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()

	// Subscribe to events in background
	eventChan := cli.handler.SubscribeEvents([]domain.EventType{
		domain.EventTypeMessageReceived,
		domain.EventTypeConnectionStatus,
		domain.EventTypeUnreadNotice,
		domain.EventTypeTypingUpdated,
		domain.EventTypeMessageError,
	})

	go cli.handleEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if err := cli.processCommand(ctx, line); err != nil {
				if err.Error() == "quit" {
					cli.println("Goodbye!")
					return nil
				}
				cli.printf("Error: %s\n", err)
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  Clinic Chat Bridge CLI")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("")

	// Show current status
	status, _ := cli.handler.cmdStatus()
	if s, ok := status.(ConnectionStatus); ok {
		cli.printf("Status: %s\n", s.Status)
	}
}

func (cli *InteractiveCLI) processCommand(ctx context.Context, input string) error {
	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	// Check for quit command
	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return fmt.Errorf("quit")
	}

	// Format and display result
	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(ConnectionStatus); ok {
			cli.printf("Connection Status: %s\n", s.Status)
			cli.printf("  Connected: %v\n", s.Connected)
		}

	case "doctors", "ls":
		if m, ok := result.(map[string]interface{}); ok {
			doctors, _ := m["doctors"].([]DoctorInfo)
			cli.printf("Found %d doctor(s):\n\n", len(doctors))
			for i, d := range doctors {
				unread := ""
				if d.UnreadCount > 0 {
					unread = fmt.Sprintf(" [%d unread]", d.UnreadCount)
				}
				typing := ""
				if d.Typing {
					typing = " (typing...)"
				}
				cli.printf("%d. %s (%s)%s%s\n", i+1, d.Name, d.Status, unread, typing)
				cli.printf("   ID: %s\n", d.ID)
				if d.Specialty != "" {
					cli.printf("   Specialty: %s\n", d.Specialty)
				}
			}
		}

	case "open", "o", "messages", "msg":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Found %d message(s):\n\n", len(messages))
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
				timestamp := msg.Timestamp.Format("2006-01-02 15:04")
				cli.printf("[%s] %s%s:\n", timestamp, sender, pending)
				cli.printf("  %s\n", msg.Body)
				cli.printf("  ID: %s\n\n", msg.ID)
			}
		}

	case "send":
		if msg, ok := result.(MessageInfo); ok {
			cli.printf("Message sent!\n")
			cli.printf("  ID: %s\n", msg.ID)
			cli.printf("  Time: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
		}

	case "unread":
		if m, ok := result.(map[string]interface{}); ok {
			counts, _ := m["counts"].(map[string]int)
			total, _ := m["total"].(int)
			cli.printf("Unread total: %d\n", total)
			for key, n := range counts {
				if n > 0 {
					cli.printf("  %s: %d\n", key, n)
				}
			}
		}

	case "search":
		if m, ok := result.(map[string]interface{}); ok {
			query, _ := m["query"].(string)
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Search results for '%s' (%d found):\n\n", query, len(messages))
			for i, msg := range messages {
				sender := "Me"
				if !msg.IsMine {
					sender = msg.SenderName
					if sender == "" {
						sender = msg.SenderID
					}
				}
				cli.printf("%d. [%s] %s:\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), sender)
				text := msg.Body
				if len(text) > 80 {
					text = text[:80] + "..."
				}
				cli.printf("   %s\n", text)
				cli.printf("   ID: %s\n\n", msg.ID)
			}
		}

	default:
		// Generic JSON output for other commands
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		// Pretty print JSON
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case "message_received":
			if msg, ok := event.Data.(MessageInfo); ok {
				if msg.IsMine {
					continue
				}
				sender := msg.SenderName
				if sender == "" {
					sender = msg.SenderID
				}
				cli.printf("\n[New Message] From %s:\n", sender)
				cli.printf("  %s\n", msg.Body)
				cli.print("> ")
			}
		case "connection_status":
			if data, ok := event.Data.(map[string]interface{}); ok {
				connected, _ := data["connected"].(bool)
				if connected {
					cli.println("\n[Push channel connected]")
				} else {
					reason, _ := data["reason"].(string)
					cli.printf("\n[Push channel down: %s]\n", reason)
				}
				cli.print("> ")
			}
		case "unread_notice":
			if data, ok := event.Data.(map[string]interface{}); ok {
				sender, _ := data["sender_name"].(string)
				preview, _ := data["preview"].(string)
				cli.printf("\n[Unread] %s: %s\n", sender, preview)
				cli.print("> ")
			}
		case "typing_updated":
			if data, ok := event.Data.(map[string]interface{}); ok {
				typing, _ := data["typing"].(bool)
				if typing {
					userID, _ := data["user_id"].(string)
					cli.printf("\n[%s is typing...]\n", userID)
					cli.print("> ")
				}
			}
		case "message_error":
			if data, ok := event.Data.(map[string]interface{}); ok {
				reason, _ := data["reason"].(string)
				cli.printf("\n[Send failed: %s]\n", reason)
				cli.print("> ")
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
