package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/medsc/clinic-chat-bridge/internal/service"
)

type ServerConfig struct {
	Address string
}

type Server struct {
	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server
	chatSvc    *service.ChatService
	config     ServerConfig
}

func NewServer(chatSvc *service.ChatService, config ServerConfig) *Server {
	s := &Server{
		chatSvc: chatSvc,
		config:  config,
	}

	s.mcpServer = server.NewMCPServer(
		"clinic-chat-bridge",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithKeepAliveInterval(30*time.Second),
	)

	return s
}

func (s *Server) registerTools() {
	// Doctor directory tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_list_doctors",
			mcp.WithDescription("List the clinic's doctors with presence and unread message counts"),
		),
		s.handleListDoctors,
	)

	// Get messages tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_get_messages",
			mcp.WithDescription("Open a conversation with a doctor and return its transcript. Resets the unread counter for that conversation."),
			mcp.WithString("doctor_id",
				mcp.Required(),
				mcp.Description("Doctor identifier (account UUID or legacy numeric ID)"),
			),
		),
		s.handleGetMessages,
	)

	// Send message tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_send_message",
			mcp.WithDescription("Send a text message to a doctor"),
			mcp.WithString("doctor_id",
				mcp.Required(),
				mcp.Description("Doctor identifier to send the message to"),
			),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Message text to send"),
			),
		),
		s.handleSendMessage,
	)

	// Unread counts tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_unread_counts",
			mcp.WithDescription("Get per-conversation unread message counts"),
		),
		s.handleUnreadCounts,
	)

	// Search messages tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_search_messages",
			mcp.WithDescription("Search archived messages across all conversations by text content"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query text"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum results to return (default 20, max 100)"),
			),
		),
		s.handleSearchMessages,
	)

	// Connection status tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_connection_status",
			mcp.WithDescription("Get the push channel connection status"),
		),
		s.handleConnectionStatus,
	)

	// Connect tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_connect",
			mcp.WithDescription("Connect the push channel to the chat backend"),
		),
		s.handleConnect,
	)

	// Disconnect tool
	s.mcpServer.AddTool(
		mcp.NewTool("chat_disconnect",
			mcp.WithDescription("Disconnect the push channel. Messages still go out over HTTP."),
		),
		s.handleDisconnect,
	)
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.Handle("/sse", s.sseServer.SSEHandler())
	mux.Handle("/message", s.sseServer.MessageHandler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: mux,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
