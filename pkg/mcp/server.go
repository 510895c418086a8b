package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/device/schema"
)

// Server exposes the daemon's publisher and peer directory as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	publisher device.Publisher
	directory device.Directory
	validator *schema.Validator
}

// NewServer creates a new MCP server over the given publisher and directory
func NewServer(publisher device.Publisher, directory device.Directory, validator *schema.Validator) *Server {
	s := &Server{
		publisher: publisher,
		directory: directory,
		validator: validator,
	}

	s.mcpServer = server.NewMCPServer(
		"upnpd",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
