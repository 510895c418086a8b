package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check the health of the UPnP daemon and whether its SSDP engine is running"),
		),
		s.handleGetHealth,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_registrations",
			mcp.WithDescription("List the SSDP identities this host advertises (root device, UDNs, device and service types)"),
		),
		s.handleListRegistrations,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Multicast an SSDP M-SEARCH and return the peers that answered"),
			mcp.WithString("target",
				mcp.Description("Search target, e.g. ssdp:all, upnp:rootdevice or a device/service type (default ssdp:all)"),
			),
			mcp.WithNumber("timeout_seconds",
				mcp.Description("How long to collect answers, 1-30 seconds (default 3)"),
			),
		),
		s.handleSearch,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_peers",
			mcp.WithDescription("List UPnP peers seen on the network whose announcements have not expired"),
		),
		s.handleListPeers,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_services",
			mcp.WithDescription("List the published services with their evented variables and subscriptions"),
		),
		s.handleListServices,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("notify_subscribers",
			mcp.WithDescription("Update evented variables of a service and send NOTIFY to its subscribers"),
			mcp.WithString("service_id",
				mcp.Required(),
				mcp.Description("serviceId (e.g. urn:upnp-org:serviceId:SwitchPower) or udn::serviceId key"),
			),
			mcp.WithObject("variables",
				mcp.Required(),
				mcp.Description("Variable names mapped to string values (e.g. {\"Status\": \"1\"})"),
			),
		),
		s.handleNotifySubscribers,
	)
}
