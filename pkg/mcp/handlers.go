package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/device/schema"
	"github.com/urmzd/upnpd/pkg/ssdp"
	"github.com/urmzd/upnpd/pkg/upnp"
)

const defaultSearchTimeout = 3 * time.Second

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	discovery := "disconnected"
	if s.directory.IsConnected() {
		discovery = "connected"
	}

	status := "healthy"
	if discovery != "connected" {
		status = "degraded"
	}

	out := GetHealthOutput{
		Status:        status,
		Discovery:     discovery,
		Registrations: len(s.publisher.Registrations()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListRegistrations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	regs := s.publisher.Registrations()
	out := ListRegistrationsOutput{Registrations: regs, Count: len(regs)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	payload := map[string]any{}
	for _, key := range []string{"target", "timeout_seconds"} {
		if v, ok := args[key]; ok && v != nil {
			payload[key] = v
		}
	}
	if err := s.validate(schema.SearchSchema, payload); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation error: %s", err)), nil
	}

	target := ssdp.TargetAll
	if t, ok := payload["target"].(string); ok {
		target = t
	}
	timeout := defaultSearchTimeout
	if sec, ok := payload["timeout_seconds"].(float64); ok {
		timeout = time.Duration(sec * float64(time.Second))
	}

	peers, err := s.directory.Search(ctx, target, timeout)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %s", err)), nil
	}
	if peers == nil {
		peers = []device.Peer{}
	}

	out := PeersOutput{Target: target, Peers: peers, Count: len(peers)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListPeers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	peers, err := s.directory.ListPeers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list peers: %s", err)), nil
	}
	out := PeersOutput{Peers: peers, Count: len(peers)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	services := s.publisher.Services()
	out := ListServicesOutput{
		Device:   s.publisher.Device(),
		Services: services,
		Count:    len(services),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleNotifySubscribers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	serviceID, err := requiredString(request, "service_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, ok := request.GetArguments()["variables"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError(`parameter "variables" must be an object`), nil
	}
	if err := s.validate(schema.NotifySchema, map[string]any{"variables": raw}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("validation error: %s", err)), nil
	}

	values := make(map[string]string, len(raw))
	for name, v := range raw {
		values[name], _ = v.(string)
	}
	vars := upnp.VariablesFromMap(values)

	if err := s.publisher.NotifySubscribers(ctx, serviceID, vars); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to notify subscribers: %s", err)), nil
	}

	out := NotifySubscribersOutput{
		Success:   true,
		Message:   fmt.Sprintf("Queued %d variable(s) for %s", len(vars), serviceID),
		Variables: vars,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// --- helpers ---

func (s *Server) validate(doc json.RawMessage, payload map[string]any) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.Validate(doc, payload)
}

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
