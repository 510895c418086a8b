package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/urmzd/upnpd/pkg/api/types"
	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/device/schema"
	"github.com/urmzd/upnpd/pkg/ssdp"
)

const defaultSearchTimeout = 3 * time.Second

// DiscoveryHandler handles peer discovery endpoints
type DiscoveryHandler struct {
	directory  device.Directory
	subscriber device.EventSubscriber
	validator  *schema.Validator
	heartbeat  time.Duration
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(directory device.Directory, subscriber device.EventSubscriber, validator *schema.Validator) *DiscoveryHandler {
	return &DiscoveryHandler{
		directory:  directory,
		subscriber: subscriber,
		validator:  validator,
		heartbeat:  30 * time.Second,
	}
}

// Search handles POST /discovery/search
// @Summary      Search for peers
// @Description  Multicasts M-SEARCH and collects the answers until the timeout (default ssdp:all, 3 seconds)
// @Tags         discovery
// @Accept       json
// @Produce      json
// @Param        request  body      types.SearchRequest  false  "Search target and timeout (1-30 seconds)"
// @Success      200      {object}  types.PeersResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      503      {object}  types.ErrorResponse  "Discovery engine unavailable"
// @Router       /discovery/search [post]
func (h *DiscoveryHandler) Search(c *gin.Context) {
	req := types.SearchRequest{Target: ssdp.TargetAll}
	if err := decodeValidated(c.Request.Body, h.validator, schema.SearchSchema, &req); err != nil {
		abortWithError(c, err)
		return
	}
	if req.Target == "" {
		req.Target = ssdp.TargetAll
	}
	timeout := defaultSearchTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds * float64(time.Second))
	}

	peers, err := h.directory.Search(c.Request.Context(), req.Target, timeout)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if peers == nil {
		peers = []device.Peer{}
	}

	c.JSON(http.StatusOK, types.PeersResponse{
		Target: req.Target,
		Peers:  peers,
		Count:  len(peers),
	})
}

// ListPeers handles GET /discovery/peers
// @Summary      List known peers
// @Description  Returns the peers whose announcements have not expired
// @Tags         discovery
// @Produce      json
// @Success      200  {object}  types.PeersResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /discovery/peers [get]
func (h *DiscoveryHandler) ListPeers(c *gin.Context) {
	peers, err := h.directory.ListPeers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.PeersResponse{Peers: peers, Count: len(peers)})
}

// GetPeer handles GET /discovery/peers/:usn
// @Summary      Get a peer
// @Tags         discovery
// @Produce      json
// @Param        usn  path      string  true  "Unique service name"
// @Success      200  {object}  types.PeerResponse
// @Failure      404  {object}  types.ErrorResponse  "Peer not found"
// @Router       /discovery/peers/{usn} [get]
func (h *DiscoveryHandler) GetPeer(c *gin.Context) {
	p, err := h.directory.GetPeer(c.Request.Context(), c.Param("usn"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.PeerResponse{Peer: *p})
}

// Events handles GET /discovery/events (SSE stream)
// @Summary      Subscribe to discovery events
// @Description  Server-Sent Events stream of peer alive, byebye and search answer events
// @Tags         discovery
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /discovery/events [get]
func (h *DiscoveryHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	eventChan := h.subscriber.Subscribe()
	defer h.subscriber.Unsubscribe(eventChan)

	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
		"message":   "Connected to discovery event stream",
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, event.Type, event)
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}

// decodeValidated reads a JSON object from body, checks it against doc and
// decodes it into dst. An empty body leaves dst untouched.
func decodeValidated(body io.Reader, v *schema.Validator, doc json.RawMessage, dst any) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	if len(raw) == 0 {
		return nil
	}

	if err := v.ValidateJSON(doc, raw); err != nil {
		return fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	return nil
}
