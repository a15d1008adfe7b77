package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"livefeed/internal/core"
)

// queuePollInterval is how long one blocking wait on the client queue lasts
// before the heartbeat deadline is re-checked. This is the only intentional
// blocking wait in the subsystem.
const queuePollInterval = 1 * time.Second

// Stream handles GET /live/stream?channels=c1,c2. It registers a client,
// subscribes it to the requested channels, emits a connected event, then
// writes framed SSE events as they are broadcast, interleaved with heartbeats
// whenever the stream stays silent past the heartbeat interval. The client is
// unregistered when the connection closes, driven by the request context
// rather than the next failed write.
func (h *Handler) Stream(c echo.Context) error {
	channelsParam := c.QueryParam("channels")
	if channelsParam == "" {
		return handleError(c, core.NewInvalidRequestError("channels query parameter is required", nil))
	}

	var channels []string
	for _, raw := range strings.Split(channelsParam, ",") {
		rt, err := core.ParseResourceType(strings.TrimSpace(raw))
		if err != nil {
			return handleError(c, err)
		}
		channels = append(channels, string(rt))
	}

	clientID := h.hub.RegisterClient(c.QueryParam("client"))
	defer h.hub.UnregisterClient(clientID)
	for _, ch := range channels {
		h.hub.Subscribe(clientID, ch)
	}

	resp := c.Response()
	resp.Header().Set("Content-Type", "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	if err := writeFrame(resp, core.EventConnected, map[string]any{
		"client_id": clientID,
		"channels":  channels,
	}); err != nil {
		return nil
	}

	events := h.hub.Events(clientID)
	ctx := c.Request().Context()
	timer := time.NewTimer(queuePollInterval)
	defer timer.Stop()
	lastWrite := time.Now()

	for {
		select {
		case <-ctx.Done():
			// client disconnected; the deferred unregister runs promptly
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			payload := ev.Payload
			if payload == nil {
				payload = map[string]any{"channel": ev.Channel}
			}
			if err := writeFrame(resp, ev.Event, payload); err != nil {
				return nil
			}
			lastWrite = time.Now()

		case now := <-timer.C:
			if now.Sub(lastWrite) >= h.heartbeat {
				if err := writeFrame(resp, core.EventHeartbeat, map[string]any{
					"timestamp": now.UTC().Format(time.RFC3339),
				}); err != nil {
					return nil
				}
				lastWrite = now
			}
		}
		timer.Reset(queuePollInterval)
	}
}

// writeFrame emits one "event: <name>\ndata: <json>\n\n" frame and flushes it
// so intermediaries forward it immediately.
func writeFrame(resp *echo.Response, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{}`)
	}
	if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
