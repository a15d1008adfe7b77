package server

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"livefeed/internal/cache"
	"livefeed/internal/core"
	"livefeed/internal/scheduler"
	"livefeed/internal/sse"
)

// Handler holds the HTTP handlers over the injected live components.
type Handler struct {
	cache     *cache.VersionedCache
	hub       *sse.Hub
	sched     *scheduler.Scheduler
	heartbeat time.Duration
}

// NewHandler creates a new handler.
func NewHandler(c *cache.VersionedCache, hub *sse.Hub, sched *scheduler.Scheduler, heartbeat time.Duration) *Handler {
	return &Handler{cache: c, hub: hub, sched: sched, heartbeat: heartbeat}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// policyDTO is the wire shape of one TTL policy entry.
type policyDTO struct {
	TTLSeconds          float64 `json:"ttl_seconds"`
	PollIntervalSeconds float64 `json:"poll_interval_seconds"`
}

// LiveConfig handles GET /live/config: the static TTL/poll policy table.
// No cache interaction.
func (h *Handler) LiveConfig(c echo.Context) error {
	policies := make(map[string]policyDTO)
	for name, p := range core.Policies() {
		policies[name] = policyDTO{
			TTLSeconds:          p.TTL.Seconds(),
			PollIntervalSeconds: p.PollInterval.Seconds(),
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"resource_types":      policies,
		"default_ttl_seconds": core.DefaultTTL.Seconds(),
	})
}

// LiveStatus handles GET /live/status: cache stats, scheduler state, hub counts.
func (h *Handler) LiveStatus(c echo.Context) error {
	jobs := h.sched.JobNames()
	sort.Strings(jobs)
	return c.JSON(http.StatusOK, map[string]any{
		"cache": h.cache.Stats(),
		"scheduler": map[string]any{
			"running": h.sched.IsRunning(),
			"jobs":    jobs,
		},
		"sse": map[string]any{
			"clients":  h.hub.ClientCount(),
			"channels": h.hub.ChannelCounts(),
		},
	})
}

// liveMeta is the _live metadata block on poll responses.
type liveMeta struct {
	ResourceType        string    `json:"resource_type"`
	Identifier          string    `json:"identifier"`
	Version             string    `json:"version"`
	UpdatedAt           time.Time `json:"updated_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	TTLRemainingSeconds float64   `json:"ttl_remaining_seconds"`
	HitCount            int64     `json:"hit_count"`
}

// Poll handles GET /live/poll/:type/:id with conditional-GET semantics:
// a matching If-None-Match version yields 304 with no body, otherwise 200
// with the data, the _live metadata, and an ETag carrying the version.
func (h *Handler) Poll(c echo.Context) error {
	rt, err := core.ParseResourceType(c.Param("type"))
	if err != nil {
		return handleError(c, err)
	}
	id := c.Param("id")

	ent, ok := h.cache.Get(rt, id)
	if !ok {
		return handleError(c, core.NewNotFoundError(
			"no live data cached for this resource; request the primary endpoint first to populate it"))
	}

	if known := strings.Trim(c.Request().Header.Get("If-None-Match"), `"`); known != "" && known == ent.Version {
		return c.NoContent(http.StatusNotModified)
	}

	c.Response().Header().Set("ETag", `"`+ent.Version+`"`)
	now := time.Now()
	return c.JSON(http.StatusOK, map[string]any{
		"data": ent.Value,
		"_live": liveMeta{
			ResourceType:        string(rt),
			Identifier:          strings.ToLower(id),
			Version:             ent.Version,
			UpdatedAt:           ent.UpdatedAt,
			ExpiresAt:           ent.ExpiresAt,
			TTLRemainingSeconds: ent.TTLRemaining(now).Seconds(),
			HitCount:            ent.HitCount,
		},
	})
}

// invalidateRequest is the POST /live/invalidate body.
type invalidateRequest struct {
	ResourceType string `json:"resource_type"`
	Identifier   string `json:"identifier"`
}

// Invalidate handles POST /live/invalidate: one entry when an identifier is
// given, the whole resource type otherwise.
func (h *Handler) Invalidate(c echo.Context) error {
	var req invalidateRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	rt, err := core.ParseResourceType(req.ResourceType)
	if err != nil {
		return handleError(c, err)
	}

	if req.Identifier != "" {
		return c.JSON(http.StatusOK, map[string]any{
			"invalidated": h.cache.Invalidate(rt, req.Identifier),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"invalidated_count": h.cache.InvalidateType(rt),
	})
}

// subscribeRequest is the POST /live/subscribe body.
type subscribeRequest struct {
	Subscriptions []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"subscriptions"`
}

// SubscribePreview handles POST /live/subscribe. Purely advisory: validates
// each requested type and echoes the resolved TTL per subscription without
// opening a stream.
func (h *Handler) SubscribePreview(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if len(req.Subscriptions) == 0 {
		return handleError(c, core.NewInvalidRequestError("subscriptions list is required", nil))
	}

	resolved := make([]map[string]any, 0, len(req.Subscriptions))
	for _, sub := range req.Subscriptions {
		rt, err := core.ParseResourceType(sub.Type)
		if err != nil {
			return handleError(c, err)
		}
		policy := core.PolicyFor(rt)
		resolved = append(resolved, map[string]any{
			"type":                  string(rt),
			"id":                    strings.ToLower(sub.ID),
			"channel":               string(rt),
			"ttl_seconds":           policy.TTL.Seconds(),
			"poll_interval_seconds": policy.PollInterval.Seconds(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"subscriptions": resolved})
}

// handleError converts live errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var liveErr *core.LiveError
	if errors.As(err, &liveErr) {
		return c.JSON(liveErr.HTTPStatusCode(), liveErr.ToJSON())
	}

	// Fallback for unexpected errors
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
