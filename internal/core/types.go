// Package core provides shared types for the live data subsystem: the
// resource-type enumeration, the TTL policy table, and live event payloads.
package core

import (
	"fmt"
	"time"
)

// ResourceType identifies a class of cacheable live data. The set is closed;
// callers validate free-form input with ParseResourceType.
type ResourceType string

const (
	ResourceFinanceTicker ResourceType = "finance:ticker"
	ResourceFinanceList   ResourceType = "finance:list"
	ResourceSportsMatch   ResourceType = "sports:match"
	ResourceSportsList    ResourceType = "sports:list"
	ResourceAIAnalysis    ResourceType = "ai:analysis"
	ResourceDashboard     ResourceType = "dashboard"
)

// DefaultTTL is the fallback for resource types missing from the policy table.
const DefaultTTL = 60 * time.Second

// TTLPolicy describes the refresh cadence for one resource type.
type TTLPolicy struct {
	TTL          time.Duration
	PollInterval time.Duration
}

// ttlPolicies is the process-wide policy table. Ticker quotes refresh fastest,
// list aggregates slower, AI analyses slowest since they are expensive to
// recompute. Changing a value requires a deploy, not a runtime call.
var ttlPolicies = map[ResourceType]TTLPolicy{
	ResourceFinanceTicker: {TTL: 30 * time.Second, PollInterval: 15 * time.Second},
	ResourceFinanceList:   {TTL: 120 * time.Second, PollInterval: 60 * time.Second},
	ResourceSportsMatch:   {TTL: 60 * time.Second, PollInterval: 30 * time.Second},
	ResourceSportsList:    {TTL: 300 * time.Second, PollInterval: 120 * time.Second},
	ResourceAIAnalysis:    {TTL: 3600 * time.Second, PollInterval: 600 * time.Second},
	ResourceDashboard:     {TTL: 180 * time.Second, PollInterval: 90 * time.Second},
}

// PolicyFor returns the TTL policy for a resource type, falling back to
// DefaultTTL for unknown types.
func PolicyFor(rt ResourceType) TTLPolicy {
	if p, ok := ttlPolicies[rt]; ok {
		return p
	}
	return TTLPolicy{TTL: DefaultTTL, PollInterval: DefaultTTL / 2}
}

// Policies returns a copy of the full policy table, keyed by resource type
// string. Used by the /live/config endpoint.
func Policies() map[string]TTLPolicy {
	out := make(map[string]TTLPolicy, len(ttlPolicies))
	for rt, p := range ttlPolicies {
		out[string(rt)] = p
	}
	return out
}

// ResourceTypes returns every known resource type.
func ResourceTypes() []ResourceType {
	out := make([]ResourceType, 0, len(ttlPolicies))
	for rt := range ttlPolicies {
		out = append(out, rt)
	}
	return out
}

// ParseResourceType validates a caller-supplied resource type string.
func ParseResourceType(s string) (ResourceType, error) {
	rt := ResourceType(s)
	if _, ok := ttlPolicies[rt]; !ok {
		return "", NewInvalidResourceTypeError(fmt.Sprintf("unknown resource type: %q", s))
	}
	return rt, nil
}

// LiveEvent is one server-sent event in transit between a broadcast and its
// delivery to a client. It is never stored.
type LiveEvent struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Reserved event names emitted by the stream handler itself.
const (
	EventConnected = "connected"
	EventHeartbeat = "heartbeat"
)
