package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// versionLen is the length of the hex version token exposed to callers.
const versionLen = 12

// ComputeVersion derives a short deterministic version token from a value's
// canonical JSON serialization. encoding/json sorts map keys and formats
// floats stably, so two independent fetches of identical upstream data hash
// to the same token regardless of map insertion order, which is what lets
// callers suppress spurious change notifications.
//
// When the value cannot be serialized the token degrades to a hash of the
// value's fmt representation instead of failing the write. Two structurally
// different values whose fmt representations coincide would then collide on
// version; the trade is deliberate: a transient serialization issue must
// never block caching.
func ComputeVersion(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", value))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))[:versionLen]
}
