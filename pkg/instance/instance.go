// Package instance names the running replica in logs and lock owners.
package instance

import "github.com/angelmondragon/fulfillment-engine/pkg/env"

const (
	EnvInstanceID = "FULFILLMENT_INSTANCE_ID"
	fallbackID    = "local"
)

// ID returns the replica identifier. An explicit FULFILLMENT_INSTANCE_ID
// wins over platform-provided names.
func ID() string {
	return env.First(fallbackID, EnvInstanceID, "DYNO", "HOSTNAME")
}
