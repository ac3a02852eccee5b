package instance

import (
	"os"
	"strings"
)

// GetID returns the process instance identifier used in logs. It prefers
// STOCKHOLD_INSTANCE_ID, then HOSTNAME, then "local".
func GetID() string {
	for _, key := range []string{"STOCKHOLD_INSTANCE_ID", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
