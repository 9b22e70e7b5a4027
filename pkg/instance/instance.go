package instance

import "os"

const fallbackID = "orderrecon-0"

// GetID returns the process instance identifier used in logs. DYNO and
// WORKER_ID take precedence over the hostname.
func GetID() string {
	for _, key := range []string{"ORDERRECON_INSTANCE_ID", "DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
