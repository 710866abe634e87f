package instance

import (
	"os"
	"strings"
)

const (
	envInstanceID = "CHECKOUT_INSTANCE_ID"
	fallbackID    = "checkout-0"
)

// ID identifies this process in lock owners and logs. CHECKOUT_INSTANCE_ID wins
// over the hostname.
func ID() string {
	if id := strings.TrimSpace(os.Getenv(envInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
