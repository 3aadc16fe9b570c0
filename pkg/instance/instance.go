package instance

import (
	"os"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/env"
)

// ID names this gateway process in logs. It prefers SAINTPAUL_INSTANCE_ID,
// then the platform dyno name, then the hostname.
func ID() string {
	if id := env.Get("SAINTPAUL_INSTANCE_ID", env.Get("DYNO", "")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
