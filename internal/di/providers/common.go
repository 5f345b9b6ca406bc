package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// sessionCleanupInterval is how often expired sessions are purged.
	sessionCleanupInterval = time.Hour
)

// Version is stamped into backups and the OpenAPI document. Set with
// -ldflags "-X .../providers.Version=...".
var Version = "dev"
