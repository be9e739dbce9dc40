// Package api exposes tracker state over an authenticated HTTP API:
// snapshot reads, SSE telemetry, and a WebSocket push gateway.
package api

import (
	"context"
	"net/http"

	"github.com/cardata-bridge/cdb/internal/platform"
	"github.com/cardata-bridge/cdb/internal/telemetry"
	"github.com/cardata-bridge/cdb/internal/tracker"
)

// RegistryPort is the minimal registry surface the API reads from.
type RegistryPort interface {
	List() []tracker.Snapshot
	Get(vin string) (tracker.Snapshot, bool)
	Subscribe(l platform.Listener) func()
}

// TelemetryPort is the minimal hub surface the API subscribes through.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Compile-time port conformance.
var _ RegistryPort = (*platform.Registry)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
