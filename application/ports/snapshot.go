package ports

import (
	"context"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
)

// SnapshotClient fetches the full vault list when missed-update replay is
// not possible (first connect, or the server flags the gap as too large).
type SnapshotClient interface {
	FetchSnapshot(ctx context.Context) ([]entities.Snapshot, error)
}
