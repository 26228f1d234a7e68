package cart

import "context"

// Store persists snapshots keyed by session. Implementations must apply every
// mutation immediately; callers read, mutate, and save back in one request.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, sessionID string, snapshot *Snapshot) error
	Clear(ctx context.Context, sessionID string) error
}
