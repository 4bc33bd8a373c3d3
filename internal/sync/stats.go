package sync

import (
	"sync/atomic"

	"github.com/HerbigniauxBenoit/spsync/internal/types"
)

// accumulator collects run counters from concurrent workers. The mode string
// is written before any worker starts and read after the last one stops, so
// it needs no synchronization.
type accumulator struct {
	scanned     atomic.Int64
	added       atomic.Int64
	updated     atomic.Int64
	deleted     atomic.Int64
	unchanged   atomic.Int64
	failed      atomic.Int64
	bytes       atomic.Int64
	permsSynced atomic.Int64
	permsFailed atomic.Int64

	mode string
}

func (a *accumulator) setMode(mode string) {
	a.mode = mode
}

func (a *accumulator) Snapshot() types.RunStats {
	return types.RunStats{
		FilesScanned:      a.scanned.Load(),
		FilesAdded:        a.added.Load(),
		FilesUpdated:      a.updated.Load(),
		FilesDeleted:      a.deleted.Load(),
		FilesUnchanged:    a.unchanged.Load(),
		FilesFailed:       a.failed.Load(),
		BytesTransferred:  a.bytes.Load(),
		PermissionsSynced: a.permsSynced.Load(),
		PermissionsFailed: a.permsFailed.Load(),
		SyncMode:          a.mode,
	}
}
