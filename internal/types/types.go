package types

import "time"

// RemoteItem is an immutable snapshot of one SharePoint drive item at
// observation time, as produced by the change source.
type RemoteItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size,omitempty"`
	LastModified time.Time `json:"lastModified"`
	ContentHash  string    `json:"contentHash,omitempty"`
	IsFolder     bool      `json:"isFolder,omitempty"`
}

// ChangeKind discriminates the entries of a delta page.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeFolder   ChangeKind = "folder"
)

// Change is one observed event from the incremental feed. Item is set for
// upserted files only. For deletions the path is best-effort: the feed may
// report a stale or empty parent path, so it must not be trusted beyond
// logging and artifact-key derivation.
type Change struct {
	Kind     ChangeKind  `json:"kind"`
	Item     *RemoteItem `json:"item,omitempty"`
	ItemID   string      `json:"itemId"`
	ItemName string      `json:"itemName,omitempty"`
	Path     string      `json:"path,omitempty"`
}

// Delta is the result of draining one incremental fetch. Token is the opaque
// resume marker from the final page; empty means the feed produced no new
// resume state this call and the caller should keep its previous token.
type Delta struct {
	Changes []Change `json:"changes"`
	Token   string   `json:"token,omitempty"`
	Initial bool     `json:"initial,omitempty"`
}

// IdentityKind classifies the grantee of a permission entry.
type IdentityKind string

const (
	IdentityUser      IdentityKind = "user"
	IdentityGroup     IdentityKind = "group"
	IdentitySiteGroup IdentityKind = "siteGroup"
	IdentityUnknown   IdentityKind = "unknown"
)

// PermissionEntry is one access grant on a remote item. IdentityID carries
// the directory object ID of the grantee and is expected to be a GUID when
// the grantee is a directory principal; site-local principals surface
// non-GUID values here.
type PermissionEntry struct {
	ID          string       `json:"id"`
	Roles       []string     `json:"roles"`
	Kind        IdentityKind `json:"type"`
	DisplayName string       `json:"display_name,omitempty"`
	Email       string       `json:"email,omitempty"`
	IdentityID  string       `json:"identity_id,omitempty"`
	Inherited   bool         `json:"inherited"`
}

// Sync modes reported in RunStats.
const (
	ModeFull             = "full"
	ModeDeltaInitial     = "delta-initial"
	ModeDeltaIncremental = "delta-incremental"
)

// RunStats aggregates the outcome of one reconciliation run. Created fresh
// per run and returned to the caller; never persisted.
type RunStats struct {
	FilesScanned      int64  `json:"files_scanned"`
	FilesAdded        int64  `json:"files_added"`
	FilesUpdated      int64  `json:"files_updated"`
	FilesDeleted      int64  `json:"files_deleted"`
	FilesUnchanged    int64  `json:"files_unchanged"`
	FilesFailed       int64  `json:"files_failed"`
	BytesTransferred  int64  `json:"bytes_transferred"`
	PermissionsSynced int64  `json:"permissions_synced"`
	PermissionsFailed int64  `json:"permissions_failed"`
	SyncMode          string `json:"sync_mode"`
}

// HasFailures reports whether any per-item operation failed during the run.
func (s *RunStats) HasFailures() bool {
	return s.FilesFailed > 0 || s.PermissionsFailed > 0
}

// RequestContext carries per-request correlation state through the Graph
// client and into log lines.
type RequestContext struct {
	TraceID   string
	Operation string
	SiteID    string
	DriveID   string
}
