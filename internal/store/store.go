package store

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Artifact metadata keys. Every synced object carries the sharepoint_* trio;
// the ACL keys appear when permission sync is enabled.
const (
	MetaItemID       = "sharepoint_item_id"
	MetaLastModified = "sharepoint_last_modified"
	MetaContentHash  = "sharepoint_content_hash"

	MetaUserIDs       = "user_ids"
	MetaGroupIDs      = "group_ids"
	MetaPermissions   = "sharepoint_permissions"
	MetaPermsSyncedAt = "permissions_synced_at"
)

// internalPrefix namespaces bookkeeping objects (the delta token) so they
// never surface as artifacts.
const internalPrefix = ".spsync/"

// ErrNotFound is returned by GetContent for a missing key.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one stored object with its sync metadata.
type Artifact struct {
	Key      string
	Size     int64
	Metadata map[string]string
}

// ContentStore is the artifact sink a sync run reconciles against.
type ContentStore interface {
	// List returns every artifact under the configured scope keyed by
	// artifact key. Bookkeeping objects and directory placeholders are
	// excluded. Metadata comes back normalized.
	List(ctx context.Context) (map[string]*Artifact, error)

	// Get returns one artifact's metadata, or (nil, nil) when absent.
	Get(ctx context.Context, key string) (*Artifact, error)

	// GetContent streams an artifact's content, or ErrNotFound.
	GetContent(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes content and metadata, replacing any existing object.
	Put(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) error

	// SetMetadata replaces an artifact's metadata without touching content.
	SetMetadata(ctx context.Context, key string, metadata map[string]string) error

	// Delete removes an artifact. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// TokenStore persists the delta token between runs.
type TokenStore interface {
	// Load returns the saved token, or "" when none is usable.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// KeyFromPath converts a remote path into an artifact key: forward slashes
// only, no surrounding or doubled separators.
func KeyFromPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.Trim(p, "/")
}
