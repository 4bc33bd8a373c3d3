package changes

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/HerbigniauxBenoit/spsync/internal/graph"
	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
)

// Manager reads items, changes, content and permissions from one resolved
// drive. Paths it emits are relative to the configured sync root.
type Manager struct {
	client   *graph.Client
	logger   logging.Logger
	siteID   string
	driveID  string
	rootPath string
}

// NewManager creates a manager scoped to a drive. rootPath is the folder to
// sync, relative to the drive root without surrounding slashes; empty means
// the whole drive.
func NewManager(client *graph.Client, siteID, driveID, rootPath string, logger logging.Logger) *Manager {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Manager{
		client:   client,
		logger:   logger,
		siteID:   siteID,
		driveID:  driveID,
		rootPath: strings.Trim(rootPath, "/"),
	}
}

// driveItem is the subset of the Graph driveItem resource the manager reads.
type driveItem struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	ETag                 string           `json:"eTag"`
	CTag                 string           `json:"cTag"`
	Size                 int64            `json:"size"`
	LastModifiedDateTime time.Time        `json:"lastModifiedDateTime"`
	ParentReference      *parentReference `json:"parentReference"`

	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
	Package *struct {
		Type string `json:"type"`
	} `json:"package"`
	Deleted *struct {
		State string `json:"state"`
	} `json:"deleted"`
}

type parentReference struct {
	DriveID string `json:"driveId"`
	ID      string `json:"id"`
	Path    string `json:"path"`
}

type itemPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

type deltaPage struct {
	Value     []driveItem `json:"value"`
	NextLink  string      `json:"@odata.nextLink"`
	DeltaLink string      `json:"@odata.deltaLink"`
}

const itemSelect = "$select=id,name,eTag,cTag,size,lastModifiedDateTime,parentReference,file,folder,package,deleted"

// drivePath returns the item's path relative to the drive root, e.g.
// "General/Reports/q3.pdf". Parent paths arrive percent-encoded after the
// "root:" marker.
func drivePath(item driveItem) string {
	parent := ""
	if item.ParentReference != nil {
		p := item.ParentReference.Path
		if idx := strings.Index(p, "root:"); idx >= 0 {
			parent = strings.Trim(p[idx+len("root:"):], "/")
			if decoded, err := url.PathUnescape(parent); err == nil {
				parent = decoded
			}
		}
	}
	if parent == "" {
		return item.Name
	}
	return parent + "/" + item.Name
}

// scopedPath converts a drive-root-relative path into a sync-root-relative
// one. ok is false when the item lies outside the configured root.
func (m *Manager) scopedPath(item driveItem) (string, bool) {
	full := drivePath(item)
	if m.rootPath == "" {
		return full, true
	}
	if full == m.rootPath {
		return "", true
	}
	if rel, found := strings.CutPrefix(full, m.rootPath+"/"); found {
		return rel, true
	}
	return "", false
}

func (m *Manager) toRemoteItem(item driveItem, path string) *types.RemoteItem {
	// cTag tracks content changes only; eTag also moves on metadata edits.
	// Prefer cTag, fall back to eTag for items that lack one.
	hash := item.CTag
	if hash == "" {
		hash = item.ETag
	}
	return &types.RemoteItem{
		ID:           item.ID,
		Name:         item.Name,
		Path:         path,
		Size:         item.Size,
		LastModified: item.LastModifiedDateTime.UTC(),
		ContentHash:  hash,
		IsFolder:     item.Folder != nil || item.Package != nil,
	}
}

// childrenURL returns the listing URL for a folder. An empty itemID means the
// sync root itself.
func (m *Manager) childrenURL(itemID string) string {
	if itemID != "" {
		return fmt.Sprintf("/drives/%s/items/%s/children?%s", m.driveID, itemID, itemSelect)
	}
	if m.rootPath == "" {
		return fmt.Sprintf("/drives/%s/root/children?%s", m.driveID, itemSelect)
	}
	return fmt.Sprintf("/drives/%s/root:/%s:/children?%s", m.driveID, escapePath(m.rootPath), itemSelect)
}

// escapePath percent-encodes each path segment while keeping separators.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// ListAll walks the sync root breadth-first and calls visit for every file.
// Folders are traversed but never surfaced. An error from visit stops the
// walk.
func (m *Manager) ListAll(ctx context.Context, visit func(types.RemoteItem) error) error {
	reqCtx := graph.NewRequestContext("list-all", m.siteID, m.driveID)
	logger := m.logger.WithTraceID(reqCtx.TraceID)

	// Queue of folder item IDs; "" seeds the walk at the sync root.
	queue := []string{""}
	folders := 0
	files := 0

	for len(queue) > 0 {
		folderID := queue[0]
		queue = queue[1:]

		pageURL := m.childrenURL(folderID)
		for pageURL != "" {
			page, err := graph.GetJSON[itemPage](ctx, m.client, reqCtx, pageURL)
			if err != nil {
				return err
			}

			for _, item := range page.Value {
				if item.Folder != nil || item.Package != nil {
					queue = append(queue, item.ID)
					folders++
					continue
				}
				path, ok := m.scopedPath(item)
				if !ok {
					continue
				}
				files++
				if err := visit(*m.toRemoteItem(item, path)); err != nil {
					return err
				}
			}
			pageURL = page.NextLink
		}
	}

	logger.Info("listing complete",
		logging.F("files", files),
		logging.F("folders", folders),
	)
	return nil
}

// FetchDelta fetches changes since token. An empty token starts a fresh delta
// cycle from the drive root. All pages are followed; only the final page
// carries the next token, and a missing delta link leaves Token empty so the
// caller retains its previous one.
func (m *Manager) FetchDelta(ctx context.Context, token string) (*types.Delta, error) {
	reqCtx := graph.NewRequestContext("fetch-delta", m.siteID, m.driveID)
	logger := m.logger.WithTraceID(reqCtx.TraceID)

	pageURL := token
	if pageURL == "" {
		pageURL = fmt.Sprintf("/drives/%s/root/delta", m.driveID)
	}

	delta := &types.Delta{Initial: token == ""}
	pages := 0

	for pageURL != "" {
		page, err := graph.GetJSON[deltaPage](ctx, m.client, reqCtx, pageURL)
		if err != nil {
			return nil, err
		}
		pages++

		for _, item := range page.Value {
			delta.Changes = append(delta.Changes, m.toChange(item))
		}

		if page.NextLink != "" {
			pageURL = page.NextLink
			continue
		}
		delta.Token = page.DeltaLink
		pageURL = ""
	}

	logger.Info("delta fetched",
		logging.F("changes", len(delta.Changes)),
		logging.F("pages", pages),
		logging.F("initial", delta.Initial),
	)
	return delta, nil
}

// toChange maps one delta entry. Deletions carry the ID and a best-effort
// path; folder events are surfaced as-is for the caller to discard. A deleted
// folder is a folder event too: its file descendants arrive as their own
// tombstones.
func (m *Manager) toChange(item driveItem) types.Change {
	isFolder := item.Folder != nil || item.Package != nil

	if item.Deleted != nil {
		if isFolder {
			return types.Change{Kind: types.ChangeFolder, ItemID: item.ID, ItemName: item.Name}
		}
		path, ok := m.scopedPath(item)
		if !ok {
			path = ""
		}
		return types.Change{
			Kind:     types.ChangeDeleted,
			ItemID:   item.ID,
			ItemName: item.Name,
			Path:     path,
		}
	}

	path, ok := m.scopedPath(item)
	if !ok {
		// Outside the sync root. Surface as a folder event so the engine
		// discards it without counting.
		return types.Change{Kind: types.ChangeFolder, ItemID: item.ID, ItemName: item.Name}
	}

	remote := m.toRemoteItem(item, path)
	kind := types.ChangeUpserted
	if remote.IsFolder {
		kind = types.ChangeFolder
	}
	return types.Change{
		Kind:     kind,
		Item:     remote,
		ItemID:   item.ID,
		ItemName: item.Name,
		Path:     path,
	}
}

// Fetch streams the content of one item.
func (m *Manager) Fetch(ctx context.Context, itemID string) (io.ReadCloser, int64, error) {
	reqCtx := graph.NewRequestContext("download", m.siteID, m.driveID)
	return m.client.Download(ctx, reqCtx, fmt.Sprintf("/drives/%s/items/%s/content", m.driveID, itemID))
}

// graph permission wire types
type permissionPage struct {
	Value    []permission `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

type permission struct {
	ID            string         `json:"id"`
	Roles         []string       `json:"roles"`
	GrantedToV2   *identitySetV2 `json:"grantedToV2"`
	GrantedTo     *identitySet   `json:"grantedTo"`
	InheritedFrom *struct {
		ID string `json:"id"`
	} `json:"inheritedFrom"`
}

type identitySetV2 struct {
	User      *identity `json:"user"`
	Group     *identity `json:"group"`
	SiteUser  *identity `json:"siteUser"`
	SiteGroup *identity `json:"siteGroup"`
}

type identitySet struct {
	User *identity `json:"user"`
}

type identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Permissions returns the flattened permission entries of one item. Graph
// items with no resolvable identity (sharing links, application grants) are
// skipped.
func (m *Manager) Permissions(ctx context.Context, itemID string) ([]types.PermissionEntry, error) {
	reqCtx := graph.NewRequestContext("permissions", m.siteID, m.driveID)

	var entries []types.PermissionEntry
	pageURL := fmt.Sprintf("/drives/%s/items/%s/permissions", m.driveID, itemID)
	for pageURL != "" {
		page, err := graph.GetJSON[permissionPage](ctx, m.client, reqCtx, pageURL)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Value {
			if entry, ok := toPermissionEntry(p); ok {
				entries = append(entries, entry)
			}
		}
		pageURL = page.NextLink
	}
	return entries, nil
}

// toPermissionEntry picks the identity out of a permission. grantedToV2 is
// authoritative; the legacy grantedTo shape appears on older tenants.
func toPermissionEntry(p permission) (types.PermissionEntry, bool) {
	entry := types.PermissionEntry{
		ID:        p.ID,
		Roles:     p.Roles,
		Inherited: p.InheritedFrom != nil,
	}

	var id *identity
	switch {
	case p.GrantedToV2 != nil && p.GrantedToV2.User != nil:
		id = p.GrantedToV2.User
		entry.Kind = types.IdentityUser
	case p.GrantedToV2 != nil && p.GrantedToV2.Group != nil:
		id = p.GrantedToV2.Group
		entry.Kind = types.IdentityGroup
	case p.GrantedToV2 != nil && p.GrantedToV2.SiteGroup != nil:
		id = p.GrantedToV2.SiteGroup
		entry.Kind = types.IdentitySiteGroup
	case p.GrantedToV2 != nil && p.GrantedToV2.SiteUser != nil:
		id = p.GrantedToV2.SiteUser
		entry.Kind = types.IdentityUser
	case p.GrantedTo != nil && p.GrantedTo.User != nil:
		id = p.GrantedTo.User
		entry.Kind = types.IdentityUser
	default:
		return types.PermissionEntry{}, false
	}

	entry.IdentityID = id.ID
	entry.DisplayName = id.DisplayName
	entry.Email = id.Email
	return entry, true
}
