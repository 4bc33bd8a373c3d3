// Package permissions reduces SharePoint access grants to the compact ACL
// metadata carried on every artifact. The encoded field names and the
// pipe-delimited value shape are read downstream by search indexers, so they
// are fixed.
package permissions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HerbigniauxBenoit/spsync/internal/store"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
)

// Sentinels written when an item has no explicit grantees of a kind. The two
// values are distinct fixed GUIDs so a consumer can match "no users" or
// "no groups" without colliding with a real directory object ID.
const (
	NoUsersSentinel  = "00000000-0000-0000-0000-000000000000"
	NoGroupsSentinel = "00000000-0000-0000-0000-000000000001"
)

// EncodedACL is the two-field grantee projection stored in artifact
// metadata. Each field is a pipe-delimited list of directory object IDs, or
// the kind's sentinel when no valid grantee of that kind exists.
type EncodedACL struct {
	UserIDs  string `json:"user_ids"`
	GroupIDs string `json:"group_ids"`
}

// Encode reduces a permission set to its EncodedACL. Only identity IDs in
// canonical GUID form participate: site-local principals carry numeric
// SharePoint IDs, which stay out of the encoded fields and survive only in
// the raw JSON projection.
func Encode(entries []types.PermissionEntry) EncodedACL {
	users := collectIDs(entries, func(k types.IdentityKind) bool {
		return k == types.IdentityUser
	})
	groups := collectIDs(entries, func(k types.IdentityKind) bool {
		return k == types.IdentityGroup || k == types.IdentitySiteGroup
	})

	acl := EncodedACL{UserIDs: NoUsersSentinel, GroupIDs: NoGroupsSentinel}
	if len(users) > 0 {
		acl.UserIDs = strings.Join(users, "|")
	}
	if len(groups) > 0 {
		acl.GroupIDs = strings.Join(groups, "|")
	}
	return acl
}

// collectIDs gathers the valid grantee GUIDs for one identity side,
// deduplicated and sorted so repeated encodings of the same grant set
// produce identical metadata.
func collectIDs(entries []types.PermissionEntry, match func(types.IdentityKind) bool) []string {
	seen := make(map[string]struct{}, len(entries))
	var ids []string
	for _, e := range entries {
		if !match(e.Kind) || !isGUID(e.IdentityID) {
			continue
		}
		if _, ok := seen[e.IdentityID]; ok {
			continue
		}
		seen[e.IdentityID] = struct{}{}
		ids = append(ids, e.IdentityID)
	}
	sort.Strings(ids)
	return ids
}

// isGUID reports whether s is a directory object ID in canonical 8-4-4-4-12
// form. uuid.Parse alone also accepts braced, URN and bare-hex spellings,
// none of which appear as Entra object IDs.
func isGUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// MetadataPatch builds the metadata fields recorded on an artifact when its
// permissions are synced: the encoded ACL, a raw JSON projection of every
// entry for audit, and the sync timestamp. Callers merge the patch over the
// artifact's existing metadata so earlier grantee lists never linger.
func MetadataPatch(entries []types.PermissionEntry, syncedAt time.Time) (map[string]string, error) {
	if entries == nil {
		entries = []types.PermissionEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode permission entries: %w", err)
	}

	acl := Encode(entries)
	return map[string]string{
		store.MetaUserIDs:       acl.UserIDs,
		store.MetaGroupIDs:      acl.GroupIDs,
		store.MetaPermissions:   string(raw),
		store.MetaPermsSyncedAt: syncedAt.UTC().Format(time.RFC3339),
	}, nil
}

// Summary renders a permission set for log lines.
func Summary(entries []types.PermissionEntry) string {
	if len(entries) == 0 {
		return "no permissions"
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		roles := strings.Join(e.Roles, ",")
		if e.Email != "" {
			parts = append(parts, fmt.Sprintf("%s<%s>:%s", e.DisplayName, e.Email, roles))
		} else {
			parts = append(parts, fmt.Sprintf("%s:%s", e.DisplayName, roles))
		}
	}
	return strings.Join(parts, "; ")
}
