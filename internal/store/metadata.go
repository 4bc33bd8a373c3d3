package store

import "strings"

// deprecatedMetadataKeys maps ACL keys written by earlier releases to their
// current names. Reads treat old and new keys as equivalent; the next
// metadata write drops the old spelling. The misspelled group key shipped in
// production and still exists on old artifacts.
var deprecatedMetadataKeys = map[string]string{
	"metadata_user_ids":     MetaUserIDs,
	"metadata_group_ids":    MetaGroupIDs,
	"acl_user_ids_list":     MetaUserIDs,
	"acl_group_ids_list":    MetaGroupIDs,
	"metadata_acl_user_ids": MetaUserIDs,
	"metdata_acl_group_ids": MetaGroupIDs,
}

// NormalizeMetadata returns a copy with keys lowercased (the blob service
// round-trips metadata keys with arbitrary casing) and deprecated ACL keys
// renamed. A value under the current key always wins over a deprecated one.
func NormalizeMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}

	out := make(map[string]string, len(meta))
	migrated := make(map[string]string)

	for k, v := range meta {
		lk := strings.ToLower(k)
		if replacement, ok := deprecatedMetadataKeys[lk]; ok {
			migrated[replacement] = v
			continue
		}
		out[lk] = v
	}

	// Migrated values apply only where the current key is absent.
	for k, v := range migrated {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}

	return out
}

// MergeMetadata overlays patch onto base and returns a new map. Neither
// input is modified.
func MergeMetadata(base, patch map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
