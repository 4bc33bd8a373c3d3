package permissions

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/HerbigniauxBenoit/spsync/internal/store"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
)

const (
	guidUser1 = "11111111-aaaa-4bbb-8ccc-111111111111"
	guidUser2 = "22222222-aaaa-4bbb-8ccc-222222222222"
	guidGroup = "33333333-aaaa-4bbb-8ccc-333333333333"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name       string
		entries    []types.PermissionEntry
		wantUsers  string
		wantGroups string
	}{
		{
			name:       "empty set yields both sentinels",
			entries:    nil,
			wantUsers:  NoUsersSentinel,
			wantGroups: NoGroupsSentinel,
		},
		{
			name: "one user no groups",
			entries: []types.PermissionEntry{
				{Kind: types.IdentityUser, IdentityID: guidUser1},
			},
			wantUsers:  guidUser1,
			wantGroups: NoGroupsSentinel,
		},
		{
			name: "users and groups pipe joined",
			entries: []types.PermissionEntry{
				{Kind: types.IdentityUser, IdentityID: guidUser2},
				{Kind: types.IdentityUser, IdentityID: guidUser1},
				{Kind: types.IdentityGroup, IdentityID: guidGroup},
			},
			wantUsers:  guidUser1 + "|" + guidUser2,
			wantGroups: guidGroup,
		},
		{
			name: "duplicates collapse",
			entries: []types.PermissionEntry{
				{Kind: types.IdentityUser, IdentityID: guidUser1},
				{Kind: types.IdentityUser, IdentityID: guidUser1},
			},
			wantUsers:  guidUser1,
			wantGroups: NoGroupsSentinel,
		},
		{
			name: "non-guid identity excluded",
			entries: []types.PermissionEntry{
				{Kind: types.IdentityUser, IdentityID: "i:0#.f|membership|user@contoso.com"},
				{Kind: types.IdentityUser, IdentityID: guidUser1},
			},
			wantUsers:  guidUser1,
			wantGroups: NoGroupsSentinel,
		},
		{
			name: "site group with local numeric id excluded",
			entries: []types.PermissionEntry{
				{Kind: types.IdentitySiteGroup, IdentityID: "3"},
			},
			wantUsers:  NoUsersSentinel,
			wantGroups: NoGroupsSentinel,
		},
		{
			name: "site group with directory guid counts as group",
			entries: []types.PermissionEntry{
				{Kind: types.IdentitySiteGroup, IdentityID: guidGroup},
			},
			wantUsers:  NoUsersSentinel,
			wantGroups: guidGroup,
		},
		{
			name: "missing identity id excluded",
			entries: []types.PermissionEntry{
				{Kind: types.IdentityGroup, DisplayName: "Members"},
			},
			wantUsers:  NoUsersSentinel,
			wantGroups: NoGroupsSentinel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.entries)
			if got.UserIDs != tt.wantUsers {
				t.Errorf("UserIDs = %q, want %q", got.UserIDs, tt.wantUsers)
			}
			if got.GroupIDs != tt.wantGroups {
				t.Errorf("GroupIDs = %q, want %q", got.GroupIDs, tt.wantGroups)
			}
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	entries := []types.PermissionEntry{
		{Kind: types.IdentityUser, IdentityID: guidUser2},
		{Kind: types.IdentityUser, IdentityID: guidUser1},
	}
	reversed := []types.PermissionEntry{entries[1], entries[0]}

	if a, b := Encode(entries), Encode(reversed); a != b {
		t.Errorf("Encode() order-sensitive: %+v vs %+v", a, b)
	}
}

func TestIsGUID(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{guidUser1, true},
		{strings.ToUpper(guidUser1), true},
		{"", false},
		{"3", false},
		{"not-a-guid", false},
		{"{11111111-aaaa-4bbb-8ccc-111111111111}", false},
		{"urn:uuid:11111111-aaaa-4bbb-8ccc-111111111111", false},
		{"11111111aaaa4bbb8ccc111111111111", false},
		{"11111111-aaaa-4bbb-8ccc-11111111111x", false},
	}
	for _, tt := range tests {
		if got := isGUID(tt.value); got != tt.want {
			t.Errorf("isGUID(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestMetadataPatch(t *testing.T) {
	syncedAt := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	entries := []types.PermissionEntry{
		{
			ID:          "perm-1",
			Roles:       []string{"read"},
			Kind:        types.IdentityUser,
			DisplayName: "Ada Lovelace",
			Email:       "ada@contoso.com",
			IdentityID:  guidUser1,
		},
		{
			ID:          "perm-2",
			Roles:       []string{"write"},
			Kind:        types.IdentitySiteGroup,
			DisplayName: "Site Members",
			IdentityID:  "3",
		},
	}

	patch, err := MetadataPatch(entries, syncedAt)
	if err != nil {
		t.Fatalf("MetadataPatch() error = %v", err)
	}

	if patch[store.MetaUserIDs] != guidUser1 {
		t.Errorf("patch[%s] = %q, want %q", store.MetaUserIDs, patch[store.MetaUserIDs], guidUser1)
	}
	if patch[store.MetaGroupIDs] != NoGroupsSentinel {
		t.Errorf("patch[%s] = %q, want sentinel", store.MetaGroupIDs, patch[store.MetaGroupIDs])
	}
	if patch[store.MetaPermsSyncedAt] != "2026-03-01T10:30:00Z" {
		t.Errorf("patch[%s] = %q", store.MetaPermsSyncedAt, patch[store.MetaPermsSyncedAt])
	}

	// The raw projection keeps every entry, including the site-local one
	// the encoded fields excluded.
	var decoded []types.PermissionEntry
	if err := json.Unmarshal([]byte(patch[store.MetaPermissions]), &decoded); err != nil {
		t.Fatalf("raw projection is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("raw projection has %d entries, want 2", len(decoded))
	}
	if decoded[1].IdentityID != "3" || decoded[1].Kind != types.IdentitySiteGroup {
		t.Errorf("raw projection lost the excluded entry: %+v", decoded[1])
	}
}

func TestMetadataPatch_EmptyEntries(t *testing.T) {
	patch, err := MetadataPatch(nil, time.Now())
	if err != nil {
		t.Fatalf("MetadataPatch() error = %v", err)
	}
	if patch[store.MetaUserIDs] != NoUsersSentinel || patch[store.MetaGroupIDs] != NoGroupsSentinel {
		t.Errorf("empty set: user_ids=%q group_ids=%q, want sentinels",
			patch[store.MetaUserIDs], patch[store.MetaGroupIDs])
	}
	if patch[store.MetaPermissions] != "[]" {
		t.Errorf("patch[%s] = %q, want []", store.MetaPermissions, patch[store.MetaPermissions])
	}
}

func TestSummary(t *testing.T) {
	entries := []types.PermissionEntry{
		{DisplayName: "Ada Lovelace", Email: "ada@contoso.com", Roles: []string{"read", "write"}},
		{DisplayName: "Site Members", Roles: []string{"read"}},
	}
	got := Summary(entries)
	want := "Ada Lovelace<ada@contoso.com>:read,write; Site Members:read"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}

	if got := Summary(nil); got != "no permissions" {
		t.Errorf("Summary(nil) = %q", got)
	}
}
