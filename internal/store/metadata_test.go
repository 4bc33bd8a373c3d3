package store

import "testing"

func TestNormalizeMetadata(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
		want map[string]string
	}{
		{
			name: "current keys pass through",
			in: map[string]string{
				MetaUserIDs:  "a|b",
				MetaGroupIDs: "g1",
			},
			want: map[string]string{
				MetaUserIDs:  "a|b",
				MetaGroupIDs: "g1",
			},
		},
		{
			name: "deprecated keys renamed",
			in: map[string]string{
				"metadata_user_ids":  "a",
				"acl_group_ids_list": "g",
			},
			want: map[string]string{
				MetaUserIDs:  "a",
				MetaGroupIDs: "g",
			},
		},
		{
			name: "misspelled legacy group key renamed",
			in: map[string]string{
				"metdata_acl_group_ids": "g-legacy",
			},
			want: map[string]string{
				MetaGroupIDs: "g-legacy",
			},
		},
		{
			name: "current key wins over deprecated",
			in: map[string]string{
				MetaUserIDs:         "current",
				"metadata_user_ids": "stale",
			},
			want: map[string]string{
				MetaUserIDs: "current",
			},
		},
		{
			name: "keys lowercased",
			in: map[string]string{
				"Sharepoint_item_id": "item-1",
				"User_ids":           "u1",
			},
			want: map[string]string{
				MetaItemID:  "item-1",
				MetaUserIDs: "u1",
			},
		},
		{
			name: "unrelated keys preserved",
			in: map[string]string{
				"content_type": "application/pdf",
			},
			want: map[string]string{
				"content_type": "application/pdf",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeMetadata(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeMetadata() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("NormalizeMetadata()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestNormalizeMetadata_Nil(t *testing.T) {
	if got := NormalizeMetadata(nil); got != nil {
		t.Errorf("NormalizeMetadata(nil) = %v, want nil", got)
	}
}

func TestMergeMetadata(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	patch := map[string]string{"b": "20", "c": "3"}

	got := MergeMetadata(base, patch)

	if got["a"] != "1" || got["b"] != "20" || got["c"] != "3" {
		t.Errorf("MergeMetadata() = %v", got)
	}
	if base["b"] != "2" {
		t.Error("MergeMetadata() mutated base map")
	}
}
