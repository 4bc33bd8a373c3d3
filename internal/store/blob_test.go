package store

import (
	"testing"
)

func TestToAzureMetadata(t *testing.T) {
	got := toAzureMetadata(map[string]string{
		MetaItemID:      "item-1",
		MetaContentHash: "c1||e1",
	})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[MetaItemID] == nil || *got[MetaItemID] != "item-1" {
		t.Errorf("got[%s] = %v", MetaItemID, got[MetaItemID])
	}

	if toAzureMetadata(nil) != nil {
		t.Error("toAzureMetadata(nil) != nil")
	}
}

func TestFromAzureMetadata(t *testing.T) {
	empty := ""
	value := "item-1"
	got := fromAzureMetadata(map[string]*string{
		MetaItemID: &value,
		"nilkey":   nil,
		"emptykey": &empty,
	})
	if got[MetaItemID] != "item-1" {
		t.Errorf("got[%s] = %q", MetaItemID, got[MetaItemID])
	}
	if _, ok := got["nilkey"]; ok {
		t.Error("nil value should be dropped")
	}
	if v, ok := got["emptykey"]; !ok || v != "" {
		t.Errorf("got[emptykey] = %q, %v; want empty string preserved", v, ok)
	}
}

func TestIsDirectoryPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]string
		want bool
	}{
		{"hdi_isfolder true", map[string]string{"hdi_isfolder": "true"}, true},
		{"mixed case key and value", map[string]string{"Hdi_IsFolder": "True"}, true},
		{"hdi_isfolder false", map[string]string{"hdi_isfolder": "false"}, false},
		{"no marker", map[string]string{"other": "true"}, false},
		{"nil metadata", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDirectoryPlaceholder(tt.meta); got != tt.want {
				t.Errorf("isDirectoryPlaceholder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlobName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{"no prefix", "", "a/b.txt", "a/b.txt"},
		{"with prefix", "sharepoint-sync/", "a/b.txt", "sharepoint-sync/a/b.txt"},
		{"internal object", "sharepoint-sync/", internalPrefix + "delta-token", "sharepoint-sync/" + internalPrefix + "delta-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &BlobStore{prefix: tt.prefix}
			if got := s.blobName(tt.key); got != tt.want {
				t.Errorf("blobName(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
