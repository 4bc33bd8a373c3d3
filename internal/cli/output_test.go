package cli

import (
	"testing"

	"github.com/HerbigniauxBenoit/spsync/internal/types"
)

func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.bytes); got != tc.want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		if got := truncate("abc", 10); got != "abc" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("exact length passes through", func(t *testing.T) {
		if got := truncate("abcde", 5); got != "abcde" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("long strings get an ellipsis", func(t *testing.T) {
		got := truncate("abcdefghij", 8)
		if got != "abcde..." {
			t.Fatalf("got %q", got)
		}
		if len(got) != 8 {
			t.Fatalf("length %d, want 8", len(got))
		}
	})
}

func TestStatsRows(t *testing.T) {
	stats := &types.RunStats{
		FilesScanned:      12,
		FilesAdded:        3,
		FilesUpdated:      2,
		FilesDeleted:      1,
		FilesUnchanged:    5,
		FilesFailed:       1,
		BytesTransferred:  2048,
		PermissionsSynced: 5,
		PermissionsFailed: 0,
		SyncMode:          types.ModeDeltaIncremental,
	}

	rows := statsRows(stats)
	if len(rows) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(rows))
	}

	want := map[string]string{
		"mode":               "delta-incremental",
		"scanned":            "12",
		"added":              "3",
		"failed":             "1",
		"transferred":        "2.0 KB",
		"permissions synced": "5",
	}
	for _, row := range rows {
		if len(row) != 2 {
			t.Fatalf("row %v does not have 2 columns", row)
		}
		if expected, ok := want[row[0]]; ok && row[1] != expected {
			t.Errorf("row %q = %q, want %q", row[0], row[1], expected)
		}
	}
}
