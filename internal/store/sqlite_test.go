package store

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	meta := map[string]string{
		MetaItemID:       "item-1",
		MetaLastModified: "2026-03-01T10:00:00Z",
		MetaContentHash:  "c1||e1",
	}
	if err := s.Put(ctx, "General/q3.pdf", strings.NewReader("pdf-bytes"), 9, meta); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	artifact, err := s.Get(ctx, "General/q3.pdf")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if artifact == nil {
		t.Fatal("Get() = nil, want artifact")
	}
	if artifact.Size != 9 {
		t.Errorf("Size = %d, want 9", artifact.Size)
	}
	if artifact.Metadata[MetaItemID] != "item-1" {
		t.Errorf("Metadata[%s] = %q", MetaItemID, artifact.Metadata[MetaItemID])
	}

	body, err := s.GetContent(ctx, "General/q3.pdf")
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "pdf-bytes" {
		t.Errorf("GetContent() = %q", data)
	}
}

func TestSQLiteStore_PutOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "a.txt", strings.NewReader("v1"), 2, map[string]string{MetaContentHash: "h1"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, "a.txt", strings.NewReader("v2-longer"), 9, map[string]string{MetaContentHash: "h2"}); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}

	artifact, err := s.Get(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if artifact.Size != 9 || artifact.Metadata[MetaContentHash] != "h2" {
		t.Errorf("after overwrite: %+v", artifact)
	}
}

func TestSQLiteStore_GetAbsent(t *testing.T) {
	s := openTestStore(t)

	artifact, err := s.Get(context.Background(), "missing.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if artifact != nil {
		t.Errorf("Get() = %+v, want nil for absent key", artifact)
	}

	if _, err := s.GetContent(context.Background(), "missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetContent() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_ListExcludesInternal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "a.txt", strings.NewReader("a"), 1, nil)
	s.Put(ctx, "b/c.txt", strings.NewReader("c"), 1, nil)
	s.Put(ctx, internalPrefix+"delta-token", strings.NewReader("https://x"), 9, nil)

	artifacts, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("List() = %d artifacts, want 2", len(artifacts))
	}
	if _, ok := artifacts["a.txt"]; !ok {
		t.Error("List() missing a.txt")
	}
	if _, ok := artifacts[internalPrefix+"delta-token"]; ok {
		t.Error("List() leaked internal bookkeeping object")
	}
}

func TestSQLiteStore_MetadataNormalizedOnRead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Simulate an artifact written by an old release.
	old := map[string]string{
		"metadata_user_ids":     "u-old",
		"metdata_acl_group_ids": "g-old",
		MetaItemID:              "item-1",
	}
	if err := s.Put(ctx, "legacy.txt", strings.NewReader("x"), 1, old); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	artifact, err := s.Get(ctx, "legacy.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if artifact.Metadata[MetaUserIDs] != "u-old" {
		t.Errorf("Metadata[%s] = %q, want migrated u-old", MetaUserIDs, artifact.Metadata[MetaUserIDs])
	}
	if artifact.Metadata[MetaGroupIDs] != "g-old" {
		t.Errorf("Metadata[%s] = %q, want migrated g-old", MetaGroupIDs, artifact.Metadata[MetaGroupIDs])
	}
	if _, ok := artifact.Metadata["metadata_user_ids"]; ok {
		t.Error("deprecated key survived normalization")
	}
}

func TestSQLiteStore_SetMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "a.txt", strings.NewReader("a"), 1, map[string]string{MetaItemID: "item-1"})

	patch := map[string]string{MetaItemID: "item-1", MetaUserIDs: "u1|u2"}
	if err := s.SetMetadata(ctx, "a.txt", patch); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}

	artifact, _ := s.Get(ctx, "a.txt")
	if artifact.Metadata[MetaUserIDs] != "u1|u2" {
		t.Errorf("Metadata[%s] = %q", MetaUserIDs, artifact.Metadata[MetaUserIDs])
	}

	// Content untouched by metadata writes.
	body, _ := s.GetContent(ctx, "a.txt")
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "a" {
		t.Errorf("content = %q after SetMetadata, want a", data)
	}
}

func TestSQLiteStore_SetMetadataAbsent(t *testing.T) {
	s := openTestStore(t)

	err := s.SetMetadata(context.Background(), "missing.txt", map[string]string{MetaUserIDs: "u"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetMetadata() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_DeleteIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "a.txt", strings.NewReader("a"), 1, nil)

	if err := s.Delete(ctx, "a.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "a.txt"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}

	artifact, _ := s.Get(ctx, "a.txt")
	if artifact != nil {
		t.Error("artifact still present after delete")
	}
}
