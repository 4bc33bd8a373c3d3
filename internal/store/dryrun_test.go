package store

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HerbigniauxBenoit/spsync/internal/logging"
)

func newDryRunFixture(t *testing.T) (*DryRunStore, *SQLiteStore) {
	t.Helper()
	inner, err := OpenSQLite(filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { inner.Close() })
	return NewDryRunStore(inner, &logging.NoOpLogger{}), inner
}

func TestDryRunStore_SuppressesMutations(t *testing.T) {
	dry, inner := newDryRunFixture(t)
	ctx := context.Background()

	inner.Put(ctx, "existing.txt", strings.NewReader("keep"), 4, map[string]string{MetaItemID: "item-1"})

	if err := dry.Put(ctx, "new.txt", strings.NewReader("body"), 4, nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := dry.SetMetadata(ctx, "existing.txt", map[string]string{MetaUserIDs: "u1"}); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}
	if err := dry.Delete(ctx, "existing.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if artifact, _ := inner.Get(ctx, "new.txt"); artifact != nil {
		t.Error("dry-run Put reached the backing store")
	}
	artifact, _ := inner.Get(ctx, "existing.txt")
	if artifact == nil {
		t.Fatal("dry-run Delete reached the backing store")
	}
	if _, ok := artifact.Metadata[MetaUserIDs]; ok {
		t.Error("dry-run SetMetadata reached the backing store")
	}
}

func TestDryRunStore_PutDrainsBody(t *testing.T) {
	dry, _ := newDryRunFixture(t)

	body := strings.NewReader("stream-must-be-consumed")
	if err := dry.Put(context.Background(), "a.txt", body, int64(body.Len()), nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if body.Len() != 0 {
		t.Errorf("Put() left %d unread bytes, want body fully drained", body.Len())
	}
}

func TestDryRunStore_ReadsPassThrough(t *testing.T) {
	dry, inner := newDryRunFixture(t)
	ctx := context.Background()

	inner.Put(ctx, "a.txt", strings.NewReader("alpha"), 5, map[string]string{MetaItemID: "item-1"})

	artifacts, err := dry.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("List() = %d artifacts, want 1", len(artifacts))
	}

	artifact, err := dry.Get(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if artifact == nil || artifact.Metadata[MetaItemID] != "item-1" {
		t.Errorf("Get() = %+v", artifact)
	}

	bodyReader, err := dry.GetContent(ctx, "a.txt")
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	data, _ := io.ReadAll(bodyReader)
	bodyReader.Close()
	if string(data) != "alpha" {
		t.Errorf("GetContent() = %q", data)
	}
}

func TestDryRunTokenStore_SuppressesWrites(t *testing.T) {
	_, inner := newDryRunFixture(t)
	ctx := context.Background()

	real := NewDeltaTokenStore(inner, &logging.NoOpLogger{})
	if err := real.Save(ctx, sampleToken); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	dry := NewDryRunTokenStore(real, &logging.NoOpLogger{})

	got, err := dry.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != sampleToken {
		t.Errorf("Load() = %q, want pass-through %q", got, sampleToken)
	}

	if err := dry.Save(ctx, "https://graph.microsoft.com/v1.0/drives/d1/root/delta?token=next"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := dry.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	got, _ = real.Load(ctx)
	if got != sampleToken {
		t.Errorf("backing token = %q after dry-run writes, want untouched %q", got, sampleToken)
	}
}
