package store

import (
	"context"
	"io"

	"github.com/HerbigniauxBenoit/spsync/internal/logging"
)

// DryRunStore wraps a content store, logging mutations instead of applying
// them. Reads pass through so reconciliation decisions stay authoritative.
type DryRunStore struct {
	inner  ContentStore
	logger logging.Logger
}

// NewDryRunStore wraps inner.
func NewDryRunStore(inner ContentStore, logger logging.Logger) *DryRunStore {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &DryRunStore{inner: inner, logger: logger}
}

func (s *DryRunStore) List(ctx context.Context) (map[string]*Artifact, error) {
	return s.inner.List(ctx)
}

func (s *DryRunStore) Get(ctx context.Context, key string) (*Artifact, error) {
	return s.inner.Get(ctx, key)
}

func (s *DryRunStore) GetContent(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.inner.GetContent(ctx, key)
}

func (s *DryRunStore) Put(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) error {
	// Drain so upstream rate accounting and stream errors behave as in a
	// real run.
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return err
	}
	s.logger.Info("[dry-run] would upload artifact",
		logging.F("key", key),
		logging.F("bytes", n),
	)
	return nil
}

func (s *DryRunStore) SetMetadata(ctx context.Context, key string, metadata map[string]string) error {
	s.logger.Info("[dry-run] would set metadata",
		logging.F("key", key),
		logging.F("keys", len(metadata)),
	)
	return nil
}

func (s *DryRunStore) Delete(ctx context.Context, key string) error {
	s.logger.Info("[dry-run] would delete artifact", logging.F("key", key))
	return nil
}

func (s *DryRunStore) Close() error {
	return s.inner.Close()
}

// DryRunTokenStore suppresses token writes while letting reads through.
type DryRunTokenStore struct {
	inner  TokenStore
	logger logging.Logger
}

// NewDryRunTokenStore wraps inner.
func NewDryRunTokenStore(inner TokenStore, logger logging.Logger) *DryRunTokenStore {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &DryRunTokenStore{inner: inner, logger: logger}
}

func (s *DryRunTokenStore) Load(ctx context.Context) (string, error) {
	return s.inner.Load(ctx)
}

func (s *DryRunTokenStore) Save(ctx context.Context, token string) error {
	s.logger.Info("[dry-run] would save delta token", logging.F("length", len(token)))
	return nil
}

func (s *DryRunTokenStore) Clear(ctx context.Context) error {
	s.logger.Info("[dry-run] would clear delta token")
	return nil
}
