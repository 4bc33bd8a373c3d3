package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// tokenKey is where the delta token lives inside the content store, under
// the internal namespace so listings never see it.
const tokenKey = internalPrefix + "delta-token"

// DeltaTokenStore persists the delta token as a small object in the same
// store that holds the artifacts, so state and data share one lifecycle.
type DeltaTokenStore struct {
	store  ContentStore
	logger logging.Logger
}

// NewDeltaTokenStore wraps a content store.
func NewDeltaTokenStore(cs ContentStore, logger logging.Logger) *DeltaTokenStore {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &DeltaTokenStore{store: cs, logger: logger}
}

// Load returns the saved token. A missing object means no token. A token
// that is not an absolute https URL is treated as absent and logged, so a
// corrupted state object degrades to a full recrawl instead of failing runs
// forever.
func (s *DeltaTokenStore) Load(ctx context.Context) (string, error) {
	body, err := s.store.GetContent(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load delta token: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, 16*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read delta token: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", nil
	}
	if !isValidToken(token) {
		s.logger.Warn("stored delta token is not a delta link, falling back to full crawl",
			logging.F("length", len(token)))
		return "", nil
	}
	return token, nil
}

// Save writes the token. Saving an empty token is rejected; use Clear.
func (s *DeltaTokenStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return utils.NewAppError(utils.ErrCodeTokenInvalid, "refusing to save empty delta token", nil)
	}
	if !isValidToken(token) {
		return utils.NewAppError(utils.ErrCodeTokenInvalid,
			"refusing to save malformed delta token", nil)
	}

	meta := map[string]string{
		"spsync_object": "delta-token",
		"saved_at":      time.Now().UTC().Format(time.RFC3339),
	}
	reader := strings.NewReader(token)
	if err := s.store.Put(ctx, tokenKey, reader, int64(len(token)), meta); err != nil {
		return fmt.Errorf("failed to save delta token: %w", err)
	}
	return nil
}

// Clear removes the token so the next run starts a fresh delta cycle.
func (s *DeltaTokenStore) Clear(ctx context.Context) error {
	if err := s.store.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("failed to clear delta token: %w", err)
	}
	return nil
}

// isValidToken checks the structural shape of a delta token: Graph delta
// links are absolute https URLs.
func isValidToken(token string) bool {
	u, err := url.Parse(token)
	return err == nil && u.Scheme == "https" && u.Host != ""
}
