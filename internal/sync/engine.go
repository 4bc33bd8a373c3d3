// Package sync reconciles a SharePoint document library against an artifact
// store. A run is either a full crawl of the library or an application of
// the delta changes accumulated since the previous run's token.
package sync

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/HerbigniauxBenoit/spsync/internal/graph"
	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/permissions"
	"github.com/HerbigniauxBenoit/spsync/internal/store"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// Source enumerates the remote library, either wholesale or through the
// delta API. Satisfied by *changes.Manager.
type Source interface {
	// ListAll calls visit for every file under the sync root.
	ListAll(ctx context.Context, visit func(types.RemoteItem) error) error
	// FetchDelta returns the changes since token; "" starts a fresh cycle.
	FetchDelta(ctx context.Context, token string) (*types.Delta, error)
}

// ContentFetcher streams one item's content. Satisfied by *changes.Manager.
type ContentFetcher interface {
	Fetch(ctx context.Context, itemID string) (io.ReadCloser, int64, error)
}

// PermissionSource resolves the access grants on one item. Satisfied by
// *changes.Manager.
type PermissionSource interface {
	Permissions(ctx context.Context, itemID string) ([]types.PermissionEntry, error)
}

// EngineConfig carries the engine's collaborators.
type EngineConfig struct {
	Source      Source
	Fetcher     ContentFetcher
	Permissions PermissionSource
	Contents    store.ContentStore
	Tokens      store.TokenStore
	Logger      logging.Logger
}

// Options are the per-run switches.
type Options struct {
	ForceFull       bool
	DryRun          bool
	DeleteOrphans   bool
	SyncPermissions bool
	Concurrency     int
}

// Engine executes reconciliation runs. It holds no per-run state and is safe
// to reuse; overlap protection is the Runner's job.
type Engine struct {
	source   Source
	fetcher  ContentFetcher
	perms    PermissionSource
	contents store.ContentStore
	tokens   store.TokenStore
	logger   logging.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Engine{
		source:   cfg.Source,
		fetcher:  cfg.Fetcher,
		perms:    cfg.Permissions,
		contents: cfg.Contents,
		tokens:   cfg.Tokens,
		logger:   logger,
	}
}

// Run executes one reconciliation pass. The returned stats are valid even
// when err is non-nil; they cover the work done up to the abort.
func (e *Engine) Run(ctx context.Context, opts Options) (types.RunStats, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = utils.DefaultConcurrency
	}

	contents, tokens := e.contents, e.tokens
	if opts.DryRun {
		e.logger.Info("dry-run: mutations will be logged, not applied")
		contents = store.NewDryRunStore(contents, e.logger)
		tokens = store.NewDryRunTokenStore(tokens, e.logger)
	}

	r := &run{
		source:   e.source,
		fetcher:  e.fetcher,
		perms:    e.perms,
		contents: contents,
		tokens:   tokens,
		logger:   e.logger,
		opts:     opts,
	}

	started := time.Now()
	var err error
	if opts.ForceFull {
		r.stats.setMode(types.ModeFull)
		err = r.full(ctx)
	} else {
		err = r.delta(ctx)
	}
	if err != nil && utils.ErrorCode(err) == utils.ErrCodeUnknown &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		err = utils.NewAppError(utils.ErrCodeCancelled, "sync run cancelled", err)
	}

	stats := r.stats.Snapshot()
	fields := []logging.Field{
		logging.F("mode", stats.SyncMode),
		logging.F("scanned", stats.FilesScanned),
		logging.F("added", stats.FilesAdded),
		logging.F("updated", stats.FilesUpdated),
		logging.F("deleted", stats.FilesDeleted),
		logging.F("unchanged", stats.FilesUnchanged),
		logging.F("failed", stats.FilesFailed),
		logging.F("bytes", stats.BytesTransferred),
		logging.F("duration", time.Since(started).Round(time.Millisecond).String()),
	}
	if err != nil {
		e.logger.Error("sync run aborted", append(fields, logging.F("error", err.Error()))...)
		return stats, err
	}
	e.logger.Info("sync run complete", fields...)
	return stats, nil
}

// run is the state of a single pass: the (possibly dry-run wrapped) stores,
// the per-run options and the counters.
type run struct {
	source   Source
	fetcher  ContentFetcher
	perms    PermissionSource
	contents store.ContentStore
	tokens   store.TokenStore
	logger   logging.Logger
	opts     Options
	stats    accumulator
}

// permTarget is one successfully synced file queued for permission
// propagation.
type permTarget struct {
	itemID string
	key    string
}

// full crawls the whole library, reconciles every file against the store,
// then removes artifacts the crawl did not visit. A listing error aborts
// before the orphan sweep: a truncated walk must never drive deletion.
func (r *run) full(ctx context.Context) error {
	existing, err := r.contents.List(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("full sync starting",
		logging.F("existing_artifacts", len(existing)),
		logging.F("delete_orphans", r.opts.DeleteOrphans),
	)

	// seen is written only by the walk below and read only after the pool
	// drains.
	seen := make(map[string]bool)
	var targets []permTarget
	var targetsMu sync.Mutex

	jobs := make(chan types.RemoteItem)
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if ctx.Err() != nil {
					r.stats.failed.Add(1)
					continue
				}
				key := store.KeyFromPath(item.Path)
				if !r.reconcileItem(ctx, item, key, existing[key]) {
					continue
				}
				if r.opts.SyncPermissions {
					targetsMu.Lock()
					targets = append(targets, permTarget{itemID: item.ID, key: key})
					targetsMu.Unlock()
				}
			}
		}()
	}

	walkErr := r.source.ListAll(ctx, func(item types.RemoteItem) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.stats.scanned.Add(1)
		key := store.KeyFromPath(item.Path)
		if key == "" {
			r.stats.failed.Add(1)
			r.logger.Error("item has no usable path",
				logging.F("item_id", item.ID),
				logging.F("name", item.Name),
			)
			return nil
		}
		seen[key] = true
		jobs <- item
		return nil
	})
	close(jobs)
	wg.Wait()

	if walkErr != nil {
		return walkErr
	}

	if r.opts.DeleteOrphans {
		r.removeOrphans(ctx, existing, seen)
	}
	r.syncPermissions(ctx, targets)
	return nil
}

// delta applies the change sequence accumulated since the saved token. A
// missing or unreadable token degrades to a fresh cycle rather than aborting.
func (r *run) delta(ctx context.Context) error {
	token, err := r.tokens.Load(ctx)
	if err != nil {
		r.logger.Warn("delta token unavailable, starting a fresh cycle",
			logging.F("error", err.Error()))
		token = ""
	}
	if token == "" {
		r.stats.setMode(types.ModeDeltaInitial)
	} else {
		r.stats.setMode(types.ModeDeltaIncremental)
	}

	delta, err := r.source.FetchDelta(ctx, token)
	if err != nil && token != "" && graph.IsGone(err) {
		r.logger.Warn("delta token rejected by the service, starting a fresh cycle")
		r.stats.setMode(types.ModeDeltaInitial)
		delta, err = r.source.FetchDelta(ctx, "")
	}
	if err != nil {
		return err
	}
	if delta.Initial {
		r.stats.setMode(types.ModeDeltaInitial)
	}

	r.logger.Info("applying delta",
		logging.F("changes", len(delta.Changes)),
		logging.F("initial", delta.Initial),
	)

	targets := r.applyChanges(ctx, delta.Changes)

	if delta.Token != "" {
		// Persisted even when items failed: the next cycle must not replay
		// the whole sequence. The detached context keeps a fully fetched
		// token from being dropped on cancellation.
		if err := r.tokens.Save(context.WithoutCancel(ctx), delta.Token); err != nil {
			r.logger.Error("failed to persist delta token", logging.F("error", err.Error()))
		}
	}

	r.syncPermissions(ctx, targets)
	return nil
}

// applyChanges fans the change sequence out to the pool and returns the
// successfully upserted files. Folder events carry no content and are
// discarded; file descendants of a changed folder arrive as their own
// changes.
func (r *run) applyChanges(ctx context.Context, changes []types.Change) []permTarget {
	var targets []permTarget
	var mu sync.Mutex

	r.forEach(len(changes), func(i int) {
		change := changes[i]
		if change.Kind == types.ChangeFolder {
			r.logger.Debug("skipping folder change", logging.F("name", change.ItemName))
			return
		}
		r.stats.scanned.Add(1)
		if ctx.Err() != nil {
			r.stats.failed.Add(1)
			return
		}
		if change.Kind == types.ChangeDeleted {
			r.applyDelete(ctx, change)
			return
		}

		item := *change.Item
		key := store.KeyFromPath(item.Path)
		if key == "" {
			r.stats.failed.Add(1)
			r.logger.Error("change carries no usable path",
				logging.F("item_id", item.ID),
				logging.F("name", item.Name),
			)
			return
		}
		if err := r.upsert(ctx, item, key); err != nil {
			r.stats.failed.Add(1)
			r.logger.Error("artifact sync failed",
				logging.F("key", key),
				logging.F("item_id", item.ID),
				logging.F("error", err.Error()),
			)
			return
		}
		r.stats.added.Add(1)
		r.logger.Info("synced changed artifact", logging.F("key", key))
		mu.Lock()
		targets = append(targets, permTarget{itemID: item.ID, key: key})
		mu.Unlock()
	})
	return targets
}

// applyDelete handles one remote tombstone. Remote deletions only propagate
// when orphan deletion is enabled.
func (r *run) applyDelete(ctx context.Context, change types.Change) {
	if !r.opts.DeleteOrphans {
		r.logger.Info("remote deletion ignored, orphan deletion disabled",
			logging.F("item_id", change.ItemID),
			logging.F("name", change.ItemName),
		)
		return
	}
	key := store.KeyFromPath(change.Path)
	if key == "" {
		r.stats.failed.Add(1)
		r.logger.Error("deletion carries no path, artifact unresolvable",
			logging.F("item_id", change.ItemID),
			logging.F("name", change.ItemName),
		)
		return
	}
	if err := r.contents.Delete(ctx, key); err != nil {
		r.stats.failed.Add(1)
		r.logger.Error("artifact delete failed",
			logging.F("key", key),
			logging.F("error", err.Error()),
		)
		return
	}
	r.stats.deleted.Add(1)
	r.logger.Info("deleted artifact", logging.F("key", key))
}

// reconcileItem brings one remote file up to date in the store and reports
// whether the file counts as successfully visited.
func (r *run) reconcileItem(ctx context.Context, item types.RemoteItem, key string, prior *store.Artifact) bool {
	if prior != nil && !shouldUpdate(item, prior) {
		r.stats.unchanged.Add(1)
		r.logger.Debug("artifact up to date", logging.F("key", key))
		return true
	}
	if err := r.upsert(ctx, item, key); err != nil {
		r.stats.failed.Add(1)
		r.logger.Error("artifact sync failed",
			logging.F("key", key),
			logging.F("item_id", item.ID),
			logging.F("error", err.Error()),
		)
		return false
	}
	if prior == nil {
		r.stats.added.Add(1)
		r.logger.Info("added artifact", logging.F("key", key), logging.F("size", item.Size))
	} else {
		r.stats.updated.Add(1)
		r.logger.Info("updated artifact", logging.F("key", key), logging.F("size", item.Size))
	}
	return true
}

// upsert downloads one file and writes it with its sync metadata. Put
// replaces metadata wholesale, so ACL fields reset here until permission
// propagation rewrites them.
func (r *run) upsert(ctx context.Context, item types.RemoteItem, key string) error {
	body, size, err := r.fetcher.Fetch(ctx, item.ID)
	if err != nil {
		return err
	}
	defer body.Close()

	metadata := map[string]string{
		store.MetaItemID: item.ID,
	}
	if !item.LastModified.IsZero() {
		metadata[store.MetaLastModified] = item.LastModified.UTC().Format(time.RFC3339)
	}
	if item.ContentHash != "" {
		metadata[store.MetaContentHash] = item.ContentHash
	}

	counted := &countingReader{r: body}
	if err := r.contents.Put(ctx, key, counted, size, metadata); err != nil {
		return err
	}
	r.stats.bytes.Add(counted.n)
	return nil
}

// removeOrphans deletes every stored artifact the walk did not visit.
func (r *run) removeOrphans(ctx context.Context, existing map[string]*store.Artifact, seen map[string]bool) {
	for key := range existing {
		if seen[key] {
			continue
		}
		if err := r.contents.Delete(ctx, key); err != nil {
			r.stats.failed.Add(1)
			r.logger.Error("orphan delete failed",
				logging.F("key", key),
				logging.F("error", err.Error()),
			)
			continue
		}
		r.stats.deleted.Add(1)
		r.logger.Info("deleted orphaned artifact", logging.F("key", key))
	}
}

// syncPermissions merges each target's encoded ACL metadata into its
// artifact.
func (r *run) syncPermissions(ctx context.Context, targets []permTarget) {
	if !r.opts.SyncPermissions || len(targets) == 0 {
		return
	}
	r.logger.Info("propagating permissions", logging.F("files", len(targets)))

	r.forEach(len(targets), func(i int) {
		t := targets[i]
		if ctx.Err() != nil {
			r.stats.permsFailed.Add(1)
			return
		}
		if err := r.propagatePermissions(ctx, t); err != nil {
			r.stats.permsFailed.Add(1)
			r.logger.Error("permission sync failed",
				logging.F("key", t.key),
				logging.F("item_id", t.itemID),
				logging.F("error", err.Error()),
			)
			return
		}
		r.stats.permsSynced.Add(1)
	})
}

func (r *run) propagatePermissions(ctx context.Context, t permTarget) error {
	entries, err := r.perms.Permissions(ctx, t.itemID)
	if err != nil {
		return err
	}
	r.logger.Debug("resolved permissions",
		logging.F("key", t.key),
		logging.F("grants", permissions.Summary(entries)),
	)
	patch, err := permissions.MetadataPatch(entries, time.Now())
	if err != nil {
		return err
	}
	artifact, err := r.contents.Get(ctx, t.key)
	if err != nil {
		return err
	}
	var base map[string]string
	if artifact != nil {
		base = artifact.Metadata
	}
	return r.contents.SetMetadata(ctx, t.key, store.MergeMetadata(base, patch))
}

// forEach fans n jobs out to the run's worker pool. A handler failure never
// cancels siblings, and every job is delivered even after cancellation so
// the counters account for the whole sequence; handlers fast-fail cancelled
// jobs themselves.
func (r *run) forEach(n int, handler func(int)) {
	if n == 0 {
		return
	}
	workers := r.opts.Concurrency
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				handler(idx)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// shouldUpdate decides whether a stored artifact is stale. The content
// fingerprint is conclusive when both sides carry one; without fingerprints
// only a strictly newer remote timestamp forces a transfer. Artifacts with no
// readable sync state are always refreshed.
func shouldUpdate(item types.RemoteItem, prior *store.Artifact) bool {
	if prior == nil || len(prior.Metadata) == 0 {
		return true
	}
	storedHash := prior.Metadata[store.MetaContentHash]
	if storedHash != "" && item.ContentHash != "" {
		return storedHash != item.ContentHash
	}
	storedMod := prior.Metadata[store.MetaLastModified]
	if storedMod == "" {
		return true
	}
	stored, err := time.Parse(time.RFC3339, storedMod)
	if err != nil {
		return true
	}
	return item.LastModified.After(stored)
}

// countingReader tallies the bytes actually read so transfer accounting
// reflects streamed reality rather than the advertised size.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
