// Package mocks provides test doubles for the sync engine's collaborators.
package mocks

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/HerbigniauxBenoit/spsync/internal/store"
	"github.com/HerbigniauxBenoit/spsync/internal/types"
)

// MockSource serves a canned listing and delta. Set the Func fields to
// override behavior per test.
type MockSource struct {
	Items []types.RemoteItem
	Delta *types.Delta

	ListAllFunc    func(ctx context.Context, visit func(types.RemoteItem) error) error
	FetchDeltaFunc func(ctx context.Context, token string) (*types.Delta, error)

	// DeltaTokens records every token passed to FetchDelta.
	DeltaTokens []string
}

func (m *MockSource) ListAll(ctx context.Context, visit func(types.RemoteItem) error) error {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx, visit)
	}
	for _, item := range m.Items {
		if err := visit(item); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockSource) FetchDelta(ctx context.Context, token string) (*types.Delta, error) {
	m.DeltaTokens = append(m.DeltaTokens, token)
	if m.FetchDeltaFunc != nil {
		return m.FetchDeltaFunc(ctx, token)
	}
	if m.Delta != nil {
		return m.Delta, nil
	}
	return &types.Delta{Initial: token == ""}, nil
}

// MockFetcher serves item content from the Content map. Missing items stream
// empty bodies.
type MockFetcher struct {
	Content   map[string]string
	FetchFunc func(ctx context.Context, itemID string) (io.ReadCloser, int64, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, itemID string) (io.ReadCloser, int64, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, itemID)
	}
	body := m.Content[itemID]
	return io.NopCloser(bytes.NewReader([]byte(body))), int64(len(body)), nil
}

// MockPermissions serves permission entries from the ByItem map.
type MockPermissions struct {
	ByItem          map[string][]types.PermissionEntry
	PermissionsFunc func(ctx context.Context, itemID string) ([]types.PermissionEntry, error)
}

func (m *MockPermissions) Permissions(ctx context.Context, itemID string) ([]types.PermissionEntry, error) {
	if m.PermissionsFunc != nil {
		return m.PermissionsFunc(ctx, itemID)
	}
	return m.ByItem[itemID], nil
}

// MockTokenStore keeps the token in memory and records writes.
type MockTokenStore struct {
	Token   string
	LoadErr error
	SaveErr error

	Saved   []string
	Cleared int
}

func (m *MockTokenStore) Load(ctx context.Context) (string, error) {
	if m.LoadErr != nil {
		return "", m.LoadErr
	}
	return m.Token, nil
}

func (m *MockTokenStore) Save(ctx context.Context, token string) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Token = token
	m.Saved = append(m.Saved, token)
	return nil
}

func (m *MockTokenStore) Clear(ctx context.Context) error {
	m.Token = ""
	m.Cleared++
	return nil
}

type memObject struct {
	content  []byte
	metadata map[string]string
}

// MemContentStore is an in-memory store.ContentStore. The zero value is
// ready to use; the Err hooks inject failures per key.
type MemContentStore struct {
	mu      sync.Mutex
	objects map[string]*memObject

	ListErr        error
	GetErr         func(key string) error
	PutErr         func(key string) error
	SetMetadataErr func(key string) error
	DeleteErr      func(key string) error
}

// Seed stores an object directly, bypassing the hooks.
func (m *MemContentStore) Seed(key, content string, metadata map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string]*memObject)
	}
	m.objects[key] = &memObject{content: []byte(content), metadata: copyMeta(metadata)}
}

// Len reports the number of stored objects.
func (m *MemContentStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *MemContentStore) List(ctx context.Context) (map[string]*store.Artifact, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*store.Artifact, len(m.objects))
	for key, obj := range m.objects {
		out[key] = &store.Artifact{
			Key:      key,
			Size:     int64(len(obj.content)),
			Metadata: copyMeta(obj.metadata),
		}
	}
	return out, nil
}

func (m *MemContentStore) Get(ctx context.Context, key string) (*store.Artifact, error) {
	if m.GetErr != nil {
		if err := m.GetErr(key); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, nil
	}
	return &store.Artifact{
		Key:      key,
		Size:     int64(len(obj.content)),
		Metadata: copyMeta(obj.metadata),
	}, nil
}

func (m *MemContentStore) GetContent(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (m *MemContentStore) Put(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) error {
	if m.PutErr != nil {
		if err := m.PutErr(key); err != nil {
			return err
		}
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string]*memObject)
	}
	m.objects[key] = &memObject{content: content, metadata: copyMeta(metadata)}
	return nil
}

func (m *MemContentStore) SetMetadata(ctx context.Context, key string, metadata map[string]string) error {
	if m.SetMetadataErr != nil {
		if err := m.SetMetadataErr(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return store.ErrNotFound
	}
	obj.metadata = copyMeta(metadata)
	return nil
}

func (m *MemContentStore) Delete(ctx context.Context, key string) error {
	if m.DeleteErr != nil {
		if err := m.DeleteErr(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemContentStore) Close() error { return nil }

func copyMeta(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
