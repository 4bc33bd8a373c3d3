package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// BlobStore keeps artifacts in an Azure Blob container, optionally under a
// key prefix. Artifact keys never include the prefix.
type BlobStore struct {
	client    *azblob.Client
	container string
	prefix    string
	logger    logging.Logger
}

// NewBlobStore builds a store over one container.
func NewBlobStore(accountName, containerName, prefix string, cred azcore.TokenCredential, logger logging.Logger) (*BlobStore, error) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable, "failed to create blob client", err)
	}

	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		prefix += "/"
	}

	return &BlobStore{
		client:    client,
		container: containerName,
		prefix:    prefix,
		logger:    logger,
	}, nil
}

// EnsureContainer creates the container when it does not exist yet. A
// principal with data-plane access but no management rights gets a
// permission error from the create call; the container is then assumed to
// exist already.
func (s *BlobStore) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	switch {
	case err == nil, bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		return nil
	case bloberror.HasCode(err, bloberror.AuthorizationFailure, bloberror.AuthorizationPermissionMismatch, bloberror.InsufficientAccountPermissions):
		s.logger.Debug("container create not permitted, assuming it exists",
			logging.F("container", s.container))
		return nil
	}
	return utils.NewAppError(utils.ErrCodeStoreUnavailable,
		fmt.Sprintf("failed to ensure container %q", s.container), err)
}

func (s *BlobStore) blobName(key string) string {
	return s.prefix + key
}

func (s *BlobStore) blobClient(key string) *blob.Client {
	return s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(s.blobName(key))
}

// List pages through the container under the prefix. Directory placeholders
// written by hierarchical-namespace accounts and internal bookkeeping
// objects are skipped.
func (s *BlobStore) List(ctx context.Context) (map[string]*Artifact, error) {
	artifacts := make(map[string]*Artifact)

	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix:  &s.prefix,
		Include: azblob.ListBlobsInclude{Metadata: true},
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable, "failed to list blobs", err)
		}

		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			key := strings.TrimPrefix(*item.Name, s.prefix)
			if key == "" || strings.HasPrefix(key, internalPrefix) {
				continue
			}

			meta := fromAzureMetadata(item.Metadata)
			if isDirectoryPlaceholder(meta) {
				continue
			}

			artifact := &Artifact{Key: key, Metadata: NormalizeMetadata(meta)}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				artifact.Size = *item.Properties.ContentLength
			}
			artifacts[key] = artifact
		}
	}

	return artifacts, nil
}

// isDirectoryPlaceholder detects the zero-byte folder markers ADLS Gen2
// accounts expose through the blob endpoint.
func isDirectoryPlaceholder(meta map[string]string) bool {
	for k, v := range meta {
		if strings.EqualFold(k, "hdi_isfolder") && strings.EqualFold(v, "true") {
			return true
		}
	}
	return false
}

func (s *BlobStore) Get(ctx context.Context, key string) (*Artifact, error) {
	props, err := s.blobClient(key).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to read blob %q", key), err)
	}

	artifact := &Artifact{
		Key:      key,
		Metadata: NormalizeMetadata(fromAzureMetadata(props.Metadata)),
	}
	if props.ContentLength != nil {
		artifact.Size = *props.ContentLength
	}
	return artifact, nil
}

func (s *BlobStore) GetContent(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName(key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to download blob %q", key), err)
	}
	return resp.Body, nil
}

func (s *BlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, metadata map[string]string) error {
	_, err := s.client.UploadStream(ctx, s.container, s.blobName(key), body, &azblob.UploadStreamOptions{
		Metadata: toAzureMetadata(metadata),
	})
	if err != nil {
		return utils.NewAppError(utils.ErrCodeTransferFailed,
			fmt.Sprintf("failed to upload blob %q", key), err)
	}
	return nil
}

func (s *BlobStore) SetMetadata(ctx context.Context, key string, metadata map[string]string) error {
	_, err := s.blobClient(key).SetMetadata(ctx, toAzureMetadata(metadata), nil)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to set metadata on %q", key), err)
	}
	return nil
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, s.blobName(key), nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return utils.NewAppError(utils.ErrCodeStoreUnavailable,
			fmt.Sprintf("failed to delete blob %q", key), err)
	}
	return nil
}

func (s *BlobStore) Close() error {
	return nil
}

// The blob service wants string pointers; artifact metadata uses plain maps.
func toAzureMetadata(meta map[string]string) map[string]*string {
	if meta == nil {
		return nil
	}
	out := make(map[string]*string, len(meta))
	for k, v := range meta {
		out[k] = &v
	}
	return out
}

func fromAzureMetadata(meta map[string]*string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
