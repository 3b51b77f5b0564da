package blobstage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/railwayapp/funcpush/internal/deployerr"
)

// AzureStore is a Store backed by one blob container.
type AzureStore struct {
	client *container.Client
}

// NewAzureStore is the StoreFactory used in production. SDK retries are off;
// the uploader owns the retry budget.
func NewAzureStore(connectionString, containerName string) (Store, error) {
	opts := &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}
	client, err := container.NewClientFromConnectionString(connectionString, containerName, opts)
	if err != nil {
		return nil, deployerr.Validation("invalid storage connection string: %v", err)
	}
	return &AzureStore{client: client}, nil
}

func (s *AzureStore) EnsureContainer(ctx context.Context) error {
	_, err := s.client.Create(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return storageError("creating container", err)
	}
	return nil
}

func (s *AzureStore) Upload(ctx context.Context, name string, body io.Reader, contentType string, checksum []byte) error {
	_, err := s.client.NewBlockBlobClient(name).UploadStream(ctx, body, &blockblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentType),
			BlobContentMD5:  checksum,
		},
	})
	if err != nil {
		return storageError("uploading package", err)
	}
	return nil
}

func (s *AzureStore) Checksum(ctx context.Context, name string) ([]byte, error) {
	props, err := s.client.NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		return nil, storageError("reading blob properties", err)
	}
	return props.ContentMD5, nil
}

func (s *AzureStore) ReadURL(name string, start, expiry time.Time) (string, error) {
	u, err := s.client.NewBlobClient(name).GetSASURL(sas.BlobPermissions{Read: true}, expiry, &blob.GetSASURLOptions{
		StartTime: to.Ptr(start),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create read url for %s: %w", name, err)
	}
	return u, nil
}

func storageError(op string, err error) error {
	var resp *azcore.ResponseError
	if errors.As(err, &resp) {
		return &deployerr.TransientNetworkError{Op: op, StatusCode: resp.StatusCode, Body: resp.ErrorCode, Err: err}
	}
	return deployerr.Network(op, err)
}
