// Package artifacts mirrors evidence files to durable blob storage.
package artifacts

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/config"
	"github.com/R204570/LexAudit-Flow/internal/resilience"
)

// Mirror copies a local artifact to remote storage under key and returns
// the remote location.
type Mirror interface {
	Put(ctx context.Context, key, localPath string) (string, error)
}

// blobClient is the subset of *azblob.Client used by AzureMirror.
type blobClient interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
	URL() string
}

// AzureMirror uploads artifacts to an Azure Blob Storage container.
type AzureMirror struct {
	client    blobClient
	container string
	retry     resilience.RetryConfig
}

// New returns the mirror configured in cfg, or nil when mirroring is off.
func New(cfg config.AzureConfig) (Mirror, error) {
	if cfg.ConnectionString == "" {
		return nil, nil
	}
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, eris.Wrap(err, "artifacts: create blob client")
	}
	return NewAzureMirror(client, cfg.Container), nil
}

// NewAzureMirror wraps an existing client.
func NewAzureMirror(client blobClient, container string) *AzureMirror {
	if container == "" {
		container = "evidence"
	}
	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = isTransient
	retry.OnRetry = resilience.RetryLogger("azblob", "upload")
	return &AzureMirror{client: client, container: container, retry: retry}
}

// EnsureContainer creates the container if it does not exist yet.
func (m *AzureMirror) EnsureContainer(ctx context.Context) error {
	_, err := m.client.CreateContainer(ctx, m.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return eris.Wrapf(err, "artifacts: create container %s", m.container)
	}
	return nil
}

// Put uploads localPath as key and returns the blob URL.
func (m *AzureMirror) Put(ctx context.Context, key, localPath string) (string, error) {
	key = strings.TrimLeft(path.Clean(filepath.ToSlash(key)), "/")
	if key == "" || key == "." || strings.HasPrefix(key, "..") {
		return "", eris.Errorf("artifacts: invalid key %q", key)
	}

	contentType := "application/pdf"
	err := resilience.Do(ctx, m.retry, func(ctx context.Context) error {
		f, err := os.Open(localPath)
		if err != nil {
			return eris.Wrapf(err, "artifacts: open %s", localPath)
		}
		defer f.Close() //nolint:errcheck

		_, err = m.client.UploadStream(ctx, m.container, key, f, &azblob.UploadStreamOptions{
			HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		})
		return err
	})
	if err != nil {
		return "", eris.Wrapf(err, "artifacts: upload %s", key)
	}

	url := strings.TrimRight(m.client.URL(), "/") + "/" + m.container + "/" + key
	zap.L().Info("artifacts: mirrored",
		zap.String("key", key),
		zap.String("url", url),
	)
	return url, nil
}

// isTransient treats throttling and server-side storage errors as retryable.
func isTransient(err error) bool {
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		return resilience.IsTransientHTTPStatus(re.StatusCode)
	}
	return resilience.IsTransient(err)
}
