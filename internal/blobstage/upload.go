// Package blobstage stages deployment packages in blob storage and hands back
// a long-lived read link the app can run from.
package blobstage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/railwayapp/funcpush/internal/archive"
	"github.com/railwayapp/funcpush/internal/deployerr"
	"github.com/railwayapp/funcpush/internal/retry"
	"github.com/railwayapp/funcpush/internal/target"
)

const (
	// ContainerName is the container every package is staged in.
	ContainerName = "function-releases"

	clockSkew = 5 * time.Minute
	linkLife  = 10 * 365 * 24 * time.Hour
)

// Store is the subset of blob storage the uploader needs.
type Store interface {
	EnsureContainer(ctx context.Context) error
	Upload(ctx context.Context, name string, body io.Reader, contentType string, checksum []byte) error
	Checksum(ctx context.Context, name string) ([]byte, error)
	ReadURL(name string, start, expiry time.Time) (string, error)
}

// StoreFactory opens a Store for a connection string and container.
type StoreFactory func(connectionString, containerName string) (Store, error)

// UploadResult describes a staged package.
type UploadResult struct {
	ReadURI  string
	Checksum string
}

// BlobName returns a unique blob name for a package built at now.
func BlobName(now time.Time, format archive.Format) string {
	return now.UTC().Format("20060102150405") + "-" + uuid.NewString() + format.Ext()
}

// Uploader pushes packages to staging storage.
type Uploader struct {
	NewStore StoreFactory
	Policy   retry.Policy

	// Progress, when set, returns a sink that receives every byte sent in
	// one attempt.
	Progress func(total int64) io.Writer

	Now func() time.Time
	Log logrus.FieldLogger
}

// NewUploader returns an uploader for Azure blob storage with the default
// retry policy.
func NewUploader(log logrus.FieldLogger) *Uploader {
	return &Uploader{
		NewStore: NewAzureStore,
		Policy:   retry.Upload,
		Now:      time.Now,
		Log:      log,
	}
}

// Upload stages pkg under name using the storage account referenced by the
// app's settings. Every attempt starts from the first byte of pkg. A
// checksum mismatch ends the upload immediately.
func (u *Uploader) Upload(ctx context.Context, pkg *archive.Package, name string, settings map[string]string) (UploadResult, error) {
	conn := lookup(settings, target.SettingStorage)
	if conn == "" {
		return UploadResult{}, deployerr.Validation("%s app setting is required to upload the package", target.SettingStorage)
	}
	store, err := u.NewStore(conn, ContainerName)
	if err != nil {
		return UploadResult{}, err
	}

	log := u.logger().WithField("blob", name)
	policy := u.Policy
	if policy.Notify == nil {
		policy = policy.WithNotify(func(err error, wait time.Duration) {
			log.WithError(err).Warnf("upload failed, retrying in %s", wait)
		})
	}

	checksum, err := retry.DoValue(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return u.attempt(ctx, store, pkg, name)
	})
	if err != nil {
		return UploadResult{}, err
	}

	now := u.now()
	uri, err := store.ReadURL(name, now.Add(-clockSkew), now.Add(linkLife))
	if err != nil {
		return UploadResult{}, err
	}
	log.Debug("package staged")
	return UploadResult{ReadURI: uri, Checksum: base64.StdEncoding.EncodeToString(checksum)}, nil
}

func (u *Uploader) attempt(ctx context.Context, store Store, pkg *archive.Package, name string) ([]byte, error) {
	if _, err := pkg.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind package: %w", err)
	}
	h := md5.New()
	if _, err := io.Copy(h, pkg); err != nil {
		return nil, fmt.Errorf("failed to hash package: %w", err)
	}
	local := h.Sum(nil)
	if _, err := pkg.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind package: %w", err)
	}

	if err := store.EnsureContainer(ctx); err != nil {
		return nil, err
	}

	var body io.Reader = pkg
	if u.Progress != nil {
		body = io.TeeReader(pkg, u.Progress(pkg.Size()))
	}
	if err := store.Upload(ctx, name, body, pkg.Format.ContentType(), local); err != nil {
		return nil, err
	}

	remote, err := store.Checksum(ctx, name)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(local, remote) {
		return nil, &deployerr.IntegrityError{
			Local:  base64.StdEncoding.EncodeToString(local),
			Remote: base64.StdEncoding.EncodeToString(remote),
		}
	}
	return local, nil
}

func (u *Uploader) now() time.Time {
	if u.Now == nil {
		return time.Now()
	}
	return u.Now()
}

func (u *Uploader) logger() logrus.FieldLogger {
	if u.Log == nil {
		return logrus.StandardLogger()
	}
	return u.Log
}

func lookup(m map[string]string, key string) string {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
