package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// sourceKeyPrefix holds raw uploads in the bucket. The dot keeps it out of the video id namespace.
const sourceKeyPrefix = "uploads.raw"

// SourceStore keeps uploaded source files until a worker has published them.
// The reference returned by Save is what travels in job messages.
type SourceStore interface {
	Save(ctx context.Context, videoID, filename string, body io.Reader) (string, error)
	// Localize returns a local path for the source, downloading it into dir when it is remote.
	Localize(ctx context.Context, ref, dir string) (string, error)
	Exists(ctx context.Context, ref string) (bool, error)
	Remove(ctx context.Context, ref string) error
}

func sourceName(videoID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("%s-%s%s", videoID, uuid.NewString(), ext)
}

// LocalSources keeps uploads in a directory. Workers on other hosts only see
// them when the directory is on a shared volume.
type LocalSources struct {
	dir string
}

var _ SourceStore = (*LocalSources)(nil)

func NewLocalSources(dir string) (*LocalSources, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}
	return &LocalSources{dir: dir}, nil
}

func (s *LocalSources) Dir() string {
	return s.dir
}

func (s *LocalSources) Save(_ context.Context, videoID, filename string, body io.Reader) (string, error) {
	if !ValidVideoID(videoID) {
		return "", fmt.Errorf("%w: video id %q", ErrInvalidName, videoID)
	}
	p := filepath.Join(s.dir, sourceName(videoID, filename))
	out, err := os.Create(p)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(p)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(p)
		return "", err
	}
	return p, nil
}

func (s *LocalSources) Localize(_ context.Context, ref, _ string) (string, error) {
	if _, err := os.Stat(ref); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return "", err
	}
	return ref, nil
}

func (s *LocalSources) Exists(_ context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	_, err := os.Stat(ref)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *LocalSources) Remove(_ context.Context, ref string) error {
	if err := os.Remove(ref); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// MinIOSources keeps uploads in the bucket so a worker on any host can fetch them.
type MinIOSources struct {
	client objectClient
	bucket string
	prefix string
}

var _ SourceStore = (*MinIOSources)(nil)

func NewMinIOSources(client *minio.Client, bucket, prefix string) *MinIOSources {
	return &MinIOSources{client: client, bucket: bucket, prefix: prefix}
}

func (s *MinIOSources) Save(ctx context.Context, videoID, filename string, body io.Reader) (string, error) {
	if !ValidVideoID(videoID) {
		return "", fmt.Errorf("%w: video id %q", ErrInvalidName, videoID)
	}
	key := path.Join(s.prefix, sourceKeyPrefix, sourceName(videoID, filename))
	_, err := s.client.PutObject(ctx, s.bucket, key, body, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("upload source: %w", err)
	}
	return key, nil
}

func (s *MinIOSources) Localize(ctx context.Context, ref, dir string) (string, error) {
	local := filepath.Join(dir, "source"+path.Ext(ref))
	if err := s.client.FGetObject(ctx, s.bucket, ref, local, minio.GetObjectOptions{}); err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return "", fmt.Errorf("download source: %w", err)
	}
	return local, nil
}

func (s *MinIOSources) Exists(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	_, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if errors.Is(translate(err), ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *MinIOSources) Remove(ctx context.Context, ref string) error {
	return s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{})
}
