package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"video-gate/constant"
	"video-gate/entities"

	"github.com/minio/minio-go/v7"
)

// objectClient is the subset of *minio.Client the store uses.
type objectClient interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// MinIOStore keeps videos under <prefix>/<videoID>/ in a bucket.
type MinIOStore struct {
	client objectClient
	bucket string
	prefix string
}

var _ Store = (*MinIOStore)(nil)

func NewMinIOStore(client *minio.Client, bucket, prefix string) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, prefix: prefix}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinIOStore) key(videoID, name string) string {
	return path.Join(s.prefix, videoID, name)
}

func (s *MinIOStore) Publish(ctx context.Context, videoID, localDir string) error {
	if err := validate(videoID, constant.PlaylistName); err != nil {
		return err
	}
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return fmt.Errorf("read output dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && ValidMediaName(e.Name()) {
			names = append(names, e.Name())
		}
	}

	uploaded := make(map[string]bool, len(names))
	for _, name := range publishOrder(names) {
		_, err := s.client.FPutObject(ctx, s.bucket, s.key(videoID, name), filepath.Join(localDir, name), minio.PutObjectOptions{
			ContentType: ContentType(name),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", name, err)
		}
		uploaded[name] = true
	}

	return s.removeStale(ctx, videoID, uploaded)
}

// removeStale deletes segments left over from an earlier publish of the same video.
func (s *MinIOStore) removeStale(ctx context.Context, videoID string, keep map[string]bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := s.key(videoID, "") + "/"
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return info.Err
		}
		name := path.Base(info.Key)
		if keep[name] || !ValidMediaName(name) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, info.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove stale %s: %w", info.Key, err)
		}
	}
	return nil
}

func (s *MinIOStore) Open(ctx context.Context, videoID, name string) (*Object, error) {
	if err := validate(videoID, name); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(videoID, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, translate(err)
	}
	return &Object{Body: obj, Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *MinIOStore) Exists(ctx context.Context, videoID, name string) (bool, error) {
	if err := validate(videoID, name); err != nil {
		return false, err
	}
	_, err := s.client.StatObject(ctx, s.bucket, s.key(videoID, name), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if err = translate(err); err == ErrNotFound {
		return false, nil
	}
	return false, err
}

func (s *MinIOStore) ReadStatus(ctx context.Context, videoID string) (*entities.VideoJob, error) {
	obj, err := s.Open(ctx, videoID, constant.StatusFileName)
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	job := &entities.VideoJob{}
	if err := json.NewDecoder(obj.Body).Decode(job); err != nil {
		return nil, fmt.Errorf("decode status record: %w", err)
	}
	return job, nil
}

func (s *MinIOStore) WriteStatus(ctx context.Context, videoID string, job entities.VideoJob) error {
	if err := validate(videoID, constant.StatusFileName); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.key(videoID, constant.StatusFileName), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func translate(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	}
	return err
}
