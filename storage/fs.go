package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"video-gate/constant"
	"video-gate/entities"
)

// FSStore keeps videos under <root>/<videoID>/ on local disk.
type FSStore struct {
	root string
}

var _ Store = (*FSStore)(nil)

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create segment root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) dir(videoID string) string {
	return filepath.Join(s.root, videoID)
}

func (s *FSStore) Publish(ctx context.Context, videoID, localDir string) error {
	if err := validate(videoID, constant.PlaylistName); err != nil {
		return err
	}
	target := s.dir(videoID)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create video dir: %w", err)
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

	if err := s.removeMedia(target); err != nil {
		return err
	}

	for _, name := range publishOrder(names) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := moveFile(filepath.Join(localDir, name), filepath.Join(target, name)); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
	}
	return nil
}

// removeMedia drops the previous playlist first, then its segments; the status record stays.
func (s *FSStore) removeMedia(dir string) error {
	if err := os.Remove(filepath.Join(dir, constant.PlaylistName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !ValidMediaName(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *FSStore) Open(_ context.Context, videoID, name string) (*Object, error) {
	if err := validate(videoID, name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir(videoID), name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Object{Body: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *FSStore) Exists(_ context.Context, videoID, name string) (bool, error) {
	if err := validate(videoID, name); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.dir(videoID), name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FSStore) ReadStatus(ctx context.Context, videoID string) (*entities.VideoJob, error) {
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

// WriteStatus replaces the record through a rename so readers never see a partial file.
func (s *FSStore) WriteStatus(_ context.Context, videoID string, job entities.VideoJob) error {
	if err := validate(videoID, constant.StatusFileName); err != nil {
		return err
	}
	dir := s.dir(videoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, constant.StatusFileName))
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Work dir on another device: copy then remove.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
