// Package storage holds the segment store: one directory (or object prefix) per
// video with a playlist, numbered segments and a status record.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"time"
	"video-gate/constant"
	"video-gate/entities"
)

var ErrNotFound = errors.New("object not found")

var ErrInvalidName = errors.New("invalid video id or file name")

type Object struct {
	Body    io.ReadCloser
	Size    int64
	ModTime time.Time
}

type Store interface {
	// Publish moves the files of localDir into the video's location, replacing previous media files.
	Publish(ctx context.Context, videoID, localDir string) error
	Open(ctx context.Context, videoID, name string) (*Object, error)
	Exists(ctx context.Context, videoID, name string) (bool, error)
	ReadStatus(ctx context.Context, videoID string) (*entities.VideoJob, error)
	WriteStatus(ctx context.Context, videoID string, job entities.VideoJob) error
}

var (
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	mediaNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}\.(m3u8|ts)$`)
)

func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// ValidMediaName accepts playlist and segment file names, nothing with a path component.
func ValidMediaName(name string) bool {
	return mediaNamePattern.MatchString(name)
}

func validate(videoID, name string) error {
	if !ValidVideoID(videoID) {
		return fmt.Errorf("%w: video id %q", ErrInvalidName, videoID)
	}
	if name != constant.StatusFileName && !ValidMediaName(name) {
		return fmt.Errorf("%w: file %q", ErrInvalidName, name)
	}
	return nil
}

func ContentType(name string) string {
	switch path.Ext(name) {
	case ".m3u8":
		return constant.ContentTypePlaylist
	case ".ts":
		return constant.ContentTypeSegment
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// publishOrder puts the playlist last so a reader never sees a playlist whose segments are missing.
func publishOrder(names []string) []string {
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi := sorted[i] == constant.PlaylistName
		pj := sorted[j] == constant.PlaylistName
		if pi != pj {
			return pj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}
