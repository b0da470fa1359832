package service

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"video-gate/constant"

	"github.com/rs/zerolog"
)

// Encoder turns one source file into an HLS playlist plus segments inside outputDir.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputDir string) error
}

// FFmpegEncoder produces a single rendition with fixed, conservative settings.
type FFmpegEncoder struct {
	Binary         string
	SegmentSeconds int
}

func NewFFmpegEncoder(binary string, segmentSeconds int) FFmpegEncoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if segmentSeconds <= 0 {
		segmentSeconds = 6
	}
	return FFmpegEncoder{Binary: binary, SegmentSeconds: segmentSeconds}
}

func (e FFmpegEncoder) Args(inputPath, outputDir string) []string {
	return []string{
		"-hide_banner",
		"-y",
		"-i", inputPath,
		"-map", "0:v:0",
		"-map", "0:a:0?",

		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "22",
		"-profile:v", "main",
		"-pix_fmt", "yuv420p",
		"-sc_threshold", "0",
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", e.SegmentSeconds),

		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",

		"-f", "hls",
		"-hls_time", strconv.Itoa(e.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outputDir, constant.SegmentNameFormat),
		filepath.Join(outputDir, constant.PlaylistName),
	}
}

// Encode runs ffmpeg to completion. It deliberately ignores ctx cancellation:
// a started job always finishes or fails on its own.
func (e FFmpegEncoder) Encode(ctx context.Context, inputPath, outputDir string) error {
	args := e.Args(inputPath, outputDir)
	cmd := exec.Command(e.Binary, args...)
	zerolog.Ctx(ctx).Debug().Str("cmd", e.Binary+" "+strings.Join(args, " ")).Msg("executing ffmpeg")

	output, err := cmd.CombinedOutput()
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("output", tail(string(output), 4096)).Msg("ffmpeg output")
		return fmt.Errorf("ffmpeg execution failed: %w: %s", err, lastLine(string(output)))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
