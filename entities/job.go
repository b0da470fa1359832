package entities

import (
	"time"
	"video-gate/constant"
)

// VideoJob is the status record kept next to a video's segments.
type VideoJob struct {
	VideoID     string             `json:"videoId"`
	Status      constant.JobStatus `json:"status"`
	SourcePath  string             `json:"sourcePath,omitempty"`
	Attempts    int                `json:"attempts"`
	Error       string             `json:"error,omitempty"`
	QueuedAt    *time.Time         `json:"queuedAt,omitempty"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	FailedAt    *time.Time         `json:"failedAt,omitempty"`
}
