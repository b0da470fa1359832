package dto

import "time"

// JobMessage asks a worker to transcode one uploaded source file.
type JobMessage struct {
	VideoId    string    `json:"videoId"`
	SourcePath string    `json:"sourcePath"`
	FileName   string    `json:"fileName"`
	Attempt    int       `json:"attempt"`
	QueuedAt   time.Time `json:"queuedAt"`
}

type UploadResponse struct {
	VideoId  string `json:"videoId"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

type AccessSummary struct {
	Type          string     `json:"type"`
	CourseId      *uint      `json:"courseId,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	RemainingDays *int       `json:"remainingDays,omitempty"`
}

type AccessResponse struct {
	Token            string        `json:"token"`
	ExpiresInSeconds int64         `json:"expiresInSeconds"`
	Access           AccessSummary `json:"access"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type StatusResponse struct {
	VideoId     string     `json:"videoId"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts,omitempty"`
	Error       string     `json:"error,omitempty"`
	QueuedAt    *time.Time `json:"queuedAt,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
}
