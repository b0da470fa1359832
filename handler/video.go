package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"video-gate/catalog"
	"video-gate/constant"
	"video-gate/dto"
	"video-gate/entitlement"
	"video-gate/entities"
	"video-gate/middleware"
	"video-gate/pkg/metrics"
	"video-gate/service"
	"video-gate/storage"
	"video-gate/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// unassignedCacheSeconds bounds how long shared caches may keep media that needs no token.
const unassignedCacheSeconds = 60

type AccessEvaluator interface {
	Evaluate(ctx context.Context, userID uint, videoID string) (entitlement.Decision, error)
}

type CourseIndex interface {
	ResolveCourseForVideo(ctx context.Context, videoID string) (*catalog.Binding, error)
	Reindex(ctx context.Context, courseID uint) error
}

type VideoHandler struct {
	Scheduler      *service.Scheduler
	Evaluator      AccessEvaluator
	Issuer         *token.Issuer
	Courses        CourseIndex
	Store          storage.Store
	MaxUploadBytes int64
}

// Upload stores the multipart "video" file and queues it for transcoding.
func (h *VideoHandler) Upload(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "bad_request", "upload exceeds size limit")
			return
		}
		respondError(c, http.StatusBadRequest, "bad_request", "multipart field \"video\" is required")
		return
	}

	videoID := strings.TrimSpace(c.PostForm("videoId"))
	if videoID == "" {
		videoID = uuid.NewString()
	}
	if !storage.ValidVideoID(videoID) {
		respondError(c, http.StatusBadRequest, "bad_request", "invalid videoId")
		return
	}

	ctx := c.Request.Context()
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "unreadable upload")
		return
	}
	defer file.Close()

	sourcePath, err := h.Scheduler.SaveUpload(ctx, videoID, fileHeader.Filename, file)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("failed to save upload")
		respondError(c, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}

	job, err := h.Scheduler.Schedule(ctx, videoID, sourcePath, fileHeader.Filename)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("failed to schedule transcode")
		respondError(c, http.StatusServiceUnavailable, "queue_unavailable", "could not queue transcode job")
		return
	}

	c.JSON(http.StatusAccepted, dto.UploadResponse{
		VideoId:  videoID,
		Filename: fileHeader.Filename,
		Status:   string(job.Status),
	})
}

// Access evaluates entitlement for the calling user and mints a stream token.
func (h *VideoHandler) Access(c *gin.Context) {
	ctx := c.Request.Context()
	videoID := c.Param("videoId")
	if !storage.ValidVideoID(videoID) {
		respondError(c, http.StatusBadRequest, "bad_request", "invalid videoId")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "missing user")
		return
	}

	decision, err := h.Evaluator.Evaluate(ctx, userID, videoID)
	if err != nil {
		h.accessError(c, videoID, err)
		return
	}

	tok, err := h.Issuer.Issue(decision)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("failed to issue token")
		respondError(c, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}

	c.JSON(http.StatusOK, dto.AccessResponse{
		Token:            tok.Value,
		ExpiresInSeconds: tok.ExpiresIn,
		Access: dto.AccessSummary{
			Type:          string(decision.Type),
			CourseId:      decision.CourseID,
			ExpiresAt:     decision.AccessExpiresAt,
			RemainingDays: decision.RemainingDays(),
		},
	})
}

func (h *VideoHandler) accessError(c *gin.Context, videoID string, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, entitlement.ErrVideoNotFound):
		h.notReady(c, videoID)
	case errors.Is(err, entitlement.ErrNotPurchased):
		respondError(c, http.StatusForbidden, "not_purchased", "course has not been purchased")
	case errors.Is(err, entitlement.ErrAccessExpired):
		respondError(c, http.StatusForbidden, "access_expired", "course access has expired")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("access evaluation failed")
		respondError(c, http.StatusInternalServerError, "internal", "access evaluation failed")
	}
}

// notReady explains a missing playlist using the job record, if there is one.
func (h *VideoHandler) notReady(c *gin.Context, videoID string) {
	job, err := h.Store.ReadStatus(c.Request.Context(), videoID)
	if err != nil {
		respondError(c, http.StatusNotFound, "video_not_found", "video not found")
		return
	}
	switch job.Status {
	case constant.JobStatusFailed:
		respondError(c, http.StatusConflict, "transcode_failed", "video transcoding failed")
	case constant.JobStatusQueued, constant.JobStatusProcessing:
		respondError(c, http.StatusConflict, "video_not_ready", "video is still being processed")
	default:
		respondError(c, http.StatusNotFound, "video_not_found", "video not found")
	}
}

// Stream serves the playlist or a segment. A token is required unless the video
// belongs to no course.
func (h *VideoHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	videoID := c.Param("videoId")
	name := c.Param("file")
	if !storage.ValidVideoID(videoID) || !storage.ValidMediaName(name) {
		respondError(c, http.StatusBadRequest, "bad_request", "invalid media path")
		return
	}

	raw := c.Query("token")
	cacheControl := fmt.Sprintf("private, max-age=%d", unassignedCacheSeconds)
	if raw == "" {
		binding, err := h.Courses.ResolveCourseForVideo(ctx, videoID)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("failed to resolve course")
			respondError(c, http.StatusInternalServerError, "internal", "failed to resolve course")
			return
		}
		if binding != nil {
			metrics.TokenRejectionsTotal.WithLabelValues("missing").Inc()
			respondError(c, http.StatusUnauthorized, "invalid_token", "token required")
			return
		}
	} else {
		claims, err := h.Issuer.Verify(raw, videoID)
		if err != nil {
			reason := token.Reason(err)
			metrics.TokenRejectionsTotal.WithLabelValues(reason).Inc()
			zerolog.Ctx(ctx).Debug().Err(err).Str("video_id", videoID).Str("reason", reason).Msg("token rejected")
			respondError(c, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
			return
		}
		maxAge := int64(time.Until(claims.ExpiresAt.Time).Seconds())
		cacheControl = fmt.Sprintf("private, max-age=%d", max(maxAge, 0))
	}

	object, err := h.Store.Open(ctx, videoID, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, "video_not_found", "media not found")
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Str("file", name).Msg("failed to open media")
		respondError(c, http.StatusInternalServerError, "internal", "failed to read media")
		return
	}
	defer object.Body.Close()

	c.Header("Cache-Control", cacheControl)
	contentType := storage.ContentType(name)
	if name != constant.PlaylistName || raw == "" {
		c.DataFromReader(http.StatusOK, object.Size, contentType, object.Body, nil)
		return
	}

	body, err := io.ReadAll(object.Body)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("video_id", videoID).Msg("failed to read playlist")
		respondError(c, http.StatusInternalServerError, "internal", "failed to read media")
		return
	}
	c.Data(http.StatusOK, contentType, RewritePlaylist(body, raw))
}

// RewritePlaylist appends the token to every URI line so segment requests carry it.
func RewritePlaylist(playlist []byte, tok string) []byte {
	param := "token=" + url.QueryEscape(tok)
	var out bytes.Buffer
	out.Grow(len(playlist))
	text := strings.TrimSuffix(string(playlist), "\n")
	if text == "" {
		return nil
	}
	// Split rather than scan so a line has no length limit.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			sep := "?"
			if strings.Contains(trimmed, "?") {
				sep = "&"
			}
			line = trimmed + sep + param
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

func (h *VideoHandler) Status(c *gin.Context) {
	videoID := c.Param("videoId")
	job, err := h.Scheduler.Status(c.Request.Context(), videoID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUpload) {
			respondError(c, http.StatusBadRequest, "bad_request", "invalid videoId")
			return
		}
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("video_id", videoID).Msg("failed to read status")
		respondError(c, http.StatusInternalServerError, "internal", "failed to read status")
		return
	}
	c.JSON(http.StatusOK, statusResponse(job))
}

// Retry re-queues a failed or stale job whose source survived.
func (h *VideoHandler) Retry(c *gin.Context) {
	videoID := c.Param("videoId")
	if !storage.ValidVideoID(videoID) {
		respondError(c, http.StatusBadRequest, "bad_request", "invalid videoId")
		return
	}
	job, err := h.Scheduler.Retry(c.Request.Context(), videoID)
	switch {
	case errors.Is(err, service.ErrNotRetryable):
		respondError(c, http.StatusConflict, "not_retryable", "only failed or stale jobs can be retried")
	case errors.Is(err, service.ErrSourceMissing):
		respondError(c, http.StatusGone, "source_missing", "source file is no longer available")
	case err != nil:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("video_id", videoID).Msg("retry failed")
		respondError(c, http.StatusServiceUnavailable, "queue_unavailable", "could not queue transcode job")
	default:
		c.JSON(http.StatusAccepted, statusResponse(job))
	}
}

// Reindex refreshes the course-to-video bindings of one course after its content changed.
func (h *VideoHandler) Reindex(c *gin.Context) {
	courseID, err := strconv.ParseUint(c.Param("courseId"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", "invalid courseId")
		return
	}
	if err := h.Courses.Reindex(c.Request.Context(), uint(courseID)); err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Uint64("course_id", courseID).Msg("reindex failed")
		respondError(c, http.StatusInternalServerError, "internal", "reindex failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func statusResponse(job entities.VideoJob) dto.StatusResponse {
	return dto.StatusResponse{
		VideoId:     job.VideoID,
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		Error:       job.Error,
		QueuedAt:    job.QueuedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		FailedAt:    job.FailedAt,
	}
}

func respondError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: kind, Message: message})
}
