package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"video-gate/catalog"
	"video-gate/constant"
	"video-gate/dto"
	"video-gate/entitlement"
	"video-gate/entities"
	"video-gate/handler"
	"video-gate/middleware"
	"video-gate/pkg/jobqueue"
	"video-gate/repository"
	"video-gate/service"
	"video-gate/storage"
	"video-gate/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testTokenSecret = "stream-secret"
	testAuthSecret  = "auth-secret"
	testPlaylist    = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nsegment_000.ts\n#EXTINF:4.0,\nsegment_001.ts\n#EXT-X-ENDLIST\n"
)

type stubEncoder struct {
	failures atomic.Int32
}

func (e *stubEncoder) Encode(_ context.Context, _, outputDir string) error {
	if e.failures.Add(-1) >= 0 {
		return errors.New("ffmpeg: invalid data found when processing input")
	}
	return writeMedia(outputDir)
}

func writeMedia(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := map[string]string{
		constant.PlaylistName: testPlaylist,
		"segment_000.ts":      "segment-zero",
		"segment_001.ts":      "segment-one",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type testEnv struct {
	router  *gin.Engine
	store   *storage.FSStore
	repo    repository.Repository
	courses *catalog.Resolver
	encoder *stubEncoder
	root    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()

	store, err := storage.NewFSStore(filepath.Join(root, "videos"))
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(root, "catalog.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo := repository.NewRepo(db)
	if err := repo.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	courses := catalog.NewResolver(repo, 0)

	sources, err := storage.NewLocalSources(filepath.Join(root, "raw"))
	if err != nil {
		t.Fatalf("raw dir: %v", err)
	}

	encoder := &stubEncoder{}
	transcoder := service.NewService(store, sources, encoder, filepath.Join(root, "work"))
	pool := jobqueue.NewPool(2, 8, transcoder.Process)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	scheduler := service.NewScheduler(store, pool, sources)

	router := NewRouter(RouterDependencies{
		Videos: &handler.VideoHandler{
			Scheduler:      scheduler,
			Evaluator:      entitlement.NewEvaluator(courses, repo, store, entitlement.DefaultPolicy()),
			Issuer:         token.NewIssuer(testTokenSecret),
			Courses:        courses,
			Store:          store,
			MaxUploadBytes: 1 << 20,
		},
		AuthSecret: testAuthSecret,
		Logger:     zerolog.Nop(),
	})

	return &testEnv{router: router, store: store, repo: repo, courses: courses, encoder: encoder, root: root}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, userID uint, role constant.Role) string {
	t.Helper()
	signed, err := middleware.SignAuthToken(testAuthSecret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("sign auth token: %v", err)
	}
	return "Bearer " + signed
}

func (e *testEnv) upload(t *testing.T, auth, videoID, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if videoID != "" {
		if err := form.WriteField("videoId", videoID); err != nil {
			t.Fatal(err)
		}
	}
	part, err := form.CreateFormFile("video", "lecture.mp4")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/videos/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return e.do(req)
}

func (e *testEnv) access(t *testing.T, userID uint, videoID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/videos/access/"+videoID, nil)
	req.Header.Set("Authorization", bearer(t, userID, constant.RoleStudent))
	return e.do(req)
}

func (e *testEnv) stream(videoID, file, tok string) *httptest.ResponseRecorder {
	target := "/videos/stream/" + videoID + "/" + file
	if tok != "" {
		target += "?token=" + tok
	}
	return e.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (e *testEnv) status(t *testing.T, videoID string) dto.StatusResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/videos/status/"+videoID, nil)
	req.Header.Set("Authorization", bearer(t, 1, constant.RoleStudent))
	w := e.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	var resp dto.StatusResponse
	decode(t, w, &resp)
	return resp
}

func (e *testEnv) waitForStatus(t *testing.T, videoID string, want constant.JobStatus) dto.StatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got := e.status(t, videoID)
		if got.Status == string(want) {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("video %s status = %+v, want %s", videoID, got, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// publish puts a finished video into the store without going through the worker.
func (e *testEnv) publish(t *testing.T, videoID string) {
	t.Helper()
	dir := filepath.Join(e.root, "prepublished", videoID)
	if err := writeMedia(dir); err != nil {
		t.Fatal(err)
	}
	if err := e.store.Publish(context.Background(), videoID, dir); err != nil {
		t.Fatalf("publish %s: %v", videoID, err)
	}
}

func (e *testEnv) seed(t *testing.T, fixture repository.Fixture) {
	t.Helper()
	if err := repository.Seed(context.Background(), e.repo, fixture); err != nil {
		t.Fatalf("seed: %v", err)
	}
	e.courses.Invalidate()
}

func courseWithVideo(id uint, commerce constant.CommerceType, days int, videoID string) entities.Course {
	return entities.Course{
		ID:                 id,
		Title:              "course",
		CommerceType:       commerce,
		AccessDurationDays: days,
		Lessons: []entities.Lesson{{
			ID:       id * 10,
			Position: 1,
			Blocks: []entities.ContentBlock{
				{ID: id * 100, Position: 1, Type: "video", Data: `{"videoId":"` + videoID + `"}`},
			},
		}},
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ErrorResponse
	decode(t, w, &resp)
	return resp.Error
}

func TestUnassignedUploadToStream(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, bearer(t, 1, constant.RoleInstructor), "v1", "raw video bytes")
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	var uploaded dto.UploadResponse
	decode(t, w, &uploaded)
	if uploaded.VideoId != "v1" || uploaded.Filename != "lecture.mp4" || uploaded.Status != "queued" {
		t.Fatalf("unexpected upload response: %+v", uploaded)
	}

	done := env.waitForStatus(t, "v1", constant.JobStatusCompleted)
	if done.Attempts != 1 || done.CompletedAt == nil {
		t.Fatalf("unexpected completed record: %+v", done)
	}

	w = env.access(t, 9, "v1")
	if w.Code != http.StatusOK {
		t.Fatalf("access: %d %s", w.Code, w.Body.String())
	}
	var granted dto.AccessResponse
	decode(t, w, &granted)
	if granted.Access.Type != "unassigned" || granted.ExpiresInSeconds != 24*3600 || granted.Token == "" {
		t.Fatalf("unexpected access: %+v", granted)
	}

	w = env.stream("v1", constant.PlaylistName, granted.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("playlist: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != constant.ContentTypePlaylist {
		t.Fatalf("playlist content type = %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.HasPrefix(cc, "private, max-age=") {
		t.Fatalf("cache control = %q", cc)
	}

	var segmentURI string
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if strings.HasPrefix(line, "segment_000.ts") {
			segmentURI = line
		}
	}
	if segmentURI != "segment_000.ts?token="+granted.Token {
		t.Fatalf("segment line not rewritten: %q", w.Body.String())
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/videos/stream/v1/"+segmentURI, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("segment: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != constant.ContentTypeSegment {
		t.Fatalf("segment content type = %q", ct)
	}
	if w.Body.String() != "segment-zero" {
		t.Fatalf("segment body = %q", w.Body.String())
	}

	w = env.stream("v1", constant.PlaylistName, "")
	if w.Code != http.StatusOK || w.Body.String() != testPlaylist {
		t.Fatalf("token-less unassigned playlist: %d %q", w.Code, w.Body.String())
	}

	if _, err := os.Stat(filepath.Join(env.root, "videos", "v1", constant.StatusFileName)); err != nil {
		t.Fatalf("status record missing: %v", err)
	}
}

func TestUploadRequiresPublisher(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, "", "v1", "x")
	if w.Code != http.StatusUnauthorized || errorKind(t, w) != "unauthorized" {
		t.Fatalf("anonymous upload: %d %s", w.Code, w.Body.String())
	}

	w = env.upload(t, bearer(t, 2, constant.RoleStudent), "v1", "x")
	if w.Code != http.StatusForbidden || errorKind(t, w) != "forbidden" {
		t.Fatalf("student upload: %d %s", w.Code, w.Body.String())
	}
}

func TestUploadGeneratesVideoID(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, bearer(t, 1, constant.RoleAdmin), "", "x")
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	var uploaded dto.UploadResponse
	decode(t, w, &uploaded)
	if _, err := uuid.Parse(uploaded.VideoId); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", uploaded.VideoId, err)
	}
	env.waitForStatus(t, uploaded.VideoId, constant.JobStatusCompleted)
}

func TestUploadRejectsInvalidVideoID(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, bearer(t, 1, constant.RoleAdmin), "../escape", "x")
	if w.Code != http.StatusBadRequest || errorKind(t, w) != "bad_request" {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
}

func TestFreeCourseAccess(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, repository.Fixture{Courses: []entities.Course{
		courseWithVideo(101, constant.CommerceTypeFree, 0, "v42"),
	}})
	env.publish(t, "v42")

	w := env.access(t, 3, "v42")
	if w.Code != http.StatusOK {
		t.Fatalf("access: %d %s", w.Code, w.Body.String())
	}
	var granted dto.AccessResponse
	decode(t, w, &granted)
	if granted.Access.Type != "free" || granted.ExpiresInSeconds != 3600 {
		t.Fatalf("unexpected access: %+v", granted)
	}
	if granted.Access.CourseId == nil || *granted.Access.CourseId != 101 {
		t.Fatalf("course id = %v, want 101", granted.Access.CourseId)
	}

	w = env.stream("v42", constant.PlaylistName, "")
	if w.Code != http.StatusUnauthorized || errorKind(t, w) != "invalid_token" {
		t.Fatalf("token-less course playlist: %d %s", w.Code, w.Body.String())
	}
	w = env.stream("v42", "segment_000.ts", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("token-less course segment: %d %s", w.Code, w.Body.String())
	}
	w = env.stream("v42", "segment_001.ts", granted.Token)
	if w.Code != http.StatusOK || w.Body.String() != "segment-one" {
		t.Fatalf("segment with token: %d %q", w.Code, w.Body.String())
	}
}

func TestPaidCourseAccess(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.seed(t, repository.Fixture{
		Courses: []entities.Course{courseWithVideo(202, constant.CommerceTypePaid, 30, "v99")},
		Purchases: []entities.Purchase{
			{UserID: 5, CourseID: 202, PurchasedAt: now.AddDate(0, 0, -31)},
			{UserID: 6, CourseID: 202, PurchasedAt: now.AddDate(0, 0, -2)},
		},
	})
	env.publish(t, "v99")

	w := env.access(t, 5, "v99")
	if w.Code != http.StatusForbidden || errorKind(t, w) != "access_expired" {
		t.Fatalf("expired purchase: %d %s", w.Code, w.Body.String())
	}

	w = env.access(t, 7, "v99")
	if w.Code != http.StatusForbidden || errorKind(t, w) != "not_purchased" {
		t.Fatalf("no purchase: %d %s", w.Code, w.Body.String())
	}

	w = env.access(t, 6, "v99")
	if w.Code != http.StatusOK {
		t.Fatalf("valid purchase: %d %s", w.Code, w.Body.String())
	}
	var granted dto.AccessResponse
	decode(t, w, &granted)
	if granted.Access.Type != "paid" || granted.ExpiresInSeconds != 3600 {
		t.Fatalf("unexpected access: %+v", granted)
	}
	if granted.Access.RemainingDays == nil || *granted.Access.RemainingDays != 28 {
		t.Fatalf("remaining days = %v, want 28", granted.Access.RemainingDays)
	}
	if granted.Access.ExpiresAt == nil {
		t.Fatal("paid access without expiry")
	}
}

func TestUnknownCommerceTypeRequiresPurchase(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, repository.Fixture{Courses: []entities.Course{
		courseWithVideo(303, constant.CommerceType("PAID"), 30, "v7"),
	}})
	env.publish(t, "v7")

	w := env.access(t, 4, "v7")
	if w.Code != http.StatusForbidden || errorKind(t, w) != "not_purchased" {
		t.Fatalf("unknown commerce type: %d %s", w.Code, w.Body.String())
	}
}

func TestAccessDistinguishesMissingFromNotReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := env.access(t, 1, "ghost")
	if w.Code != http.StatusNotFound || errorKind(t, w) != "video_not_found" {
		t.Fatalf("unknown video: %d %s", w.Code, w.Body.String())
	}

	if err := env.store.WriteStatus(ctx, "pending", entities.VideoJob{VideoID: "pending", Status: constant.JobStatusProcessing}); err != nil {
		t.Fatal(err)
	}
	w = env.access(t, 1, "pending")
	if w.Code != http.StatusConflict || errorKind(t, w) != "video_not_ready" {
		t.Fatalf("processing video: %d %s", w.Code, w.Body.String())
	}

	if err := env.store.WriteStatus(ctx, "broken", entities.VideoJob{VideoID: "broken", Status: constant.JobStatusFailed, Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	w = env.access(t, 1, "broken")
	if w.Code != http.StatusConflict || errorKind(t, w) != "transcode_failed" {
		t.Fatalf("failed video: %d %s", w.Code, w.Body.String())
	}

	w = env.access(t, 1, "bad.id")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: %d %s", w.Code, w.Body.String())
	}
}

func TestAccessRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, "v1")

	w := env.do(httptest.NewRequest(http.MethodPost, "/videos/access/v1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous access: %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/videos/access/v1", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = env.do(req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage bearer: %d %s", w.Code, w.Body.String())
	}
}

func TestStreamRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, "v1")
	env.publish(t, "v2")

	w := env.access(t, 1, "v1")
	var granted dto.AccessResponse
	decode(t, w, &granted)

	w = env.stream("v2", constant.PlaylistName, granted.Token)
	if w.Code != http.StatusUnauthorized || errorKind(t, w) != "invalid_token" {
		t.Fatalf("token for another video: %d %s", w.Code, w.Body.String())
	}

	w = env.stream("v1", "segment_000.ts", "garbage")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("malformed token: %d %s", w.Code, w.Body.String())
	}

	old := token.NewIssuer(testTokenSecret).WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) })
	expired, err := old.Issue(entitlement.Decision{
		Type:    constant.AccessTypeUnassigned,
		UserID:  1,
		VideoID: "v1",
		TTL:     24 * time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	w = env.stream("v1", "segment_000.ts", expired.Value)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: %d %s", w.Code, w.Body.String())
	}

	forged, err := token.NewIssuer("other-secret").Issue(entitlement.Decision{
		Type:    constant.AccessTypeUnassigned,
		UserID:  1,
		VideoID: "v1",
		TTL:     time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	w = env.stream("v1", "segment_000.ts", forged.Value)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: %d %s", w.Code, w.Body.String())
	}
}

func TestStreamMissingMedia(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, "v1")

	w := env.stream("v1", "segment_777.ts", "")
	if w.Code != http.StatusNotFound || errorKind(t, w) != "video_not_found" {
		t.Fatalf("missing segment: %d %s", w.Code, w.Body.String())
	}
	w = env.stream("v1", "status.json", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status record must not be served: %d %s", w.Code, w.Body.String())
	}
}

func TestStatusIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, "legacy")

	first := env.status(t, "legacy")
	second := env.status(t, "legacy")
	if first != second || first.Status != "completed" {
		t.Fatalf("status not stable: %+v then %+v", first, second)
	}

	if got := env.status(t, "unknown"); got.Status != "processing" {
		t.Fatalf("status without record or playlist = %q, want processing", got.Status)
	}
}

func TestRetryFailedUpload(t *testing.T) {
	env := newTestEnv(t)
	env.encoder.failures.Store(1)
	admin := bearer(t, 1, constant.RoleAdmin)

	w := env.upload(t, admin, "flaky", "x")
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	failed := env.waitForStatus(t, "flaky", constant.JobStatusFailed)
	if !strings.Contains(failed.Error, "invalid data") {
		t.Fatalf("failure reason not recorded: %+v", failed)
	}

	w = env.access(t, 2, "flaky")
	if w.Code != http.StatusConflict || errorKind(t, w) != "transcode_failed" {
		t.Fatalf("access to failed video: %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/videos/retry/flaky", nil)
	req.Header.Set("Authorization", bearer(t, 2, constant.RoleStudent))
	if w := env.do(req); w.Code != http.StatusForbidden {
		t.Fatalf("student retry: %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/videos/retry/flaky", nil)
	req.Header.Set("Authorization", admin)
	if w := env.do(req); w.Code != http.StatusAccepted {
		t.Fatalf("retry: %d %s", w.Code, w.Body.String())
	}
	done := env.waitForStatus(t, "flaky", constant.JobStatusCompleted)
	if done.Attempts != 2 || done.Error != "" {
		t.Fatalf("unexpected record after retry: %+v", done)
	}

	req = httptest.NewRequest(http.MethodPost, "/videos/retry/flaky", nil)
	req.Header.Set("Authorization", admin)
	w = env.do(req)
	if w.Code != http.StatusConflict || errorKind(t, w) != "not_retryable" {
		t.Fatalf("retry of completed job: %d %s", w.Code, w.Body.String())
	}
}

func TestReindexAfterContentChange(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, repository.Fixture{Courses: []entities.Course{
		courseWithVideo(101, constant.CommerceTypeFree, 0, "v42"),
	}})
	env.publish(t, "v42")

	var granted dto.AccessResponse
	decode(t, env.access(t, 1, "v42"), &granted)
	if granted.Access.Type != "free" {
		t.Fatalf("before reindex: %+v", granted)
	}

	err := env.repo.GetDB().Model(&entities.ContentBlock{}).Where("id = ?", 101*100).Update("data", `{"videoId":"other"}`).Error
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/catalog/reindex/101", nil)
	req.Header.Set("Authorization", bearer(t, 1, constant.RoleAdmin))
	if w := env.do(req); w.Code != http.StatusNoContent {
		t.Fatalf("reindex: %d %s", w.Code, w.Body.String())
	}

	decode(t, env.access(t, 1, "v42"), &granted)
	if granted.Access.Type != "unassigned" {
		t.Fatalf("after reindex: %+v", granted)
	}

	req = httptest.NewRequest(http.MethodPost, "/catalog/reindex/abc", nil)
	req.Header.Set("Authorization", bearer(t, 1, constant.RoleAdmin))
	if w := env.do(req); w.Code != http.StatusBadRequest {
		t.Fatalf("bad course id: %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}

	env.access(t, 1, "ghost")
	w = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `video_gate_http_requests_total{method="POST",route="/videos/access/:videoId"`) {
		t.Fatalf("request metric missing route template label")
	}
}
