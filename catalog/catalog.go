// Package catalog maps a video id back to the course whose lesson content embeds it.
//
// The course catalog is owned elsewhere; this package only reads it through Source.
// Lookups go through an in-memory reverse index (video id -> bindings) built from one
// full scan and patched per course with Reindex whenever course content is written.
//
// When several courses embed the same video the binding with the lowest course id wins.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"video-gate/entities"
	"video-gate/pkg/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var ErrCourseNotFound = errors.New("course not found")

const (
	videoBlockType    = "video"
	streamPathSegment = "stream"
)

// Source is the read-only query capability over the course catalog.
type Source interface {
	// ListCourses returns every course with lessons and content blocks loaded.
	ListCourses(ctx context.Context) ([]entities.Course, error)
	// GetCourse returns one course with lessons and content blocks, or ErrCourseNotFound.
	GetCourse(ctx context.Context, id uint) (*entities.Course, error)
}

type Binding struct {
	CourseID           uint
	IsFreeCourse       bool
	AccessDurationDays int
}

type Resolver struct {
	source          Source
	refreshInterval time.Duration
	now             func() time.Time

	mu      sync.RWMutex
	index   map[string][]Binding
	builtAt time.Time
	built   bool

	group singleflight.Group
}

// NewResolver returns a resolver whose index is rebuilt once it is older than
// refreshInterval. A zero interval keeps the index until Invalidate is called.
func NewResolver(source Source, refreshInterval time.Duration) *Resolver {
	return &Resolver{
		source:          source,
		refreshInterval: refreshInterval,
		now:             time.Now,
	}
}

// ResolveCourseForVideo returns the owning course binding, or nil when the video is unassigned.
func (r *Resolver) ResolveCourseForVideo(ctx context.Context, videoID string) (*Binding, error) {
	if err := r.ensureIndex(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	bindings := r.index[videoID]
	if len(bindings) == 0 {
		return nil, nil
	}
	b := bindings[0]
	return &b, nil
}

// Reindex refreshes the index entries of one course after its content changed.
func (r *Resolver) Reindex(ctx context.Context, courseID uint) error {
	if err := r.ensureIndex(ctx); err != nil {
		return err
	}

	course, err := r.source.GetCourse(ctx, courseID)
	if err != nil && !errors.Is(err, ErrCourseNotFound) {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for videoID, bindings := range r.index {
		kept := bindings[:0]
		for _, b := range bindings {
			if b.CourseID != courseID {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			delete(r.index, videoID)
		} else {
			r.index[videoID] = kept
		}
	}
	if course != nil {
		addCourse(ctx, r.index, *course)
	}
	zerolog.Ctx(ctx).Debug().Uint("course_id", courseID).Bool("deleted", course == nil).Msg("catalog course reindexed")
	return nil
}

// Invalidate drops the index; the next lookup rebuilds it.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.built = false
	r.mu.Unlock()
}

func (r *Resolver) ensureIndex(ctx context.Context) error {
	r.mu.RLock()
	fresh := r.built && (r.refreshInterval <= 0 || r.now().Sub(r.builtAt) < r.refreshInterval)
	r.mu.RUnlock()
	if fresh {
		return nil
	}

	_, err, _ := r.group.Do("rebuild", func() (interface{}, error) {
		courses, err := r.source.ListCourses(ctx)
		if err != nil {
			return nil, err
		}
		index := buildIndex(ctx, courses)

		r.mu.Lock()
		r.index = index
		r.builtAt = r.now()
		r.built = true
		r.mu.Unlock()

		metrics.CatalogIndexRebuildsTotal.Inc()
		zerolog.Ctx(ctx).Debug().Int("courses", len(courses)).Int("videos", len(index)).Msg("catalog index rebuilt")
		return nil, nil
	})
	return err
}

func buildIndex(ctx context.Context, courses []entities.Course) map[string][]Binding {
	index := make(map[string][]Binding)
	for _, c := range courses {
		addCourse(ctx, index, c)
	}
	return index
}

func addCourse(ctx context.Context, index map[string][]Binding, course entities.Course) {
	b := Binding{
		CourseID:           course.ID,
		IsFreeCourse:       course.IsFree(),
		AccessDurationDays: course.AccessDurationDays,
	}
	for _, videoID := range courseVideos(course) {
		bindings := index[videoID]
		if len(bindings) > 0 {
			zerolog.Ctx(ctx).Warn().Str("video_id", videoID).Uint("course_id", course.ID).Uint("other_course_id", bindings[0].CourseID).Msg("video embedded by more than one course")
		}
		bindings = append(bindings, b)
		sort.Slice(bindings, func(i, j int) bool { return bindings[i].CourseID < bindings[j].CourseID })
		index[videoID] = bindings
	}
}

// courseVideos lists the distinct video ids referenced by a course's lesson content.
func courseVideos(course entities.Course) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, lesson := range course.Lessons {
		for _, block := range lesson.Blocks {
			for _, id := range blockVideoIDs(block) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}
	return ids
}

type videoBlockData struct {
	VideoID      string `json:"videoId"`
	VideoIDSnake string `json:"video_id"`
	URL          string `json:"url"`
}

// blockVideoIDs returns the ids a video block points at: its explicit id fields
// and, for a stream url (.../stream/{videoId}/...), the segment after "stream".
func blockVideoIDs(block entities.ContentBlock) []string {
	if !strings.EqualFold(block.Type, videoBlockType) {
		return nil
	}
	var data videoBlockData
	if err := json.Unmarshal([]byte(block.Data), &data); err != nil {
		if raw := strings.TrimSpace(block.Data); raw != "" {
			return []string{raw}
		}
		return nil
	}

	var ids []string
	for _, id := range []string{data.VideoID, data.VideoIDSnake} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	if id := streamURLVideoID(data.URL); id != "" {
		ids = append(ids, id)
	}
	return ids
}

func streamURLVideoID(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == streamPathSegment && segments[i+1] != "" {
			return segments[i+1]
		}
	}
	return ""
}

// References reports whether a content block embeds videoID.
func References(block entities.ContentBlock, videoID string) bool {
	for _, id := range blockVideoIDs(block) {
		if id == videoID {
			return true
		}
	}
	return false
}

// Scan is the unindexed lookup: walk courses in order and return the first
// course whose lessons reference videoID. Courses are expected in ascending id order.
func Scan(courses []entities.Course, videoID string) *Binding {
	for _, c := range courses {
		for _, lesson := range c.Lessons {
			for _, block := range lesson.Blocks {
				if References(block, videoID) {
					return &Binding{
						CourseID:           c.ID,
						IsFreeCourse:       c.IsFree(),
						AccessDurationDays: c.AccessDurationDays,
					}
				}
			}
		}
	}
	return nil
}
