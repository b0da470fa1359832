// Package entitlement decides whether a user may watch a video, and for how long.
//
// A video nobody owns (unassigned) and videos of free courses get a fixed short
// lifetime. Paid-course videos need a purchase whose access window is still open;
// their lifetime is the rest of that window, capped at Policy.MaxTTL so that even
// lifetime purchases get re-evaluated periodically.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"video-gate/catalog"
	"video-gate/constant"
	"video-gate/entities"
	"video-gate/pkg/metrics"

	"github.com/rs/zerolog"
)

var (
	ErrVideoNotFound = errors.New("video not found")
	ErrNotPurchased  = errors.New("course not purchased")
	ErrAccessExpired = errors.New("course access expired")
)

type CourseResolver interface {
	ResolveCourseForVideo(ctx context.Context, videoID string) (*catalog.Binding, error)
}

type PurchaseStore interface {
	// FindPurchase returns the most recent purchase of the course by the user, or nil.
	FindPurchase(ctx context.Context, userID, courseID uint) (*entities.Purchase, error)
}

type SegmentChecker interface {
	Exists(ctx context.Context, videoID, name string) (bool, error)
}

type Policy struct {
	UnassignedTTL time.Duration
	FreeTTL       time.Duration
	MaxTTL        time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		UnassignedTTL: 24 * time.Hour,
		FreeTTL:       time.Hour,
		MaxTTL:        time.Hour,
	}
}

type Decision struct {
	Type     constant.AccessType
	UserID   uint
	VideoID  string
	CourseID *uint
	// AccessExpiresAt is the end of a paid purchase window; nil for unassigned, free and lifetime access.
	AccessExpiresAt *time.Time
	// TTL is how long a token minted from this decision may live.
	TTL         time.Duration
	EvaluatedAt time.Time
}

func (d Decision) RemainingSeconds() int64 {
	return int64(math.Ceil(d.TTL.Seconds()))
}

// RemainingDays is the number of started days left in a paid access window.
func (d Decision) RemainingDays() *int {
	if d.AccessExpiresAt == nil {
		return nil
	}
	days := int(math.Ceil(d.AccessExpiresAt.Sub(d.EvaluatedAt).Hours() / 24))
	return &days
}

type Evaluator struct {
	courses   CourseResolver
	purchases PurchaseStore
	segments  SegmentChecker
	policy    Policy
	now       func() time.Time
}

func NewEvaluator(courses CourseResolver, purchases PurchaseStore, segments SegmentChecker, policy Policy) *Evaluator {
	return &Evaluator{
		courses:   courses,
		purchases: purchases,
		segments:  segments,
		policy:    policy,
		now:       time.Now,
	}
}

// WithClock replaces the evaluator's time source.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

func (e *Evaluator) Evaluate(ctx context.Context, userID uint, videoID string) (decision Decision, err error) {
	defer func() {
		outcome := string(decision.Type)
		switch {
		case errors.Is(err, ErrVideoNotFound):
			outcome = "video_not_found"
		case errors.Is(err, ErrNotPurchased):
			outcome = "not_purchased"
		case errors.Is(err, ErrAccessExpired):
			outcome = "access_expired"
		case err != nil:
			outcome = "error"
		}
		metrics.AccessDecisionsTotal.WithLabelValues(outcome).Inc()
	}()

	ready, err := e.segments.Exists(ctx, videoID, constant.PlaylistName)
	if err != nil {
		return Decision{}, fmt.Errorf("check playlist: %w", err)
	}
	if !ready {
		return Decision{}, ErrVideoNotFound
	}

	binding, err := e.courses.ResolveCourseForVideo(ctx, videoID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve course: %w", err)
	}

	now := e.now()
	decision = Decision{UserID: userID, VideoID: videoID, EvaluatedAt: now}

	if binding == nil {
		decision.Type = constant.AccessTypeUnassigned
		decision.TTL = e.policy.UnassignedTTL
		return decision, nil
	}

	courseID := binding.CourseID
	decision.CourseID = &courseID
	if binding.IsFreeCourse {
		decision.Type = constant.AccessTypeFree
		decision.TTL = e.policy.FreeTTL
		return decision, nil
	}

	purchase, err := e.purchases.FindPurchase(ctx, userID, courseID)
	if err != nil {
		return Decision{}, fmt.Errorf("find purchase: %w", err)
	}
	if purchase == nil {
		zerolog.Ctx(ctx).Debug().Uint("user_id", userID).Uint("course_id", courseID).Msg("no purchase for paid course")
		return Decision{}, ErrNotPurchased
	}

	decision.Type = constant.AccessTypePaid
	if binding.AccessDurationDays <= 0 {
		decision.TTL = e.policy.MaxTTL
		return decision, nil
	}

	expiresAt := purchase.PurchasedAt.AddDate(0, 0, binding.AccessDurationDays)
	if now.After(expiresAt) {
		zerolog.Ctx(ctx).Debug().Uint("user_id", userID).Uint("course_id", courseID).Time("expired_at", expiresAt).Msg("course access expired")
		return Decision{}, ErrAccessExpired
	}
	decision.AccessExpiresAt = &expiresAt
	decision.TTL = min(expiresAt.Sub(now), e.policy.MaxTTL)
	return decision, nil
}
