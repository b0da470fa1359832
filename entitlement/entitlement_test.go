package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"
	"video-gate/catalog"
	"video-gate/constant"
	"video-gate/entities"
)

type fakeResolver map[string]catalog.Binding

func (f fakeResolver) ResolveCourseForVideo(_ context.Context, videoID string) (*catalog.Binding, error) {
	b, ok := f[videoID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

type fakePurchases struct {
	purchases []entities.Purchase
	calls     int
}

func (f *fakePurchases) FindPurchase(_ context.Context, userID, courseID uint) (*entities.Purchase, error) {
	f.calls++
	for _, p := range f.purchases {
		if p.UserID == userID && p.CourseID == courseID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

type fakeSegments map[string]bool

func (f fakeSegments) Exists(_ context.Context, videoID, name string) (bool, error) {
	return f[videoID] && name == constant.PlaylistName, nil
}

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestEvaluator(resolver fakeResolver, purchases *fakePurchases, ready ...string) *Evaluator {
	segments := fakeSegments{}
	for _, id := range ready {
		segments[id] = true
	}
	return NewEvaluator(resolver, purchases, segments, DefaultPolicy()).WithClock(func() time.Time { return now })
}

func TestEvaluateUnassignedIgnoresPurchases(t *testing.T) {
	purchases := &fakePurchases{purchases: []entities.Purchase{{UserID: 7, CourseID: 1, PurchasedAt: now.AddDate(-1, 0, 0)}}}
	e := newTestEvaluator(fakeResolver{}, purchases, "intro-1")

	d, err := e.Evaluate(context.Background(), 7, "intro-1")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if d.Type != constant.AccessTypeUnassigned {
		t.Errorf("Expected unassigned, got %s", d.Type)
	}
	if d.TTL != 24*time.Hour {
		t.Errorf("Expected 24h TTL, got %v", d.TTL)
	}
	if d.CourseID != nil {
		t.Errorf("Expected no course id, got %v", *d.CourseID)
	}
	if purchases.calls != 0 {
		t.Errorf("Expected no purchase lookups, got %d", purchases.calls)
	}
}

func TestEvaluateFreeCourseSkipsPurchaseLookup(t *testing.T) {
	purchases := &fakePurchases{}
	e := newTestEvaluator(fakeResolver{"v42": {CourseID: 101, IsFreeCourse: true}}, purchases, "v42")

	for _, user := range []uint{1, 2, 3} {
		d, err := e.Evaluate(context.Background(), user, "v42")
		if err != nil {
			t.Fatalf("Evaluate returned error: %v", err)
		}
		if d.Type != constant.AccessTypeFree {
			t.Errorf("Expected free, got %s", d.Type)
		}
		if d.TTL != time.Hour {
			t.Errorf("Expected 1h TTL, got %v", d.TTL)
		}
		if d.CourseID == nil || *d.CourseID != 101 {
			t.Errorf("Expected course 101, got %v", d.CourseID)
		}
	}
	if purchases.calls != 0 {
		t.Errorf("Expected 0 purchase lookups for free course, got %d", purchases.calls)
	}
}

func TestEvaluatePaidWithoutPurchase(t *testing.T) {
	e := newTestEvaluator(fakeResolver{"v99": {CourseID: 202, AccessDurationDays: 30}}, &fakePurchases{}, "v99")

	_, err := e.Evaluate(context.Background(), 5, "v99")
	if !errors.Is(err, ErrNotPurchased) {
		t.Errorf("Expected ErrNotPurchased, got %v", err)
	}
}

func TestEvaluatePaidExpired(t *testing.T) {
	purchases := &fakePurchases{purchases: []entities.Purchase{{UserID: 5, CourseID: 202, PurchasedAt: now.AddDate(0, 0, -31)}}}
	e := newTestEvaluator(fakeResolver{"v99": {CourseID: 202, AccessDurationDays: 30}}, purchases, "v99")

	_, err := e.Evaluate(context.Background(), 5, "v99")
	if !errors.Is(err, ErrAccessExpired) {
		t.Errorf("Expected ErrAccessExpired, got %v", err)
	}
}

func TestEvaluatePaidValid(t *testing.T) {
	purchases := &fakePurchases{purchases: []entities.Purchase{{UserID: 5, CourseID: 202, PurchasedAt: now.AddDate(0, 0, -2)}}}
	e := newTestEvaluator(fakeResolver{"v99": {CourseID: 202, AccessDurationDays: 30}}, purchases, "v99")

	d, err := e.Evaluate(context.Background(), 5, "v99")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if d.Type != constant.AccessTypePaid {
		t.Errorf("Expected paid, got %s", d.Type)
	}
	if d.RemainingSeconds() <= 0 || d.TTL > time.Hour {
		t.Errorf("Expected 0 < TTL <= 1h, got %v", d.TTL)
	}
	if days := d.RemainingDays(); days == nil || *days != 28 {
		t.Errorf("Expected 28 remaining days, got %v", days)
	}
	want := now.AddDate(0, 0, 28)
	if d.AccessExpiresAt == nil || !d.AccessExpiresAt.Equal(want) {
		t.Errorf("Expected access until %v, got %v", want, d.AccessExpiresAt)
	}
}

func TestEvaluatePaidNearExpiryUsesRemainingWindow(t *testing.T) {
	purchasedAt := now.AddDate(0, 0, -30).Add(10 * time.Minute)
	purchases := &fakePurchases{purchases: []entities.Purchase{{UserID: 5, CourseID: 202, PurchasedAt: purchasedAt}}}
	e := newTestEvaluator(fakeResolver{"v99": {CourseID: 202, AccessDurationDays: 30}}, purchases, "v99")

	d, err := e.Evaluate(context.Background(), 5, "v99")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if d.TTL != 10*time.Minute {
		t.Errorf("Expected TTL bounded by access window (10m), got %v", d.TTL)
	}
}

func TestEvaluatePaidLifetimeAccess(t *testing.T) {
	purchases := &fakePurchases{purchases: []entities.Purchase{{UserID: 5, CourseID: 7, PurchasedAt: now.AddDate(-3, 0, 0)}}}
	e := newTestEvaluator(fakeResolver{"v": {CourseID: 7}}, purchases, "v")

	d, err := e.Evaluate(context.Background(), 5, "v")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if d.TTL != time.Hour || d.AccessExpiresAt != nil {
		t.Errorf("Expected capped TTL and no expiry, got %v / %v", d.TTL, d.AccessExpiresAt)
	}
}

func TestEvaluateOtherUsersPurchaseDoesNotCount(t *testing.T) {
	purchases := &fakePurchases{purchases: []entities.Purchase{{UserID: 6, CourseID: 202, PurchasedAt: now}}}
	e := newTestEvaluator(fakeResolver{"v99": {CourseID: 202, AccessDurationDays: 30}}, purchases, "v99")

	if _, err := e.Evaluate(context.Background(), 5, "v99"); !errors.Is(err, ErrNotPurchased) {
		t.Errorf("Expected ErrNotPurchased, got %v", err)
	}
}

func TestEvaluateVideoNotReady(t *testing.T) {
	e := newTestEvaluator(fakeResolver{}, &fakePurchases{})

	if _, err := e.Evaluate(context.Background(), 1, "missing"); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("Expected ErrVideoNotFound, got %v", err)
	}
}
