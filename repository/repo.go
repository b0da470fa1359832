package repository

import (
	"context"
	"errors"
	"video-gate/catalog"
	"video-gate/entities"

	"gorm.io/gorm"
)

// Repository reads the course catalog and purchase records owned by the main application.
// The only writes it performs are schema migrations and development seeding.
type Repository interface {
	GetDB() *gorm.DB
	AutoMigrate(ctx context.Context) error
	ListCourses(ctx context.Context) ([]entities.Course, error)
	GetCourse(ctx context.Context, id uint) (*entities.Course, error)
	FindPurchase(ctx context.Context, userID, courseID uint) (*entities.Purchase, error)
	Transaction(ctx context.Context, callback func(tx Repository) error) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repository {
	return &repo{
		db: db,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&entities.Course{},
		&entities.Lesson{},
		&entities.ContentBlock{},
		&entities.Purchase{},
	)
}

func (r *repo) Transaction(ctx context.Context, callback func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(&repo{db: tx})
	})
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

func (r *repo) withContent(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lessons", byPosition).
		Preload("Lessons.Blocks", byPosition)
}

func (r *repo) ListCourses(ctx context.Context) ([]entities.Course, error) {
	var courses []entities.Course
	err := r.withContent(ctx).Order("id ASC").Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *repo) GetCourse(ctx context.Context, id uint) (*entities.Course, error) {
	course := &entities.Course{}
	err := r.withContent(ctx).First(course, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

// FindPurchase returns the latest purchase of the course by the user, or nil when there is none.
// A repurchase therefore restarts the access window.
func (r *repo) FindPurchase(ctx context.Context, userID, courseID uint) (*entities.Purchase, error) {
	var purchases []entities.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("purchased_at DESC").
		Limit(1).
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return nil, nil
	}
	return &purchases[0], nil
}
