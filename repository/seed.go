package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"video-gate/entities"
)

// Fixture is a development data set: courses with their lessons and blocks, plus purchases.
type Fixture struct {
	Courses   []entities.Course   `json:"courses"`
	Purchases []entities.Purchase `json:"purchases"`
}

func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fixture := &Fixture{}
	if err := json.Unmarshal(raw, fixture); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return fixture, nil
}

// Seed inserts the fixture in one transaction. Lessons and blocks are created through the course associations.
func Seed(ctx context.Context, r Repository, fixture Fixture) error {
	return r.Transaction(ctx, func(tx Repository) error {
		for i := range fixture.Courses {
			if err := tx.GetDB().Create(&fixture.Courses[i]).Error; err != nil {
				return fmt.Errorf("create course %q: %w", fixture.Courses[i].Title, err)
			}
		}
		for i := range fixture.Purchases {
			if err := tx.GetDB().Create(&fixture.Purchases[i]).Error; err != nil {
				return fmt.Errorf("create purchase for user %d: %w", fixture.Purchases[i].UserID, err)
			}
		}
		return nil
	})
}
