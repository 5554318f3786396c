// Package seed loads and removes the development data set.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/gosimple/slug"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ToursFile   = "tours.json"
	UsersFile   = "users.json"
	ReviewsFile = "reviews.json"
)

// RatingsCalculator recomputes a tour's rating aggregate.
type RatingsCalculator interface {
	RecalculateRatings(ctx context.Context, tourID primitive.ObjectID) error
}

// userRecord exposes the stored hash that models.User hides from JSON.
type userRecord struct {
	models.User
	Password string `json:"password"`
	Active   *bool  `json:"active"`
}

type Result struct {
	Tours   int
	Users   int
	Reviews int
}

// Import inserts the tours, users and reviews found in dir. User passwords
// are expected to be bcrypt hashes already.
func Import(ctx context.Context, stores *database.Stores, dir string, ratings RatingsCalculator, log *logrus.Logger) (Result, error) {
	var res Result
	now := time.Now()

	var tours []models.Tour
	if err := readJSON(filepath.Join(dir, ToursFile), &tours); err != nil {
		return res, err
	}
	for i := range tours {
		t := &tours[i]
		if t.Slug == "" {
			t.Slug = slug.Make(t.Name)
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.RatingsAverage == 0 {
			t.RatingsAverage = models.DefaultRatingsAverage
		}
		if t.StartLocation != nil && t.StartLocation.Type == "" {
			t.StartLocation.Type = "Point"
		}
		for j := range t.Locations {
			if t.Locations[j].Type == "" {
				t.Locations[j].Type = "Point"
			}
		}
		if err := stores.Tours.Insert(ctx, t); err != nil {
			return res, fmt.Errorf("insert tour %q: %w", t.Name, err)
		}
		res.Tours++
	}

	var users []userRecord
	if err := readJSON(filepath.Join(dir, UsersFile), &users); err != nil {
		return res, err
	}
	for i := range users {
		u := users[i].User
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		u.Password = users[i].Password
		u.Active = users[i].Active
		if u.Role == "" {
			u.Role = models.RoleUser
		}
		if u.Photo == "" {
			u.Photo = models.DefaultPhoto
		}
		if err := stores.Users.Insert(ctx, &u); err != nil {
			return res, fmt.Errorf("insert user %q: %w", u.Email, err)
		}
		res.Users++
	}

	var reviews []models.Review
	if err := readJSON(filepath.Join(dir, ReviewsFile), &reviews); err != nil {
		return res, err
	}
	touched := map[primitive.ObjectID]struct{}{}
	for i := range reviews {
		r := &reviews[i]
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if err := stores.Reviews.Insert(ctx, r); err != nil {
			return res, fmt.Errorf("insert review %s: %w", r.ID.Hex(), err)
		}
		touched[r.Tour] = struct{}{}
		res.Reviews++
	}

	for tourID := range touched {
		if err := ratings.RecalculateRatings(ctx, tourID); err != nil {
			return res, fmt.Errorf("recalculate ratings for %s: %w", tourID.Hex(), err)
		}
	}

	log.WithFields(logrus.Fields{
		"tours":   res.Tours,
		"users":   res.Users,
		"reviews": res.Reviews,
	}).Info("data successfully loaded")
	return res, nil
}

// Delete removes every document from the tours, users and reviews
// collections.
func Delete(ctx context.Context, stores *database.Stores, log *logrus.Logger) error {
	steps := []struct {
		name string
		run  func() (int64, error)
	}{
		{database.ToursCollection, func() (int64, error) { return stores.Tours.DeleteMany(ctx, bson.M{}) }},
		{database.UsersCollection, func() (int64, error) { return stores.Users.DeleteMany(ctx, bson.M{}) }},
		{database.ReviewsCollection, func() (int64, error) { return stores.Reviews.DeleteMany(ctx, bson.M{}) }},
	}
	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			return fmt.Errorf("delete %s: %w", step.name, err)
		}
		log.WithField("collection", step.name).WithField("deleted", n).Info("data successfully deleted")
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
