package services

import (
	"context"
	"strings"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProfileUpdate is the self-service subset of a user. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Name  *string
	Email *string
	Photo *string
}

type UserService struct {
	users database.Collection[models.User]
}

func NewUserService(users database.Collection[models.User]) *UserService {
	return &UserService{users: users}
}

// UpdateMe applies a profile update to the signed-in user and returns the
// stored result.
func (s *UserService) UpdateMe(ctx context.Context, id primitive.ObjectID, in ProfileUpdate) (*models.User, error) {
	set := bson.M{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.BadRequest("Invalid input data. Please tell us your name!")
		}
		set["name"] = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		candidate := models.User{Name: "candidate", Email: email}
		if err := models.Validate(&candidate); err != nil {
			return nil, err
		}
		set["email"] = email
	}
	if in.Photo != nil && *in.Photo != "" {
		set["photo"] = *in.Photo
	}

	filter := database.ByID(id, models.ActiveUsers())
	if len(set) == 0 {
		return s.users.FindOne(ctx, filter)
	}
	return s.users.UpdateOne(ctx, filter, bson.M{"$set": set})
}

// Prepare normalises an admin write so the account can still log in.
func (s *UserService) Prepare(_ context.Context, user *models.User, _ *models.User) error {
	user.Email = normalizeEmail(user.Email)
	user.Name = strings.TrimSpace(user.Name)
	return nil
}

// Deactivate soft-deletes the account.
func (s *UserService) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": false}})
	return err
}

// Summaries loads the public projection of the given active users, keyed
// by id. Missing or inactive users are absent from the map.
func (s *UserService) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	return userSummaries(ctx, s.users, ids)
}

func userSummaries(ctx context.Context, users database.Collection[models.User], ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := map[primitive.ObjectID]models.UserSummary{}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	found, err := users.Find(ctx, database.Query{
		Filter: database.Merge(models.ActiveUsers(), bson.M{"_id": bson.M{"$in": ids}}),
		Projection: bson.D{
			{Key: "name", Value: 1},
			{Key: "email", Value: 1},
			{Key: "photo", Value: 1},
			{Key: "role", Value: 1},
		},
	})
	if err != nil {
		return nil, err
	}
	for i := range found {
		out[found[i].ID] = found[i].Summary()
	}
	return out, nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
