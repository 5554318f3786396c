package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

const DefaultPhoto = "default.jpg"

type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name                 string             `bson:"name" json:"name,omitempty" validate:"required"`
	Email                string             `bson:"email" json:"email,omitempty" validate:"required,email"`
	Photo                string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Role                 Role               `bson:"role,omitempty" json:"role,omitempty" validate:"omitempty,oneof=user guide lead-guide admin"`
	Password             string             `bson:"password,omitempty" json:"-"`
	PasswordChangedAt    *time.Time         `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time         `bson:"passwordResetExpires,omitempty" json:"-"`
	Active               *bool              `bson:"active,omitempty" json:"-"`
}

func (u *User) GetID() primitive.ObjectID    { return u.ID }
func (u *User) SetID(id primitive.ObjectID) { u.ID = id }

func (u *User) IsActive() bool { return u.Active == nil || *u.Active }

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat. Comparison is at second granularity, as in the token.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Summary is the public projection embedded in other resources.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.Photo, Role: u.Role}
}

type UserSummary struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email,omitempty"`
	Photo string             `json:"photo,omitempty"`
	Role  Role               `json:"role,omitempty"`
}

// ActiveUsers excludes soft-deleted accounts.
func ActiveUsers() bson.M {
	return bson.M{"active": bson.M{"$ne": false}}
}

func BoolPtr(b bool) *bool { return &b }
