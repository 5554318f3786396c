package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/utils"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	ResetTokenTTL     = 10 * time.Minute
	// passwordChangeSkew backdates passwordChangedAt so a token issued in the
	// same second as the change stays valid.
	passwordChangeSkew = time.Second
)

// Mailer sends the account emails.
type Mailer interface {
	SendWelcome(ctx context.Context, user models.User, url string) error
	SendPasswordReset(ctx context.Context, user models.User, url string) error
}

type SignupInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type PasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// Session is a signed-in user and the token that identifies them.
type Session struct {
	User  *models.User
	Token string
}

type AuthService struct {
	users  database.Collection[models.User]
	tokens *utils.TokenIssuer
	mailer Mailer
	log    *logrus.Logger
	cost   int
	now    func() time.Time

	// dummyHash keeps login timing the same for unknown emails.
	dummyHash []byte
	pending   sync.WaitGroup
}

type AuthOption func(*AuthService)

func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(users database.Collection[models.User], tokens *utils.TokenIssuer, mailer Mailer, log *logrus.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		log:    log,
		cost:   DefaultBcryptCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	return s
}

// Signup creates a regular user, queues the welcome email and signs them in.
// Any role in the request is ignored.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, accountURL string) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Photo:    models.DefaultPhoto,
		Role:     models.RoleUser,
		Password: string(hash),
		Active:   models.BoolPtr(true),
	}
	if err := models.Validate(user); err != nil {
		return nil, err
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	welcome := *user
	s.dispatch("welcome", func(ctx context.Context) error {
		return s.mailer.SendWelcome(ctx, welcome, accountURL)
	})

	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, apperror.BadRequest("Please provide email and password!")
	}

	user, err := s.users.FindOne(ctx, database.Merge(models.ActiveUsers(), bson.M{"email": normalizeEmail(email)}))
	if errors.Is(err, database.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperror.Unauthorized("Incorrect email or password")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperror.Unauthorized("Incorrect email or password")
	}
	return s.session(user)
}

// Authenticate resolves a session token to its user. Token errors are
// returned as is so callers can tell expiry from tampering.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.ParseJWT(token)
	if err != nil {
		return nil, err
	}
	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, apperror.Unauthorized("Invalid token. Please log in again!")
	}

	user, err := s.users.FindOne(ctx, database.ByID(id, models.ActiveUsers()))
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperror.Unauthorized("The user belonging to this token no longer exists.")
	}
	if err != nil {
		return nil, err
	}
	if user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperror.Unauthorized("User recently changed password! Please log in again.")
	}
	return user, nil
}

// ForgotPassword stores a hashed single-use reset token and mails the raw
// token inside the link built by resetURL. A failed send rolls the token
// back.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	user, err := s.users.FindOne(ctx, database.Merge(models.ActiveUsers(), bson.M{"email": normalizeEmail(email)}))
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound("There is no user with that email address.")
	}
	if err != nil {
		return err
	}

	raw, hashed, err := newResetToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(ResetTokenTTL)
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"passwordResetToken":   hashed,
		"passwordResetExpires": expires,
	}}); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, *user, resetURL(raw)); err != nil {
		s.log.WithError(err).WithField("user", user.ID.Hex()).Error("password reset email failed")
		if _, rbErr := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		}}); rbErr != nil {
			s.log.WithError(rbErr).Error("failed to clear password reset token")
		}
		return apperror.Internal("There was an error sending the email. Try again later!", err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, in PasswordInput) (*Session, error) {
	user, err := s.users.FindOne(ctx, database.Merge(models.ActiveUsers(), bson.M{
		"passwordResetToken":   HashResetToken(rawToken),
		"passwordResetExpires": bson.M{"$gt": s.now()},
	}))
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperror.BadRequest("Token is invalid or has expired")
	}
	if err != nil {
		return nil, err
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	updated, err := s.setPassword(ctx, user.ID, in.Password)
	if err != nil {
		return nil, err
	}
	return s.session(updated)
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID primitive.ObjectID, in UpdatePasswordInput) (*Session, error) {
	user, err := s.users.FindOne(ctx, database.ByID(userID, models.ActiveUsers()))
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.PasswordCurrent)) != nil {
		return nil, apperror.Unauthorized("Your current password is wrong.")
	}
	if err := models.Validate(in); err != nil {
		return nil, err
	}

	updated, err := s.setPassword(ctx, user.ID, in.Password)
	if err != nil {
		return nil, err
	}
	return s.session(updated)
}

// Wait blocks until queued emails have been handed to the transport.
func (s *AuthService) Wait() {
	s.pending.Wait()
}

func (s *AuthService) setPassword(ctx context.Context, id primitive.ObjectID, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	return s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"password":          string(hash),
			"passwordChangedAt": s.now().Add(-passwordChangeSkew),
		},
		"$unset": bson.M{
			"passwordResetToken":   "",
			"passwordResetExpires": "",
		},
	})
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.GenerateJWT(user.ID.Hex())
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

func (s *AuthService) dispatch(kind string, send func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			s.log.WithError(err).WithField("email", kind).Error("failed to send email")
		}
	}()
}

func newResetToken() (raw, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	return raw, HashResetToken(raw), nil
}

// HashResetToken is the stored form of a reset token.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
