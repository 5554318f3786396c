package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/logging"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	kind string
	to   string
	url  string
}

type fakeMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	resetErr error
}

func (m *fakeMailer) SendWelcome(_ context.Context, user models.User, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "welcome", to: user.Email, url: url})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, user models.User, url string) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{kind: "reset", to: user.Email, url: url})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

var errSMTPDown = errors.New("smtp down")

type authFixture struct {
	stores *database.Stores
	clock  *fakeClock
	mailer *fakeMailer
	auth   *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	stores := database.NewMemoryStores()
	require.NoError(t, stores.EnsureIndexes(context.Background()))
	clock := newFakeClock()
	mailer := &fakeMailer{}
	tokens := utils.NewTokenIssuer("test-secret", 90*24*time.Hour, clock.Now)
	auth := NewAuthService(stores.Users, tokens, mailer, logging.Discard(),
		WithBcryptCost(bcrypt.MinCost), WithClock(clock.Now))
	return &authFixture{stores: stores, clock: clock, mailer: mailer, auth: auth}
}

func insertUser(t *testing.T, users database.Collection[models.User], name, email string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pass1234"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		Name:     name,
		Email:    email,
		Photo:    models.DefaultPhoto,
		Role:     role,
		Password: string(hash),
		Active:   models.BoolPtr(true),
	}
	require.NoError(t, users.Insert(context.Background(), u))
	return u
}

func insertTour(t *testing.T, tours database.Collection[models.Tour], tour models.Tour) *models.Tour {
	t.Helper()
	if tour.Duration == 0 {
		tour.Duration = 5
	}
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = models.DefaultRatingsAverage
	}
	require.NoError(t, tours.Insert(context.Background(), &tour))
	return &tour
}
