package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/database/testutil"
	"github.com/eventnest/eventnest/internal/models"
)

func newAuthenticator(t *testing.T, cfg LocalConfig) (*LocalAuthenticator, func() *models.User) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	a, err := NewLocalAuthenticator(db, cfg)
	require.NoError(t, err)

	reload := func() *models.User {
		var u models.User
		require.NoError(t, db.Take(&u, "username = ?", "alice").Error)
		return &u
	}
	return a, reload
}

func TestRegisterAndAuthenticate(t *testing.T) {
	current := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	a, reload := newAuthenticator(t, LocalConfig{Clock: func() time.Time { return current }})
	ctx := context.Background()

	user, err := a.Register(ctx, RegisterInput{Username: "alice", Email: " Alice@Example.com ", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "password123", user.Password)

	byName, err := a.Authenticate(ctx, "ALICE", "password123")
	require.NoError(t, err)
	require.Equal(t, user.ID, byName.ID)

	byEmail, err := a.Authenticate(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)

	stored := reload()
	require.NotNil(t, stored.LastLoginAt)
	require.True(t, stored.LastLoginAt.Equal(current))
}

func TestRegisterDuplicate(t *testing.T) {
	a, _ := newAuthenticator(t, LocalConfig{})
	ctx := context.Background()

	_, err := a.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = a.Register(ctx, RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "pw"})
	require.ErrorIs(t, err, ErrUserExists)
}

func TestAuthenticateLocksAfterThreshold(t *testing.T) {
	current := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	a, reload := newAuthenticator(t, LocalConfig{
		LockoutThreshold: 2,
		LockoutDuration:  10 * time.Minute,
		Clock:            func() time.Time { return current },
	})
	ctx := context.Background()

	_, err := a.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct"})
	require.NoError(t, err)

	_, err = a.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrAccountLocked)
	require.NotNil(t, reload().LockedUntil)

	_, err = a.Authenticate(ctx, "alice", "correct")
	require.ErrorIs(t, err, ErrAccountLocked)

	current = current.Add(11 * time.Minute)
	_, err = a.Authenticate(ctx, "alice", "correct")
	require.NoError(t, err)
	require.Equal(t, 0, reload().FailedAttempts)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	a, _ := newAuthenticator(t, LocalConfig{})
	_, err := a.Authenticate(context.Background(), "ghost", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
