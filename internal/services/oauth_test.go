package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hikeclub/internal/models"
)

const testInvitationCode = "trail-2025"

func newTestOAuth(t *testing.T) (*OAuthService, *UserService) {
	t.Helper()
	conn := newTestDB(t)
	users := NewUserService(conn, testLogger)
	return NewOAuthService(users, newTestTokens(), testInvitationCode, testLogger), users
}

func googleAssertion(uid, email string) Assertion {
	return Assertion{
		Provider:  models.ProviderGoogle,
		UID:       uid,
		Email:     email,
		Name:      "Camille Martin",
		AvatarURL: "https://lh3.googleusercontent.com/a/x=s96-c",
	}
}

func countUsers(t *testing.T, users *UserService) int64 {
	t.Helper()
	var n int64
	require.NoError(t, users.db.Model(&models.User{}).Count(&n).Error)
	return n
}

func TestHandleCallback_MatchesByProviderIdentity(t *testing.T) {
	svc, users := newTestOAuth(t)
	ctx := context.Background()

	u := &models.User{EmailAddress: "old@x.com", Name: "Kept"}
	u.LinkOAuth(models.ProviderGoogle, "uid-1")
	require.NoError(t, users.db.Create(u).Error)

	// the provider identity wins even when the email changed upstream
	res, err := svc.HandleCallback(ctx, googleAssertion("uid-1", "new@x.com"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSignedIn, res.Outcome)
	assert.False(t, res.AutoLinked)
	assert.Equal(t, u.ID, res.User.ID)
	assert.Equal(t, "Kept", res.User.Name)
}

func TestHandleCallback_AutoLinksByEmail(t *testing.T) {
	svc, users := newTestOAuth(t)
	ctx := context.Background()
	existing := createUser(t, users.db, "camille@x.com", models.RoleModerator)

	res, err := svc.HandleCallback(ctx, googleAssertion("uid-9", "  Camille@X.com"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSignedIn, res.Outcome)
	assert.True(t, res.AutoLinked)
	assert.Equal(t, existing.ID, res.User.ID)
	assert.Empty(t, res.PendingToken)

	reloaded, err := users.Find(ctx, existing.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.OAuthLinked())
	assert.Equal(t, "uid-9", *reloaded.UID)
	assert.Equal(t, "Camille Martin", reloaded.Name)
	assert.Equal(t, "https://lh3.googleusercontent.com/a/x=s96-c", reloaded.AvatarURL)
	assert.Equal(t, models.RoleModerator, reloaded.Role)
	assert.Equal(t, existing.PasswordDigest, reloaded.PasswordDigest)
	assert.Equal(t, int64(1), countUsers(t, users))
}

func TestHandleCallback_UnknownIdentityGoesPending(t *testing.T) {
	svc, users := newTestOAuth(t)

	res, err := svc.HandleCallback(context.Background(), googleAssertion("uid-2", "New@x.com"))
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Nil(t, res.User)
	require.NotEmpty(t, res.PendingToken)
	assert.Zero(t, countUsers(t, users))

	p, err := svc.Pending(res.PendingToken)
	require.NoError(t, err)
	assert.Equal(t, PendingRegistration{
		Provider:  models.ProviderGoogle,
		UID:       "uid-2",
		Email:     "new@x.com",
		Name:      "Camille Martin",
		AvatarURL: "https://lh3.googleusercontent.com/a/x=s96-c",
	}, *p)
}

func TestHandleCallback_RejectsIncompleteAssertion(t *testing.T) {
	svc, _ := newTestOAuth(t)

	_, err := svc.HandleCallback(context.Background(), Assertion{Provider: models.ProviderGoogle, Email: "a@x.com"})
	assert.Error(t, err)
}

func TestCompleteRegistration(t *testing.T) {
	svc, users := newTestOAuth(t)
	ctx := context.Background()

	res, err := svc.HandleCallback(ctx, googleAssertion("uid-3", "walker@x.com"))
	require.NoError(t, err)

	_, err = svc.CompleteRegistration(ctx, res.PendingToken, "wrong")
	assert.ErrorIs(t, err, ErrInvitationMismatch)
	assert.Zero(t, countUsers(t, users))

	// the pending state survives a mismatch
	_, err = svc.Pending(res.PendingToken)
	require.NoError(t, err)

	u, err := svc.CompleteRegistration(ctx, res.PendingToken, testInvitationCode)
	require.NoError(t, err)
	assert.Equal(t, "walker@x.com", u.EmailAddress)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.True(t, u.OAuthLinked())
	assert.False(t, u.HasPassword())
	assert.Equal(t, int64(1), countUsers(t, users))

	// replaying the token hits the unique index instead of creating a twin
	_, err = svc.CompleteRegistration(ctx, res.PendingToken, testInvitationCode)
	assert.ErrorIs(t, err, ErrUniqueConstraintRace)
	assert.Equal(t, int64(1), countUsers(t, users))
}

func TestCompleteRegistration_MissingPendingState(t *testing.T) {
	svc, _ := newTestOAuth(t)

	_, err := svc.CompleteRegistration(context.Background(), "", testInvitationCode)
	assert.ErrorIs(t, err, ErrPendingStateMissing)

	_, err = svc.CompleteRegistration(context.Background(), "garbage", testInvitationCode)
	assert.ErrorIs(t, err, ErrPendingStateMissing)
}

func TestCompleteRegistration_UnsetCodeAdmitsNobody(t *testing.T) {
	conn := newTestDB(t)
	users := NewUserService(conn, testLogger)
	svc := NewOAuthService(users, newTestTokens(), "", testLogger)
	ctx := context.Background()

	res, err := svc.HandleCallback(ctx, googleAssertion("uid-4", "x@x.com"))
	require.NoError(t, err)

	_, err = svc.CompleteRegistration(ctx, res.PendingToken, "")
	assert.ErrorIs(t, err, ErrInvitationMismatch)
}

func TestLink(t *testing.T) {
	svc, users := newTestOAuth(t)
	ctx := context.Background()
	u := createUser(t, users.db, "a@x.com", models.RoleUser)

	// the assertion email does not need to match the account
	require.NoError(t, svc.Link(ctx, u, googleAssertion("uid-5", "someone-else@gmail.com")))
	reloaded, err := users.Find(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "uid-5", *reloaded.UID)
	assert.Equal(t, "a@x.com", reloaded.EmailAddress)

	// relinking the same identity is idempotent
	assert.NoError(t, svc.Link(ctx, reloaded, googleAssertion("uid-5", "someone-else@gmail.com")))
}

func TestLink_Failures(t *testing.T) {
	svc, users := newTestOAuth(t)
	ctx := context.Background()
	owner := createUser(t, users.db, "owner@x.com", models.RoleUser)
	require.NoError(t, svc.Link(ctx, owner, googleAssertion("uid-6", "owner@x.com")))
	other := createUser(t, users.db, "other@x.com", models.RoleUser)

	assert.ErrorIs(t, svc.Link(ctx, other, googleAssertion("uid-6", "owner@x.com")), ErrLinkFailed)
	assert.ErrorIs(t, svc.Link(ctx, nil, googleAssertion("uid-7", "x@x.com")), ErrLinkFailed)
	assert.ErrorIs(t, svc.Link(ctx, &models.User{}, googleAssertion("uid-7", "x@x.com")), ErrLinkFailed)
}

func TestUnlink(t *testing.T) {
	svc, users := newTestOAuth(t)
	ctx := context.Background()

	u := createUser(t, users.db, "a@x.com", models.RoleUser)
	assert.ErrorIs(t, svc.Unlink(ctx, u), ErrNotLinked)

	require.NoError(t, svc.Link(ctx, u, googleAssertion("uid-8", "a@x.com")))
	require.NoError(t, svc.Unlink(ctx, u))

	reloaded, err := users.Find(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.OAuthLinked())
	assert.Nil(t, reloaded.Provider)
	assert.Nil(t, reloaded.UID)
	assert.True(t, reloaded.HasPassword())
}

func TestUnlink_RequiresPassword(t *testing.T) {
	svc, users := newTestOAuth(t)
	ctx := context.Background()

	res, err := svc.HandleCallback(ctx, googleAssertion("uid-9", "g@x.com"))
	require.NoError(t, err)
	u, err := svc.CompleteRegistration(ctx, res.PendingToken, testInvitationCode)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Unlink(ctx, u), ErrPasswordRequired)
	reloaded, err := users.Find(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.OAuthLinked())
}
