package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hikeclub/internal/models"
	"hikeclub/internal/policy"
	"hikeclub/internal/utils"
)

func TestUserService_Signup(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)
	ctx := context.Background()

	u, err := svc.Signup(ctx, SignupInput{EmailAddress: " Alice@Example.com ", Name: "<b>Alice</b>", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.EmailAddress)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.True(t, utils.CheckPasswordHash("password123", u.PasswordDigest))

	_, err = svc.Signup(ctx, SignupInput{EmailAddress: "ALICE@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Signup(ctx, SignupInput{EmailAddress: "bob@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestUserService_Authenticate(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)
	ctx := context.Background()
	createUser(t, conn, "a@x.com", models.RoleUser)

	u, err := svc.Authenticate(ctx, "A@X.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.EmailAddress)

	_, err = svc.Authenticate(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@x.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_AuthenticateOAuthOnlyAccount(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)
	u := &models.User{EmailAddress: "g@x.com"}
	u.LinkOAuth(models.ProviderGoogle, "uid-1")
	require.NoError(t, conn.Create(u).Error)

	_, err := svc.Authenticate(context.Background(), "g@x.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_Find(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)

	_, err := svc.Find(context.Background(), 404)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestUserService_UpdateProfile(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)
	ctx := context.Background()
	u := createUser(t, conn, "a@x.com", models.RoleUser)
	oldDigest := u.PasswordDigest

	require.NoError(t, svc.UpdateProfile(ctx, u, ProfileInput{Nickname: "Ally", PhoneNumber: "+33 6 12 34 56 78"}))
	reloaded, err := svc.Find(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ally", reloaded.Nickname)
	assert.Equal(t, "+33 6 12 34 56 78", reloaded.PhoneNumber)
	assert.Equal(t, oldDigest, reloaded.PasswordDigest)

	require.NoError(t, svc.UpdateProfile(ctx, reloaded, ProfileInput{Password: "new-password"}))
	assert.True(t, utils.CheckPasswordHash("new-password", reloaded.PasswordDigest))

	assert.ErrorIs(t, svc.UpdateProfile(ctx, reloaded, ProfileInput{Nickname: "Ghost", Password: "short"}), ErrPasswordTooShort)
	assert.Equal(t, "Ally", reloaded.Nickname)
	assert.True(t, utils.CheckPasswordHash("new-password", reloaded.PasswordDigest))
}

func TestUserService_UpdateRole(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)
	ctx := context.Background()

	admin := createUser(t, conn, "admin@x.com", models.RoleAdmin)
	other := createUser(t, conn, "admin2@x.com", models.RoleAdmin)
	mod := createUser(t, conn, "mod@x.com", models.RoleModerator)
	user := createUser(t, conn, "user@x.com", models.RoleUser)

	require.NoError(t, svc.UpdateRole(ctx, admin, user, models.RoleModerator))
	reloaded, err := svc.Find(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, reloaded.Role)

	assert.ErrorIs(t, svc.UpdateRole(ctx, admin, admin, models.RoleUser), policy.ErrSelfActionBlocked)
	assert.ErrorIs(t, svc.UpdateRole(ctx, mod, reloaded, models.RoleAdmin), ErrRoleCeiling)
	assert.ErrorIs(t, svc.UpdateRole(ctx, mod, other, models.RoleUser), ErrRoleCeiling)
	assert.ErrorIs(t, svc.UpdateRole(ctx, admin, other, models.Role(5)), models.ErrInvalidRole)
}

func TestUserService_CreateGuide(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)
	ctx := context.Background()

	g, err := svc.CreateGuide(ctx, GuideInput{EmailAddress: "Guide@x.com", Name: "Guide", Nickname: "G"})
	require.NoError(t, err)
	assert.Equal(t, "guide@x.com", g.EmailAddress)
	assert.Equal(t, models.RoleUser, g.Role)
	assert.True(t, g.HasPassword())

	_, err = svc.CreateGuide(ctx, GuideInput{EmailAddress: "guide@x.com", Name: "Again"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserService_DestroyCascadesSessions(t *testing.T) {
	conn := newTestDB(t)
	users := NewUserService(conn, testLogger)
	sessions := NewSessionService(conn, testLogger)
	ctx := context.Background()

	u := createUser(t, conn, "a@x.com", models.RoleUser)
	keep := createUser(t, conn, "b@x.com", models.RoleUser)
	for i := 0; i < 3; i++ {
		_, err := sessions.Start(ctx, u, "127.0.0.1", "test")
		require.NoError(t, err)
	}
	kept, err := sessions.Start(ctx, keep, "127.0.0.1", "test")
	require.NoError(t, err)

	hike := &models.Hike{TrailName: "Crêtes"}
	require.NoError(t, conn.Create(hike).Error)
	history := &models.HikeHistory{HikeID: hike.ID, UserID: &u.ID, HikingDate: mustDate("2025-05-01")}
	require.NoError(t, conn.Create(history).Error)

	require.NoError(t, users.Destroy(ctx, u))

	var n int64
	require.NoError(t, conn.Model(&models.Session{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.Zero(t, n)
	_, err = users.Find(ctx, u.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// other accounts and hike data survive
	_, err = sessions.Resume(ctx, kept.ID)
	assert.NoError(t, err)
	var reloaded models.HikeHistory
	require.NoError(t, conn.First(&reloaded, history.ID).Error)
	assert.Nil(t, reloaded.UserID)

	assert.ErrorIs(t, users.Destroy(ctx, u), ErrRecordNotFound)
}

func TestUserService_List(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)
	engine, err := policy.NewEngine(nil)
	require.NoError(t, err)
	ctx := context.Background()

	admin := createUser(t, conn, "admin@x.com", models.RoleAdmin)
	user := createUser(t, conn, "user@x.com", models.RoleUser)
	createUser(t, conn, "other@x.com", models.RoleUser)

	all, err := svc.List(ctx, engine.For(admin).Accessible(policy.ActionRead, policy.KindUser))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	own, err := svc.List(ctx, engine.For(user).Accessible(policy.ActionRead, policy.KindUser))
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, user.ID, own[0].ID)

	none, err := svc.List(ctx, engine.For(nil).Accessible(policy.ActionRead, policy.KindUser))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserService_AssignRole(t *testing.T) {
	conn := newTestDB(t)
	svc := NewUserService(conn, testLogger)
	ctx := context.Background()
	createUser(t, conn, "first@x.com", models.RoleUser)

	u, err := svc.AssignRole(ctx, "First@X.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	reloaded, err := svc.Find(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, reloaded.Role)

	_, err = svc.AssignRole(ctx, "nobody@x.com", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = svc.AssignRole(ctx, "first@x.com", models.Role(9))
	assert.ErrorIs(t, err, models.ErrInvalidRole)
}
