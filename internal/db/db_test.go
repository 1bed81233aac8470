package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"hikeclub/internal/models"
)

func TestOpenMemory_Migrates(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)

	for _, table := range []any{&models.User{}, &models.Session{}, &models.Hike{}, &models.HikeHistory{}, &models.HikePath{}} {
		assert.True(t, conn.Migrator().HasTable(table))
	}
	assert.True(t, conn.Migrator().HasIndex(&models.User{}, "idx_users_provider_uid"))
}

func TestDuplicateEmailIsTranslated(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)

	require.NoError(t, conn.Create(&models.User{EmailAddress: "a@x.com", PasswordDigest: "d"}).Error)
	err = conn.Create(&models.User{EmailAddress: " A@x.com", PasswordDigest: "d"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestSessionsCascadeOnUserDelete(t *testing.T) {
	conn, err := OpenMemory()
	require.NoError(t, err)

	u := &models.User{EmailAddress: "a@x.com", PasswordDigest: "d"}
	require.NoError(t, conn.Create(u).Error)
	require.NoError(t, conn.Create(&models.Session{ID: "s1", UserID: u.ID}).Error)

	require.NoError(t, conn.Delete(&models.User{}, u.ID).Error)

	var n int64
	require.NoError(t, conn.Model(&models.Session{}).Count(&n).Error)
	assert.Zero(t, n)
}
