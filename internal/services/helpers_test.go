package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hikeclub/internal/db"
	"hikeclub/internal/models"
	"hikeclub/internal/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

func newTestTokens() *TokenIssuer {
	return NewTokenIssuer("test-secret", 15*time.Minute, 15*time.Minute)
}

func createUser(t *testing.T, conn *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	digest, err := utils.HashPassword("password123")
	require.NoError(t, err)
	u := &models.User{EmailAddress: email, Name: email, PasswordDigest: digest, Role: role}
	require.NoError(t, conn.Create(u).Error)
	return u
}

type sentMail struct {
	Kind  string
	Email string
	Link  string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendPasswordResetEmail(email, name, link string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{"reset", email, link})
}

func (m *fakeMailer) SendGuideWelcomeEmail(email, name, link string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{"guide", email, link})
}

var testLogger = zap.NewNop()

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
