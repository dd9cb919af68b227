package auth

import (
	"testing"
	"time"

	"optiondesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestPasswordManager_HashAndVerify(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost)

	hash, err := pm.Hash("Str0ngPassw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ngPassw0rd", hash)

	assert.True(t, pm.Verify("Str0ngPassw0rd", hash))
	assert.False(t, pm.Verify("wrong", hash))
}

func TestPasswordManager_ValidateStrength(t *testing.T) {
	pm := NewPasswordManager(bcrypt.MinCost)

	assert.ErrorIs(t, pm.ValidateStrength("short"), ErrWeakPassword)
	assert.NoError(t, pm.ValidateStrength("longenough"))
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &models.User{ID: "u1", Email: "u1@example.com", IsAdmin: true}

	token, err := m.Issue(user)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
}

func TestJWTManager_RejectsBadTokens(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	_, err := m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTManager("other-secret", time.Hour)
	token, err := other.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, err := m.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func setupService(t *testing.T, signupBonus float64) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Account{}))

	svc := NewService(db, zap.NewNop(),
		NewPasswordManager(bcrypt.MinCost),
		NewJWTManager("test-secret", time.Hour),
		signupBonus)
	return svc, db
}

func TestService_RegisterCreatesUserAndAccount(t *testing.T) {
	svc, db := setupService(t, 100)

	user, token, err := svc.Register(RegisterInput{
		Email:     "trader@example.com",
		Password:  "Str0ngPassw0rd",
		FirstName: "Alex",
		LastName:  "Morgan",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, token)

	var acct models.Account
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&acct).Error)
	assert.Equal(t, 100.0, acct.Balance)
	assert.Equal(t, int64(0), acct.TradesOpened)
}

func TestService_RegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := setupService(t, 0)

	in := RegisterInput{
		Email:     "trader@example.com",
		Password:  "Str0ngPassw0rd",
		FirstName: "Alex",
		LastName:  "Morgan",
	}
	_, _, err := svc.Register(in)
	require.NoError(t, err)

	_, _, err = svc.Register(in)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestService_Login(t *testing.T) {
	svc, _ := setupService(t, 0)

	_, _, err := svc.Register(RegisterInput{
		Email:     "trader@example.com",
		Password:  "Str0ngPassw0rd",
		FirstName: "Alex",
		LastName:  "Morgan",
	})
	require.NoError(t, err)

	user, token, err := svc.Login("trader@example.com", "Str0ngPassw0rd")
	require.NoError(t, err)
	assert.Equal(t, "trader@example.com", user.Email)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login("trader@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login("nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
