package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

func newAuthFixture(t *testing.T) (*AuthService, *mockStudentFinder, *model.Student) {
	t.Helper()
	_, rdb := newTestRedis(t)
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
	students := &mockStudentFinder{}
	svc := NewAuthService(cfg, rdb, students)

	hash, err := svc.HashPassword("rahasia123")
	require.NoError(t, err)
	student := &model.Student{
		UserID:       3,
		StudentID:    2024001,
		FirstName:    "Ayu",
		Username:     "ayu",
		PasswordHash: hash,
	}
	return svc, students, student
}

func TestAuthService_LoginByUsername(t *testing.T) {
	svc, students, student := newAuthFixture(t)
	students.On("GetByUsername", mock.Anything, "ayu").Return(student, nil)

	resp, err := svc.Login(context.Background(), "ayu", "rahasia123")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 2024001, resp.Student.StudentID)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeStudent, claims.TokenType)
	assert.Equal(t, 2024001, claims.UserID)
	assert.NoError(t, svc.ValidateStudentSession(context.Background(), claims.UserID, claims.ID))
}

func TestAuthService_LoginByStudentNumber(t *testing.T) {
	svc, students, student := newAuthFixture(t)
	students.On("GetByStudentID", mock.Anything, 2024001).Return(student, nil)

	_, err := svc.Login(context.Background(), "2024001", "rahasia123")
	require.NoError(t, err)
	students.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	svc, students, student := newAuthFixture(t)
	students.On("GetByUsername", mock.Anything, "ayu").Return(student, nil)
	students.On("GetByUsername", mock.Anything, "ghost").Return(nil, pgx.ErrNoRows)

	_, err := svc.Login(context.Background(), "ayu", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "ghost", "rahasia123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_NewestLoginWins(t *testing.T) {
	svc, students, student := newAuthFixture(t)
	students.On("GetByUsername", mock.Anything, "ayu").Return(student, nil)
	ctx := context.Background()

	first, err := svc.Login(ctx, "ayu", "rahasia123")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "ayu", "rahasia123")
	require.NoError(t, err)

	oldClaims, err := svc.ValidateToken(first.Token)
	require.NoError(t, err)
	newClaims, err := svc.ValidateToken(second.Token)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ValidateStudentSession(ctx, oldClaims.UserID, oldClaims.ID), ErrSessionInvalidated)
	assert.NoError(t, svc.ValidateStudentSession(ctx, newClaims.UserID, newClaims.ID))

	require.NoError(t, svc.Logout(ctx, newClaims.UserID))
	assert.ErrorIs(t, svc.ValidateStudentSession(ctx, newClaims.UserID, newClaims.ID), ErrNoLoginSession)
}

func TestAuthService_ValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour}, svc.rdb, nil)

	token, err := other.GenerateStudentToken(context.Background(), 1, "x")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestIsStudentNumber(t *testing.T) {
	assert.True(t, isStudentNumber("2024001"))
	assert.False(t, isStudentNumber("202400"))
	assert.False(t, isStudentNumber("2024a01"))
	assert.False(t, isStudentNumber("ayu"))
}
