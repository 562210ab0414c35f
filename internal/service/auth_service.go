package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoLoginSession     = errors.New("no active session")
	ErrSessionInvalidated = errors.New("session invalidated")
)

// TokenType distinguishes token audiences. Only students log in here.
type TokenType string

const TokenTypeStudent TokenType = "student"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
}

// StudentFinder looks students up by either login form.
type StudentFinder interface {
	GetByStudentID(ctx context.Context, studentID int) (*model.Student, error)
	GetByUsername(ctx context.Context, username string) (*model.Student, error)
}

// AuthService handles authentication, JWT, and login session management.
type AuthService struct {
	cfg      *config.Config
	rdb      *redis.Client
	students StudentFinder
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, students StudentFinder) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, students: students}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// isStudentNumber treats a login of seven or more digits as a student id.
func isStudentNumber(login string) bool {
	if len(login) < 7 {
		return false
	}
	for _, r := range login {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Login authenticates a student by student id or username and issues a token.
func (s *AuthService) Login(ctx context.Context, login, password string) (*model.StudentLoginResponse, error) {
	var (
		student *model.Student
		err     error
	)
	if isStudentNumber(login) {
		id, convErr := strconv.Atoi(login)
		if convErr != nil {
			return nil, ErrInvalidCredentials
		}
		student, err = s.students.GetByStudentID(ctx, id)
	} else {
		student, err = s.students.GetByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find student: %w", err)
	}

	if err := s.CheckPassword(student.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.GenerateStudentToken(ctx, student.StudentID, student.Username)
	if err != nil {
		return nil, err
	}
	return &model.StudentLoginResponse{Token: token, Student: *student}, nil
}

// GenerateStudentToken creates a JWT for a student and registers its JTI in
// Redis. The newest login wins: an earlier token stops validating.
func (s *AuthService) GenerateStudentToken(ctx context.Context, studentID int, username string) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(studentID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeStudent,
		UserID:    studentID,
		Username:  username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if err := s.rdb.Set(ctx, config.CacheKey.StudentLoginKey(studentID), jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateStudentSession checks that the token's JTI matches the live login in Redis.
func (s *AuthService) ValidateStudentSession(ctx context.Context, studentID int, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.StudentLoginKey(studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoLoginSession
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// Logout removes a student's live login so its token stops validating.
func (s *AuthService) Logout(ctx context.Context, studentID int) error {
	return s.rdb.Del(ctx, config.CacheKey.StudentLoginKey(studentID)).Err()
}

// Me returns the authenticated student's profile.
func (s *AuthService) Me(ctx context.Context, studentID int) (*model.Student, error) {
	student, err := s.students.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}
