package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

var ErrDuplicateStudent = errors.New("student with this id or username already exists")

const studentColumns = `user_id, student_id, first_name, last_name, username, password_hash, role, created_at`

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func scanStudent(row interface{ Scan(...any) error }) (*model.Student, error) {
	s := &model.Student{}
	if err := row.Scan(&s.UserID, &s.StudentID, &s.FirstName, &s.LastName, &s.Username, &s.PasswordHash, &s.Role, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// GetByStudentID retrieves a student by their numeric student id.
func (r *StudentRepository) GetByStudentID(ctx context.Context, studentID int) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM users WHERE student_id = $1 AND role = 'student'`, studentID))
}

// GetByUsername retrieves a student by username.
func (r *StudentRepository) GetByUsername(ctx context.Context, username string) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM users WHERE username = $1 AND role = 'student'`, username))
}

// Create inserts a student. The password must already be hashed.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (student_id, first_name, last_name, username, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5, 'student')
		 RETURNING user_id, role, created_at`,
		s.StudentID, s.FirstName, s.LastName, s.Username, s.PasswordHash,
	).Scan(&s.UserID, &s.Role, &s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateStudent
		}
		return err
	}
	return nil
}
