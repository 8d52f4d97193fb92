package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole enumerates access levels.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
)

// User is an authenticated account. Teachers link to their roster record via
// TeacherID so view endpoints can scope results to the caller.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// JWTClaims carries identity inside access tokens.
type JWTClaims struct {
	UserID    string   `json:"uid"`
	Role      UserRole `json:"role"`
	TeacherID string   `json:"teacherId,omitempty"`
	jwt.RegisteredClaims
}
