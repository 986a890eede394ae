package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type StaffRole string

const (
	RoleNurse   StaffRole = "nurse"
	RoleDoctor  StaffRole = "doctor"
	RoleManager StaffRole = "manager"
)

func (r StaffRole) Valid() bool {
	return r == RoleNurse || r == RoleDoctor || r == RoleManager
}

// Staff is an authenticated clinic employee.
type Staff struct {
	Base
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         StaffRole `db:"role" json:"role"`
}

// Actor identifies the staff member performing a transition.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role StaffRole `json:"role"`
}

func (s *Staff) Actor() Actor {
	return Actor{ID: s.ID, Name: s.Name, Role: s.Role}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Staff       *Staff `json:"staff"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	StaffID uuid.UUID `json:"staff_id"`
	Name    string    `json:"name"`
	Role    StaffRole `json:"role"`
}

func (c *TokenClaims) Actor() Actor {
	return Actor{ID: c.StaffID, Name: c.Name, Role: c.Role}
}
