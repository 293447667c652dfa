package models

import (
	"database/sql"
	"time"
)

// User represents a portal user based on the portal.users table
type User struct {
	UserID             int64         `json:"user_id"`
	CognitoID          string        `json:"cognito_id"` // AWS Cognito sub UUID
	Email              string        `json:"email"`
	FirstName          string        `json:"first_name"`
	LastName           string        `json:"last_name"`
	Role               string        `json:"role"`             // 'admin', 'staff', 'client' (fixed at creation)
	OrgID              sql.NullInt64 `json:"org_id,omitempty"` // required for clients, optional for staff
	OnboardingComplete bool          `json:"onboarding_complete"`
	Status             string        `json:"status"` // 'pending', 'active', 'inactive', 'suspended'
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// User role constants
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleClient = "client"
)

// User status constants
const (
	UserStatusPending   = "pending"
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// CreateUserRequest represents the request payload for inviting a new user
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required,min=2,max=50"`
	LastName  string `json:"last_name" binding:"required,min=2,max=50"`
	Role      string `json:"role" binding:"required,oneof=admin staff client"`
	OrgID     int64  `json:"org_id,omitempty"` // required when role is client
}

// UpdateUserRequest represents the request payload for updating an existing user.
// Role is intentionally absent: it is fixed at creation.
type UpdateUserRequest struct {
	FirstName          string `json:"first_name,omitempty" binding:"omitempty,min=2,max=50"`
	LastName           string `json:"last_name,omitempty" binding:"omitempty,min=2,max=50"`
	OrgID              int64  `json:"org_id,omitempty"`
	OnboardingComplete *bool  `json:"onboarding_complete,omitempty"`
	Status             string `json:"status,omitempty" binding:"omitempty,oneof=pending active inactive suspended"`
}

// UserListResponse represents the response for listing users
type UserListResponse struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// CreateUserResponse represents the response after inviting a user
type CreateUserResponse struct {
	User
	Message string `json:"message"`
}

// GetFullName returns the user's full name
func (u *User) GetFullName() string {
	return u.FirstName + " " + u.LastName
}

// IsActive returns true if user status is active
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
