package domain

import (
	"time"
)

// User roles. Approvers and admins hold the elevated privilege required to
// decide a review; authors own and edit manuals.
const (
	RoleAuthor   = "author"
	RoleApprover = "approver"
	RoleAdmin    = "admin"
)

// User represents a user in the system
type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email" gorm:"uniqueIndex"`
	Password     string    `json:"-" gorm:"-"` // input only, not stored in db
	PasswordHash string    `json:"-"`
	Role         string    `json:"role" gorm:"type:varchar(20);default:'author'"`
	TokenVersion uint64    `json:"-" gorm:"default:0"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Elevated reports whether the user's role may approve or reject reviews.
func (u *User) Elevated() bool {
	return u.Role == RoleApprover || u.Role == RoleAdmin
}

// SafeUser represents a user without sensitive information
type SafeUser struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// ToSafeUser converts a User to a SafeUser
func (u *User) ToSafeUser() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		IsActive:  u.IsActive,
	}
}

// Actor identifies who is performing an operation, as resolved from the
// auth middleware. Elevated mirrors User.Elevated at token-claim level.
type Actor struct {
	ID   uint64
	Role string
}

func (a Actor) Elevated() bool {
	return a.Role == RoleApprover || a.Role == RoleAdmin
}
