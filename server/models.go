package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the account model.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Username     string     `bun:"username,notnull,unique" json:"username"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	CreatedAt    *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Task is the task model. Every task belongs to the user that created it.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:tsk"`

	ID          uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID      uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Title       string     `bun:"title,notnull" json:"title"`
	Description string     `bun:"description" json:"description,omitempty"`
	Completed   bool       `bun:"completed,notnull,default:false" json:"completed"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// UserResponse is the public projection of a User returned by the API.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (u *User) Response() UserResponse {
	return UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
	}
}
