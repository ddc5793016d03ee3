package models

import "time"

type User struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	Email          string    `yaml:"email" json:"email"`
	Role           string    `yaml:"role" json:"role"`                         // customer, owner
	TelegramChatID int64     `yaml:"telegram_chat_id" json:"telegram_chat_id"` // 0 when notifications are off
	CreatedAt      time.Time `yaml:"-" json:"created_at"`
}

// Caller is the already-verified identity behind a request.
type Caller struct {
	UserID string
	Role   string
}

func (c Caller) IsCustomer() bool { return c.Role == RoleCustomer }
func (c Caller) IsOwner() bool    { return c.Role == RoleOwner }
