package identity

import "time"

// User represents a registered exchange participant.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	Role         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email       string
	Password    string
	DisplayName string
}

// Profile is the public view of a user.
type Profile struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// PublicProfile strips credential material for API responses.
func (u User) PublicProfile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}
