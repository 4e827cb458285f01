package users

import (
	"time"

	"github.com/google/uuid"
)

// User is an account resolved from the external identity provider. Rows are
// created lazily the first time a subject shows up.
type User struct {
	ID        uuid.UUID `json:"id"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
