package model

import "time"

// AgentIdentity is a human agent known to the destination store. There is
// exactly one identity per normalized email.
type AgentIdentity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Team      string    `json:"team,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAgent is the input for creating an identity. PasswordHash holds the
// bcrypt hash of the generated temporary credential.
type NewAgent struct {
	Email        string
	FirstName    string
	LastName     string
	Team         string
	PasswordHash string
}
