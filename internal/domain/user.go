package domain

import "time"

// User is a panel account. Authentication itself lives in the auth package;
// the domain only carries the record.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}
