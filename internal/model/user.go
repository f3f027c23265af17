package model

import "time"

// User mirrors the identity provider's account plus the transfer tag other
// users send money to.
type User struct {
	ID          string
	Tag         string
	DisplayName string
	CreatedAt   time.Time
}
