package models

import "time"

// User is the persisted user record. Password only ever holds a bcrypt hash.
type User struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	Password         string    `json:"password"`
	RegistrationDate time.Time `json:"registrationDate"`
}
