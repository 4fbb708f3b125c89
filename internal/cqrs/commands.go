package cqrs

type CreateUserCommand struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// UpdateUserCommand replaces every mutable field of the user identified by UserID.
type UpdateUserCommand struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type DeleteUserCommand struct {
	UserID string
}

type LoginCommand struct {
	Email    string
	Password string
}

type RefreshTokenCommand struct {
	Token string
}
