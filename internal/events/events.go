package events

import "context"

// Event types
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"
)

// Human-readable messages carried in each notification.
const (
	UserCreatedMessage = "Usuário criado com sucesso."
	UserUpdatedMessage = "Usuário atualizado com sucesso."
	UserDeletedMessage = "Usuário excluído com sucesso."
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "user-notifications"

// UserNotification is the JSON payload published after every user mutation.
type UserNotification struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Message   string `json:"message"`
}

// Notifier publishes a notification to the configured topic. key identifies
// the affected user and is used for partitioning where the backend supports it.
type Notifier interface {
	Publish(ctx context.Context, eventType, key string, n UserNotification) error
}
